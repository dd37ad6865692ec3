// Package cli holds presentation helpers shared by the commands: table
// rendering for entities and batch results, and the spinner-based progress
// reporter that subscribes to the event bus.
package cli
