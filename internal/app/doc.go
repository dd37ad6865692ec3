// Package app bootstraps and runs garden sessions. A session wires the
// pipeline end to end, from vcs scan through config load, entity graph and
// work item factory to the scheduler, with the event bus, local store and
// telemetry reporter constructed once and passed by reference to everything
// that needs them.
package app
