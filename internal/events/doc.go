// Package events defines the lifecycle vocabulary of the scheduler (status
// and operation kinds) and the Bus that publishes per-work-item transitions
// to independent observers such as progress reporters and telemetry.
package events
