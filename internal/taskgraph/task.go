package taskgraph

import (
	"context"

	"garden/internal/events"
	"garden/internal/graph"
)

// Task is the work item contract: the abstraction a caller implements to
// make a graph entity actionable. Implementations are produced per run by
// the provider layer.
type Task interface {
	// Key uniquely identifies the logical operation, target and version.
	// Two tasks with the same key submitted to the same TaskGraph are
	// coalesced: only one executes, all requesters receive its outcome.
	Key() string

	// Ref is the graph entity the task operates on.
	Ref() graph.Ref

	// Kind is the operation performed. All kinds share the identical
	// scheduling contract.
	Kind() events.OpKind

	// Dependencies returns the tasks that must reach a terminal status
	// before this one may start. Called once during plan construction.
	Dependencies(ctx context.Context) ([]Task, error)

	// Execute performs the operation. It receives the results of its
	// dependencies and returns an optional result payload. The scheduler
	// never retries; retry policy, if any, lives inside Execute.
	Execute(ctx context.Context, deps ResultSet) (interface{}, error)
}

// Result is the terminal outcome of one work item.
type Result struct {
	Status events.Status
	Output interface{}
	Err    error
}

// ResultSet maps dependency keys to their completed results. Passed to
// Execute so a task can consume its dependencies' payloads.
type ResultSet map[string]Result

// Results maps each requested root key to its terminal result. Every
// requested root is present; a batch never silently drops an outcome.
type Results map[string]Result

// Failed reports whether any root ended in an error or aborted status.
func (r Results) Failed() bool {
	for _, res := range r {
		if res.Status != events.StatusComplete {
			return true
		}
	}
	return false
}
