package events

import (
	"time"

	"garden/internal/graph"
)

// Status is the lifecycle state of a work item within a run. It is a closed
// set: handlers switch over it exhaustively instead of matching on event
// name strings.
type Status int

const (
	StatusPending Status = iota
	StatusProcessing
	StatusComplete
	StatusError
	StatusAborted
)

// String makes Status satisfy the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusAborted
}

// OpKind is the operation a work item performs against its entity. All four
// kinds share the identical scheduling contract.
type OpKind int

const (
	OpBuild OpKind = iota
	OpDeploy
	OpRunTask
	OpRunTest
)

// String makes OpKind satisfy the fmt.Stringer interface.
func (k OpKind) String() string {
	switch k {
	case OpBuild:
		return "build"
	case OpDeploy:
		return "deploy"
	case OpRunTask:
		return "run-task"
	case OpRunTest:
		return "run-test"
	default:
		return "unknown"
	}
}

// Event is one lifecycle transition of a work item. Per item the bus
// delivers pending, processing, then exactly one terminal status, in that
// order.
type Event struct {
	BatchID   string
	Key       string
	Ref       graph.Ref
	Op        OpKind
	Status    Status
	Timestamp time.Time

	// Result is set on complete events, Err on error and aborted events.
	Result interface{}
	Err    error
}
