package taskgraph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCanceled is the cause attached to work items aborted because the run
// was cancelled.
var ErrCanceled = errors.New("run canceled")

// MissingDependencyError indicates that plan construction could not produce
// a work item for a requested dependency. Fatal: nothing executes.
type MissingDependencyError struct {
	Key   string
	Cause error
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("cannot expand dependencies of %s: %v", e.Key, e.Cause)
}

func (e *MissingDependencyError) Unwrap() error { return e.Cause }

// CyclicTaskDependencyError indicates that expansion revisited a key already
// on the current expansion path. Fatal: nothing executes.
type CyclicTaskDependencyError struct {
	Path []string
}

func (e *CyclicTaskDependencyError) Error() string {
	return fmt.Sprintf("task dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// DependencyFailedError is the cause attached to a work item aborted
// because one of its dependencies did not complete.
type DependencyFailedError struct {
	Key   string
	Cause error
}

func (e *DependencyFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dependency %s did not complete: %v", e.Key, e.Cause)
	}
	return fmt.Sprintf("dependency %s did not complete", e.Key)
}

func (e *DependencyFailedError) Unwrap() error { return e.Cause }
