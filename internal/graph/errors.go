package graph

import (
	"fmt"
	"strings"
)

// DependencyNotFoundError indicates that a declared dependency reference
// does not resolve to any entity in the graph. It is fatal to construction.
type DependencyNotFoundError struct {
	Owner   Ref
	Missing string
}

func (e *DependencyNotFoundError) Error() string {
	return fmt.Sprintf("%s depends on %q, which could not be found", e.Owner, e.Missing)
}

// CyclicDependencyError indicates a dependency cycle among entities. Path
// holds the offending cycle, first node repeated at the end.
type CyclicDependencyError struct {
	Path []Ref
}

func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Path))
	for i, r := range e.Path {
		parts[i] = r.String()
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// EntityNotFoundError indicates a lookup for an entity that does not exist.
type EntityNotFoundError struct {
	Ref Ref
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %s not found", e.Ref)
}
