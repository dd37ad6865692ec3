package graph

import (
	"fmt"

	"garden/internal/config"
)

// Kind categorises entities in the configuration graph.
type Kind int

const (
	KindModule Kind = iota
	KindBuild
	KindService
	KindTask
	KindTest
)

// String makes Kind satisfy the fmt.Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindBuild:
		return "build"
	case KindService:
		return "service"
	case KindTask:
		return "task"
	case KindTest:
		return "test"
	default:
		return "unknown"
	}
}

// ParseKind converts a textual kind (as passed on the command line) into a
// Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "module":
		return KindModule, nil
	case "build":
		return KindBuild, nil
	case "service":
		return KindService, nil
	case "task":
		return KindTask, nil
	case "test":
		return KindTest, nil
	default:
		return KindModule, fmt.Errorf("unknown entity kind %q", s)
	}
}

// Ref addresses one entity. Names are globally unique per kind, so a Ref is
// a stable key: edges are stored as Ref lists rather than pointers, which
// keeps the graph free of reference cycles.
type Ref struct {
	Kind Kind
	Name string
}

// String renders the Ref as "kind.name".
func (r Ref) String() string {
	return r.Kind.String() + "." + r.Name
}

// ModuleRef returns the Ref of the module with the given name.
func ModuleRef(name string) Ref { return Ref{Kind: KindModule, Name: name} }

// BuildRef returns the Ref of a module's build entity.
func BuildRef(moduleName string) Ref { return Ref{Kind: KindBuild, Name: moduleName} }

// ServiceRef returns the Ref of the service with the given name.
func ServiceRef(name string) Ref { return Ref{Kind: KindService, Name: name} }

// TaskRef returns the Ref of the task with the given name.
func TaskRef(name string) Ref { return Ref{Kind: KindTask, Name: name} }

// TestRef returns the Ref of a module's test. Test names are namespaced by
// their owning module since they are only unique within it.
func TestRef(moduleName, testName string) Ref {
	return Ref{Kind: KindTest, Name: moduleName + "." + testName}
}

// Entity is one typed node of the configuration graph. It is pure data:
// behavior lives in the ConfigGraph queries and in the work items expanded
// from entities at scheduling time.
type Entity struct {
	Ref          Ref
	ModuleName   string
	Description  string
	Dependencies []Ref

	// The declaration the entity was derived from. Module is set for
	// module and build entities; exactly one of the others is set for the
	// remaining kinds.
	Module  *config.ModuleConfig
	Service *config.ServiceConfig
	Task    *config.TaskConfig
	Test    *config.TestConfig
}
