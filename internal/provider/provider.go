package provider

import (
	"context"
	"fmt"
	"time"

	"garden/internal/config"
	"garden/internal/events"
	"garden/internal/graph"
	"garden/internal/taskgraph"
	"garden/internal/template"
)

// Target is everything a provider needs to execute one operation: the
// entity, its owning module, the computed module version, the results of
// the operation's dependencies and a ready-to-use template context.
type Target struct {
	Op       events.OpKind
	Entity   *graph.Entity
	Module   *config.ModuleConfig
	Version  string
	Deps     taskgraph.ResultSet
	Template *template.Context
}

// Provider implements the four operation kinds for one module type. The
// contract each operation must satisfy is the work item contract; how a
// provider builds or deploys is its own business.
type Provider interface {
	Type() string
	Build(ctx context.Context, t *Target) (interface{}, error)
	Deploy(ctx context.Context, t *Target) (interface{}, error)
	RunTask(ctx context.Context, t *Target) (interface{}, error)
	RunTest(ctx context.Context, t *Target) (interface{}, error)
}

// BuildOutput is the result payload of a build work item.
type BuildOutput struct {
	Module  string
	Version string
	Digest  string
	Cached  bool
	Log     string
}

// DeployOutput is the result payload of a deploy work item.
type DeployOutput struct {
	Service template.ServiceRuntime
}

// RunOutput is the result payload of task and test work items.
type RunOutput struct {
	Name string
	Log  string
	Took time.Duration
}

// UnknownModuleTypeError indicates that no provider is registered for a
// module's declared type.
type UnknownModuleTypeError struct {
	ModuleType string
	ModuleName string
}

func (e *UnknownModuleTypeError) Error() string {
	return fmt.Sprintf("module %q has type %q, for which no provider is registered", e.ModuleName, e.ModuleType)
}

// Router selects the provider for a module by its declared type.
type Router struct {
	providers map[string]Provider
}

// NewRouter registers the given providers.
func NewRouter(providers ...Provider) *Router {
	r := &Router{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	return r
}

// ForModule returns the provider responsible for m.
func (r *Router) ForModule(m *config.ModuleConfig) (Provider, error) {
	p, ok := r.providers[m.Type]
	if !ok {
		return nil, &UnknownModuleTypeError{ModuleType: m.Type, ModuleName: m.Name}
	}
	return p, nil
}
