package provider

import (
	"context"
	"fmt"

	"garden/internal/config"
	"garden/internal/events"
	"garden/internal/graph"
	"garden/internal/taskgraph"
	"garden/internal/template"
)

// Factory produces work items for (entity, operation) pairs. It owns the
// uniform dependency expansion rules, deciding which operations an
// operation requires, while the routed provider owns only execution:
//
//   - build(module) depends on build of each build-dependency module
//   - deploy(service) depends on build of the owning module, deploy of each
//     service dependency and run of each task dependency
//   - run-task and run-test expand like deploy
//
// Work item keys embed the module version, so a changed module yields a
// different key and a different cache identity.
type Factory struct {
	Graph       *graph.ConfigGraph
	Router      *Router
	Versions    *graph.VersionResolver
	Project     *config.ProjectSnapshot
	Environment string
}

// Task returns the work item for op against ref.
func (f *Factory) Task(ref graph.Ref, op events.OpKind) (taskgraph.Task, error) {
	entity := f.Graph.Get(ref)
	if entity == nil {
		return nil, &graph.EntityNotFoundError{Ref: ref}
	}
	if err := checkOpKind(ref, op); err != nil {
		return nil, err
	}

	module := f.Project.Module(entity.ModuleName)
	if module == nil {
		return nil, fmt.Errorf("entity %s references module %q, which has no declaration", ref, entity.ModuleName)
	}
	prov, err := f.Router.ForModule(module)
	if err != nil {
		return nil, err
	}
	version, err := f.Versions.Version(entity.ModuleName)
	if err != nil {
		return nil, err
	}

	return &workItem{
		factory:  f,
		entity:   entity,
		module:   module,
		op:       op,
		version:  version,
		provider: prov,
	}, nil
}

func checkOpKind(ref graph.Ref, op events.OpKind) error {
	ok := false
	switch op {
	case events.OpBuild:
		ok = ref.Kind == graph.KindBuild || ref.Kind == graph.KindModule
	case events.OpDeploy:
		ok = ref.Kind == graph.KindService
	case events.OpRunTask:
		ok = ref.Kind == graph.KindTask
	case events.OpRunTest:
		ok = ref.Kind == graph.KindTest
	}
	if !ok {
		return fmt.Errorf("operation %s cannot target entity %s", op, ref)
	}
	return nil
}

// opForRuntimeRef maps a service/task dependency ref to the operation that
// satisfies it at runtime.
func opForRuntimeRef(ref graph.Ref) events.OpKind {
	if ref.Kind == graph.KindService {
		return events.OpDeploy
	}
	return events.OpRunTask
}

// workItem adapts one (entity, op) pair to the taskgraph.Task contract.
type workItem struct {
	factory  *Factory
	entity   *graph.Entity
	module   *config.ModuleConfig
	op       events.OpKind
	version  string
	provider Provider
}

func (w *workItem) Key() string {
	return fmt.Sprintf("%s.%s.%s", w.op, w.entity.Ref.Name, w.version)
}

func (w *workItem) Ref() graph.Ref { return w.entity.Ref }

func (w *workItem) Kind() events.OpKind { return w.op }

func (w *workItem) Dependencies(ctx context.Context) ([]taskgraph.Task, error) {
	var deps []taskgraph.Task

	if w.op == events.OpBuild {
		buildEntity := w.factory.Graph.Get(graph.BuildRef(w.module.Name))
		for _, dep := range buildEntity.Dependencies {
			t, err := w.factory.Task(dep, events.OpBuild)
			if err != nil {
				return nil, err
			}
			deps = append(deps, t)
		}
		return deps, nil
	}

	// Runtime operations first require the owning module to be built.
	buildTask, err := w.factory.Task(graph.BuildRef(w.module.Name), events.OpBuild)
	if err != nil {
		return nil, err
	}
	deps = append(deps, buildTask)

	for _, dep := range w.entity.Dependencies {
		t, err := w.factory.Task(dep, opForRuntimeRef(dep))
		if err != nil {
			return nil, err
		}
		deps = append(deps, t)
	}
	return deps, nil
}

func (w *workItem) Execute(ctx context.Context, deps taskgraph.ResultSet) (interface{}, error) {
	target := &Target{
		Op:       w.op,
		Entity:   w.entity,
		Module:   w.module,
		Version:  w.version,
		Deps:     deps,
		Template: w.templateContext(deps),
	}

	switch w.op {
	case events.OpBuild:
		return w.provider.Build(ctx, target)
	case events.OpDeploy:
		return w.provider.Deploy(ctx, target)
	case events.OpRunTask:
		return w.provider.RunTask(ctx, target)
	case events.OpRunTest:
		return w.provider.RunTest(ctx, target)
	default:
		return nil, fmt.Errorf("unhandled operation kind %v", w.op)
	}
}

// templateContext assembles the data visible to command templates. Runtime
// service information comes from deploy results among the dependencies.
func (w *workItem) templateContext(deps taskgraph.ResultSet) *template.Context {
	variables := map[string]interface{}{}
	for k, v := range w.factory.Project.Project.Variables {
		variables[k] = v
	}
	if env := w.factory.Project.Environment(w.factory.Environment); env != nil {
		for k, v := range env.Variables {
			variables[k] = v
		}
	}
	for k, v := range w.module.Variables {
		variables[k] = v
	}

	services := map[string]template.ServiceRuntime{}
	for _, res := range deps {
		if out, ok := res.Output.(*DeployOutput); ok {
			services[out.Service.Name] = out.Service
		}
	}

	return &template.Context{
		Project: template.ProjectContext{
			Name:        w.factory.Project.Project.Name,
			Environment: w.factory.Environment,
		},
		Module: template.ModuleContext{
			Name:    w.module.Name,
			Path:    w.module.Path,
			Version: w.version,
		},
		Variables: variables,
		Runtime:   template.RuntimeContext{Services: services},
	}
}
