package app

import (
	"context"
	"fmt"

	"garden/internal/events"
	"garden/internal/graph"
	"garden/internal/taskgraph"
	"garden/pkg/logging"

	"github.com/google/uuid"
)

// Build builds the named modules, or every module when none are named.
func (s *Session) Build(ctx context.Context, moduleNames []string) (taskgraph.Results, error) {
	refs, err := s.moduleRefs(moduleNames)
	if err != nil {
		return nil, err
	}
	roots := make([]taskgraph.Task, 0, len(refs))
	for _, ref := range refs {
		t, err := s.Factory.Task(graph.BuildRef(ref.Name), events.OpBuild)
		if err != nil {
			return nil, err
		}
		roots = append(roots, t)
	}
	return s.process(ctx, roots)
}

// Deploy deploys the named services, or every service when none are named.
func (s *Session) Deploy(ctx context.Context, serviceNames []string) (taskgraph.Results, error) {
	var refs []graph.Ref
	if len(serviceNames) == 0 {
		for _, e := range s.Graph.Entities(graph.KindService) {
			refs = append(refs, e.Ref)
		}
	} else {
		for _, name := range serviceNames {
			refs = append(refs, graph.ServiceRef(name))
		}
	}
	if _, err := s.Graph.Resolve(refs); err != nil {
		return nil, err
	}

	roots := make([]taskgraph.Task, 0, len(refs))
	for _, ref := range refs {
		t, err := s.Factory.Task(ref, events.OpDeploy)
		if err != nil {
			return nil, err
		}
		roots = append(roots, t)
	}
	return s.process(ctx, roots)
}

// Test runs the tests of the named modules, or of every module when none
// are named.
func (s *Session) Test(ctx context.Context, moduleNames []string) (taskgraph.Results, error) {
	refs, err := s.moduleRefs(moduleNames)
	if err != nil {
		return nil, err
	}

	var roots []taskgraph.Task
	for _, moduleRef := range refs {
		module := s.Snapshot.Module(moduleRef.Name)
		for _, test := range module.Tests {
			t, err := s.Factory.Task(graph.TestRef(module.Name, test.Name), events.OpRunTest)
			if err != nil {
				return nil, err
			}
			roots = append(roots, t)
		}
	}
	if len(roots) == 0 {
		logging.Info("Session", "No tests declared")
		return taskgraph.Results{}, nil
	}
	return s.process(ctx, roots)
}

// RunTask runs a single named task.
func (s *Session) RunTask(ctx context.Context, name string) (taskgraph.Results, error) {
	t, err := s.Factory.Task(graph.TaskRef(name), events.OpRunTask)
	if err != nil {
		return nil, err
	}
	return s.process(ctx, []taskgraph.Task{t})
}

func (s *Session) process(ctx context.Context, roots []taskgraph.Task) (taskgraph.Results, error) {
	batchID := uuid.NewString()
	logging.Debug("Session", "Processing batch %s with %d roots", batchID, len(roots))
	return s.Tasks.Process(ctx, batchID, roots)
}

// moduleRefs resolves module names, defaulting to all modules.
func (s *Session) moduleRefs(names []string) ([]graph.Ref, error) {
	var refs []graph.Ref
	if len(names) == 0 {
		for _, e := range s.Graph.Entities(graph.KindModule) {
			refs = append(refs, e.Ref)
		}
		if len(refs) == 0 {
			return nil, fmt.Errorf("project %q declares no modules", s.Snapshot.Project.Name)
		}
		return refs, nil
	}
	for _, name := range names {
		refs = append(refs, graph.ModuleRef(name))
	}
	if _, err := s.Graph.Resolve(refs); err != nil {
		return nil, err
	}
	return refs, nil
}
