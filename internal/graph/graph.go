package graph

import (
	"slices"

	"garden/internal/config"
	"garden/pkg/logging"
)

// ConfigGraph is the resolved dependency graph over all entities of one
// configuration snapshot. It is built in a single pass, validated for
// reference integrity and acyclicity, and read-only afterwards: any
// configuration change rebuilds the graph wholesale rather than patching
// it, which keeps the invariants trivially correct and makes the graph
// safe to share across concurrent readers without locking.
type ConfigGraph struct {
	entities   map[Ref]*Entity
	order      []Ref
	dependents map[Ref][]Ref
}

// New constructs the graph from module declarations. It fails with a
// *DependencyNotFoundError when a declared reference does not resolve and
// with a *CyclicDependencyError when the dependency relation contains a
// cycle. On error no graph is returned; there is no partially built state.
func New(modules []config.ModuleConfig) (*ConfigGraph, error) {
	g := &ConfigGraph{
		entities:   make(map[Ref]*Entity),
		dependents: make(map[Ref][]Ref),
	}

	// First pass: register every entity so the second pass can resolve
	// references in any order.
	serviceNames := map[string]bool{}
	taskNames := map[string]bool{}
	for i := range modules {
		m := &modules[i]
		g.add(&Entity{Ref: ModuleRef(m.Name), ModuleName: m.Name, Description: m.Description, Module: m})
		g.add(&Entity{Ref: BuildRef(m.Name), ModuleName: m.Name, Module: m})
		for j := range m.Services {
			svc := &m.Services[j]
			g.add(&Entity{Ref: ServiceRef(svc.Name), ModuleName: m.Name, Description: svc.Description, Service: svc})
			serviceNames[svc.Name] = true
		}
		for j := range m.Tasks {
			task := &m.Tasks[j]
			g.add(&Entity{Ref: TaskRef(task.Name), ModuleName: m.Name, Description: task.Description, Task: task})
			taskNames[task.Name] = true
		}
		for j := range m.Tests {
			test := &m.Tests[j]
			g.add(&Entity{Ref: TestRef(m.Name, test.Name), ModuleName: m.Name, Description: test.Description, Test: test})
		}
	}

	// Second pass: resolve declared references into edges.
	for i := range modules {
		m := &modules[i]
		moduleEntity := g.entities[ModuleRef(m.Name)]
		buildEntity := g.entities[BuildRef(m.Name)]
		for _, dep := range m.Build.Dependencies {
			if _, ok := g.entities[ModuleRef(dep)]; !ok {
				return nil, &DependencyNotFoundError{Owner: moduleEntity.Ref, Missing: dep}
			}
			moduleEntity.Dependencies = append(moduleEntity.Dependencies, ModuleRef(dep))
			buildEntity.Dependencies = append(buildEntity.Dependencies, BuildRef(dep))
		}

		for j := range m.Services {
			svc := &m.Services[j]
			entity := g.entities[ServiceRef(svc.Name)]
			for _, dep := range svc.Dependencies {
				ref, ok := runtimeRef(dep, serviceNames, taskNames)
				if !ok {
					return nil, &DependencyNotFoundError{Owner: entity.Ref, Missing: dep}
				}
				entity.Dependencies = append(entity.Dependencies, ref)
			}
		}
		for j := range m.Tasks {
			task := &m.Tasks[j]
			entity := g.entities[TaskRef(task.Name)]
			for _, dep := range task.Dependencies {
				ref, ok := runtimeRef(dep, serviceNames, taskNames)
				if !ok {
					return nil, &DependencyNotFoundError{Owner: entity.Ref, Missing: dep}
				}
				entity.Dependencies = append(entity.Dependencies, ref)
			}
		}
		for j := range m.Tests {
			test := &m.Tests[j]
			entity := g.entities[TestRef(m.Name, test.Name)]
			for _, dep := range test.Dependencies {
				ref, ok := runtimeRef(dep, serviceNames, taskNames)
				if !ok {
					return nil, &DependencyNotFoundError{Owner: entity.Ref, Missing: dep}
				}
				entity.Dependencies = append(entity.Dependencies, ref)
			}
		}
	}

	// Reverse edges, in declaration order for deterministic query results.
	for _, ref := range g.order {
		for _, dep := range g.entities[ref].Dependencies {
			g.dependents[dep] = append(g.dependents[dep], ref)
		}
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}

	logging.Debug("Graph", "Resolved %d entities from %d modules", len(g.order), len(modules))
	return g, nil
}

func (g *ConfigGraph) add(e *Entity) {
	g.entities[e.Ref] = e
	g.order = append(g.order, e.Ref)
}

// runtimeRef resolves a bare dependency name into a service or task Ref.
// Service and task names share one namespace (enforced at config
// validation), so the first match is the only possible one.
func runtimeRef(name string, services, tasks map[string]bool) (Ref, bool) {
	if services[name] {
		return ServiceRef(name), true
	}
	if tasks[name] {
		return TaskRef(name), true
	}
	return Ref{}, false
}

type visitState int

const (
	stateUnvisited visitState = iota
	stateOnPath
	stateDone
)

// checkAcyclic runs a depth-first traversal tracking the active path. The
// first node revisited while still on the path is reported with the full
// cycle.
func (g *ConfigGraph) checkAcyclic() error {
	state := make(map[Ref]visitState, len(g.order))
	var path []Ref

	var visit func(ref Ref) *CyclicDependencyError
	visit = func(ref Ref) *CyclicDependencyError {
		state[ref] = stateOnPath
		path = append(path, ref)
		for _, dep := range g.entities[ref].Dependencies {
			switch state[dep] {
			case stateOnPath:
				start := slices.Index(path, dep)
				cycle := append(slices.Clone(path[start:]), dep)
				return &CyclicDependencyError{Path: cycle}
			case stateUnvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[ref] = stateDone
		return nil
	}

	for _, ref := range g.order {
		if state[ref] == stateUnvisited {
			if err := visit(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// DepOptions controls dependency and dependent queries.
type DepOptions struct {
	// Recursive selects the transitive closure instead of direct edges.
	Recursive bool
	// Kinds, when non-empty, filters the result (not the traversal) by
	// entity kind.
	Kinds []Kind
}

// Entities returns all entities in declaration order, optionally filtered
// by kind.
func (g *ConfigGraph) Entities(kinds ...Kind) []*Entity {
	var result []*Entity
	for _, ref := range g.order {
		if len(kinds) == 0 || slices.Contains(kinds, ref.Kind) {
			result = append(result, g.entities[ref])
		}
	}
	return result
}

// Get returns the entity for ref, or nil if it does not exist.
func (g *ConfigGraph) Get(ref Ref) *Entity {
	return g.entities[ref]
}

// Dependencies returns the direct or transitive dependencies of ref.
func (g *ConfigGraph) Dependencies(ref Ref, opts DepOptions) ([]*Entity, error) {
	return g.traverse(ref, opts, func(r Ref) []Ref { return g.entities[r].Dependencies })
}

// Dependents returns the direct or transitive dependents of ref: the blast
// radius of a failure or a change at that entity.
func (g *ConfigGraph) Dependents(ref Ref, opts DepOptions) ([]*Entity, error) {
	return g.traverse(ref, opts, func(r Ref) []Ref { return g.dependents[r] })
}

// traverse walks edges from ref breadth-first. The starting entity itself
// is never part of the result.
func (g *ConfigGraph) traverse(ref Ref, opts DepOptions, edges func(Ref) []Ref) ([]*Entity, error) {
	if _, ok := g.entities[ref]; !ok {
		return nil, &EntityNotFoundError{Ref: ref}
	}

	seen := map[Ref]bool{ref: true}
	var result []*Entity
	frontier := []Ref{ref}
	for len(frontier) > 0 {
		var next []Ref
		for _, r := range frontier {
			for _, e := range edges(r) {
				if seen[e] {
					continue
				}
				seen[e] = true
				if len(opts.Kinds) == 0 || slices.Contains(opts.Kinds, e.Kind) {
					result = append(result, g.entities[e])
				}
				next = append(next, e)
			}
		}
		if !opts.Recursive {
			break
		}
		frontier = next
	}
	return result, nil
}

// Resolve maps refs to entities, preserving order. It fails with an
// *EntityNotFoundError on the first ref that does not exist.
func (g *ConfigGraph) Resolve(refs []Ref) ([]*Entity, error) {
	result := make([]*Entity, 0, len(refs))
	for _, ref := range refs {
		e, ok := g.entities[ref]
		if !ok {
			return nil, &EntityNotFoundError{Ref: ref}
		}
		result = append(result, e)
	}
	return result, nil
}

// TopologicalBatches layers the transitive dependency closure of the given
// refs (or the whole graph if none are given) so that every entity in a
// batch depends only on entities in earlier batches. Within a batch,
// entities appear in declaration order.
func (g *ConfigGraph) TopologicalBatches(refs ...Ref) ([][]*Entity, error) {
	include := map[Ref]bool{}
	if len(refs) == 0 {
		for _, ref := range g.order {
			include[ref] = true
		}
	} else {
		for _, ref := range refs {
			if _, ok := g.entities[ref]; !ok {
				return nil, &EntityNotFoundError{Ref: ref}
			}
			if include[ref] {
				continue
			}
			include[ref] = true
			closure, err := g.Dependencies(ref, DepOptions{Recursive: true})
			if err != nil {
				return nil, err
			}
			for _, e := range closure {
				include[e.Ref] = true
			}
		}
	}

	indegree := map[Ref]int{}
	for ref := range include {
		for _, dep := range g.entities[ref].Dependencies {
			if include[dep] {
				indegree[ref]++
			}
		}
	}

	remaining := make(map[Ref]bool, len(include))
	for ref := range include {
		remaining[ref] = true
	}

	var batches [][]*Entity
	for len(remaining) > 0 {
		var batch []*Entity
		for _, ref := range g.order {
			if remaining[ref] && indegree[ref] == 0 {
				batch = append(batch, g.entities[ref])
			}
		}
		for _, e := range batch {
			delete(remaining, e.Ref)
		}
		for _, e := range batch {
			for _, dependent := range g.dependents[e.Ref] {
				if remaining[dependent] {
					indegree[dependent]--
				}
			}
		}
		batches = append(batches, batch)
	}
	return batches, nil
}
