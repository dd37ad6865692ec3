package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"garden/internal/events"
	"garden/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency bounds the number of simultaneously processing work
// items when no explicit limit is configured.
const DefaultConcurrency = 6

// Config configures a TaskGraph.
type Config struct {
	// Concurrency is the maximum number of work items processing at once.
	// Zero means DefaultConcurrency.
	Concurrency int
	// Bus receives lifecycle events. Optional; a private bus is created
	// when nil so publishing never needs a nil check.
	Bus *events.Bus
}

// TaskGraph is the scheduler/executor. It accepts batches of root work
// items, expands them and their dependencies into an execution plan, runs
// the plan under a bounded worker limit, deduplicates requests by key, and
// contains failure to the dependency relation.
//
// The node table doubles as the run-scoped result cache: a TaskGraph
// instance is one run, and a completed key requested again within the same
// instance is served without re-execution. Cross-run caching is the work
// item implementation's concern.
type TaskGraph struct {
	bus *events.Bus
	sem *semaphore.Weighted

	mu    sync.Mutex
	nodes map[string]*node
}

// node is one scheduled work item. Status, output and err are guarded by
// the TaskGraph mutex until done is closed; after that they are stable and
// may be read freely.
type node struct {
	task    Task
	key     string
	batchID string
	deps    []*node

	status events.Status
	output interface{}
	err    error

	done chan struct{}
}

// New creates a TaskGraph for one run.
func New(cfg Config) *TaskGraph {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	bus := cfg.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	return &TaskGraph{
		bus:   bus,
		sem:   semaphore.NewWeighted(int64(concurrency)),
		nodes: make(map[string]*node),
	}
}

// Process runs a batch of root work items and returns once every one of
// them is terminal. Plan construction errors (*MissingDependencyError,
// *CyclicTaskDependencyError) are returned before anything executes.
// Execution failures are not errors of the batch: the returned Results maps
// every root key to its terminal status, mixing completions, errors and
// aborts. Cancelling ctx aborts all non-terminal items with ErrCanceled.
//
// Concurrent Process calls on the same TaskGraph coalesce on shared keys:
// a key in flight from another batch is attached to, not re-executed.
func (tg *TaskGraph) Process(ctx context.Context, batchID string, roots []Task) (Results, error) {
	if batchID == "" {
		batchID = uuid.NewString()
	}

	rootNodes, admitted, err := tg.plan(ctx, batchID, roots)
	if err != nil {
		return nil, err
	}
	logging.Debug("TaskGraph", "Batch %s: %d roots expanded to %d new work items", batchID, len(roots), len(admitted))

	for _, n := range admitted {
		tg.publish(n, events.StatusPending, nil, nil)
	}
	for _, n := range admitted {
		go tg.run(ctx, n)
	}

	results := make(Results, len(rootNodes))
	for _, n := range rootNodes {
		<-n.done
		results[n.key] = Result{Status: n.status, Output: n.output, Err: n.err}
	}
	logging.Debug("TaskGraph", "Batch %s complete", batchID)
	return results, nil
}

// plan expands roots into nodes. New nodes are staged locally and only
// committed to the shared table once the whole expansion succeeded, so a
// failed plan leaves no orphaned never-run nodes behind.
func (tg *TaskGraph) plan(ctx context.Context, batchID string, roots []Task) (rootNodes, admitted []*node, err error) {
	tg.mu.Lock()
	defer tg.mu.Unlock()

	staged := make(map[string]*node)
	for _, t := range roots {
		n, err := tg.expand(ctx, batchID, t, staged, nil)
		if err != nil {
			return nil, nil, err
		}
		if !slices.Contains(rootNodes, n) {
			rootNodes = append(rootNodes, n)
		}
	}

	for key, n := range staged {
		tg.nodes[key] = n
		admitted = append(admitted, n)
	}
	return rootNodes, admitted, nil
}

func (tg *TaskGraph) expand(ctx context.Context, batchID string, t Task, staged map[string]*node, path []string) (*node, error) {
	key := t.Key()
	if i := slices.Index(path, key); i >= 0 {
		return nil, &CyclicTaskDependencyError{Path: append(slices.Clone(path[i:]), key)}
	}
	if n, ok := tg.nodes[key]; ok {
		return n, nil
	}
	if n, ok := staged[key]; ok {
		return n, nil
	}

	deps, err := t.Dependencies(ctx)
	if err != nil {
		return nil, &MissingDependencyError{Key: key, Cause: err}
	}

	path = append(path, key)
	depNodes := make([]*node, 0, len(deps))
	for _, dep := range deps {
		dn, err := tg.expand(ctx, batchID, dep, staged, path)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(depNodes, dn) {
			depNodes = append(depNodes, dn)
		}
	}

	n := &node{
		task:    t,
		key:     key,
		batchID: batchID,
		deps:    depNodes,
		status:  events.StatusPending,
		done:    make(chan struct{}),
	}
	staged[key] = n
	return n, nil
}

// run drives one node from pending to a terminal status. It blocks until
// every dependency is terminal, so a node never starts early regardless of
// the order concurrent completions arrive in.
func (tg *TaskGraph) run(ctx context.Context, n *node) {
	for _, dep := range n.deps {
		select {
		case <-dep.done:
		case <-ctx.Done():
			tg.finish(n, events.StatusAborted, nil, ErrCanceled)
			return
		}
	}

	// All deps terminal; fields are stable now.
	for _, dep := range n.deps {
		if dep.status != events.StatusComplete {
			tg.finish(n, events.StatusAborted, nil, &DependencyFailedError{Key: dep.key, Cause: dep.err})
			return
		}
	}

	if err := tg.sem.Acquire(ctx, 1); err != nil {
		tg.finish(n, events.StatusAborted, nil, ErrCanceled)
		return
	}
	defer tg.sem.Release(1)

	tg.setProcessing(n)

	depResults := make(ResultSet, len(n.deps))
	for _, dep := range n.deps {
		depResults[dep.key] = Result{Status: dep.status, Output: dep.output, Err: dep.err}
	}

	output, err := safeExecute(ctx, n.task, depResults)
	switch {
	case err == nil:
		tg.finish(n, events.StatusComplete, output, nil)
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, ErrCanceled)):
		tg.finish(n, events.StatusAborted, nil, ErrCanceled)
	default:
		logging.Debug("TaskGraph", "Work item %s failed: %v", n.key, err)
		tg.finish(n, events.StatusError, nil, err)
	}
}

// safeExecute shields the scheduler from a panicking work item: the panic
// becomes an ordinary execution error on that item.
func safeExecute(ctx context.Context, t Task, deps ResultSet) (output interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work item panicked: %v", r)
		}
	}()
	return t.Execute(ctx, deps)
}

func (tg *TaskGraph) setProcessing(n *node) {
	tg.mu.Lock()
	n.status = events.StatusProcessing
	tg.mu.Unlock()
	tg.publish(n, events.StatusProcessing, nil, nil)
}

func (tg *TaskGraph) finish(n *node, status events.Status, output interface{}, err error) {
	tg.mu.Lock()
	n.status = status
	n.output = output
	n.err = err
	tg.mu.Unlock()
	tg.publish(n, status, output, err)
	close(n.done)
}

func (tg *TaskGraph) publish(n *node, status events.Status, output interface{}, err error) {
	tg.bus.Publish(events.Event{
		BatchID:   n.batchID,
		Key:       n.key,
		Ref:       n.task.Ref(),
		Op:        n.task.Kind(),
		Status:    status,
		Timestamp: time.Now(),
		Result:    output,
		Err:       err,
	})
}
