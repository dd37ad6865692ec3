// Package taskgraph is the scheduled-execution engine of garden: a
// general-purpose DAG scheduler over keyed work items with deduplication,
// run-scoped result caching and partial-failure containment.
//
// Callers implement the Task contract (key, dependencies, execute) and
// submit batches of roots to a TaskGraph. The engine expands roots into a
// plan, runs it leaves-first under a bounded concurrency limit, executes
// each key at most once per run, and propagates a dependency failure as an
// aborted status to its dependents while unrelated branches keep running.
package taskgraph
