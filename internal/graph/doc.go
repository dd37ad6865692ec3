// Package graph builds the entity model of a project: typed nodes (module,
// build, service, task, test) addressed by stable (kind, name) refs, with
// dependency edges stored as ref lists.
//
// The ConfigGraph is constructed once per configuration snapshot, validates
// reference integrity and acyclicity up front, and answers structural
// queries (lookup, transitive dependencies and dependents, topological
// batches). It is immutable after construction and therefore safe to share
// across concurrently running work items.
package graph
