// Package provider turns graph entities into schedulable work items. The
// Factory owns key construction and the uniform dependency expansion rules;
// the Router dispatches execution to the Provider registered for the owning
// module's type. Providers are external collaborators to the graph engine:
// they only have to satisfy the work item contract.
package provider
