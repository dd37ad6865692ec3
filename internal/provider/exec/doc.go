// Package exec is the reference provider: it executes build, deploy, task
// and test operations as local commands in the module directory, rendering
// command descriptors through the template engine first. Deployed services
// run as child processes tracked in a registry; builds are cached across
// runs through the local store, keyed by module version.
package exec
