package template

// Context is the data exposed to command templates.
type Context struct {
	Project   ProjectContext
	Module    ModuleContext
	Variables map[string]interface{}
	Runtime   RuntimeContext
}

// ProjectContext exposes project-level fields.
type ProjectContext struct {
	Name        string
	Environment string
}

// ModuleContext exposes the owning module's fields.
type ModuleContext struct {
	Name    string
	Path    string
	Version string
}

// RuntimeContext exposes the state of already-deployed services so a
// command can reference, for example, another service's address.
type RuntimeContext struct {
	Services map[string]ServiceRuntime
}

// ServiceRuntime is the runtime information of one deployed service.
type ServiceRuntime struct {
	Name    string
	State   string
	PID     int
	Version string
}
