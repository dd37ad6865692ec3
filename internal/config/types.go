package config

// Document kinds accepted in garden.yml files. A configuration file is a
// multi-document YAML stream; every document declares its kind.
const (
	KindProject = "Project"
	KindModule  = "Module"
)

// ModuleTypeExec is the built-in module type whose build/deploy/run
// operations execute local commands.
const ModuleTypeExec = "exec"

// DefaultEnvironmentName is used when a project declares no environments.
const DefaultEnvironmentName = "local"

// ProjectConfig is the project document of a configuration snapshot.
// Exactly one project document must exist per project tree.
type ProjectConfig struct {
	Kind               string                 `yaml:"kind"`
	Name               string                 `yaml:"name"`
	DefaultEnvironment string                 `yaml:"defaultEnvironment,omitempty"`
	Environments       []EnvironmentConfig    `yaml:"environments,omitempty"`
	Providers          []ProviderConfig       `yaml:"providers,omitempty"`
	Variables          map[string]interface{} `yaml:"variables,omitempty"`
	RequiredVersion    string                 `yaml:"requiredVersion,omitempty"`

	// Path is the file the document was read from. Set by the loader.
	Path string `yaml:"-"`
}

// EnvironmentConfig describes one named environment of a project.
type EnvironmentConfig struct {
	Name      string                 `yaml:"name"`
	Providers []ProviderConfig       `yaml:"providers,omitempty"`
	Variables map[string]interface{} `yaml:"variables,omitempty"`
	Varfile   string                 `yaml:"varfile,omitempty"`
}

// ProviderConfig names a provider made available to an environment.
type ProviderConfig struct {
	Name string `yaml:"name"`
}

// ModuleConfig is one module document: a buildable unit owning services,
// tasks and tests.
type ModuleConfig struct {
	Kind         string                 `yaml:"kind"`
	Name         string                 `yaml:"name"`
	Type         string                 `yaml:"type,omitempty"`
	Description  string                 `yaml:"description,omitempty"`
	Build        BuildConfig            `yaml:"build,omitempty"`
	Services     []ServiceConfig        `yaml:"services,omitempty"`
	Tasks        []TaskConfig           `yaml:"tasks,omitempty"`
	Tests        []TestConfig           `yaml:"tests,omitempty"`
	Variables    map[string]interface{} `yaml:"variables,omitempty"`

	// Path is the directory containing the module document. Set by the
	// loader, never read from YAML.
	Path string `yaml:"-"`
}

// BuildConfig describes how a module is built and which modules must be
// built before it.
type BuildConfig struct {
	Command      []string `yaml:"command,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// ServiceConfig declares a long-running process owned by a module.
// Dependencies reference services or tasks by name.
type ServiceConfig struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description,omitempty"`
	Command      []string          `yaml:"command"`
	Dependencies []string          `yaml:"dependencies,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
	ReadyCommand []string          `yaml:"readyCommand,omitempty"`
}

// TaskConfig declares a run-to-completion unit owned by a module, for
// example a database migration.
type TaskConfig struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description,omitempty"`
	Command      []string          `yaml:"command"`
	Dependencies []string          `yaml:"dependencies,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
}

// TestConfig declares a verification unit owned by a module. It has the
// same shape as a task.
type TestConfig struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description,omitempty"`
	Command      []string          `yaml:"command"`
	Dependencies []string          `yaml:"dependencies,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
}

// ProjectSnapshot is the result of one load pass: the project document plus
// all module documents in declaration order. It is immutable input to graph
// construction; any file change triggers a full reload.
type ProjectSnapshot struct {
	Project ProjectConfig
	Modules []ModuleConfig
}

// Module returns the module with the given name, or nil.
func (s *ProjectSnapshot) Module(name string) *ModuleConfig {
	for i := range s.Modules {
		if s.Modules[i].Name == name {
			return &s.Modules[i]
		}
	}
	return nil
}

// Environment returns the environment configuration for the given name, or
// nil if the project does not declare it.
func (s *ProjectSnapshot) Environment(name string) *EnvironmentConfig {
	for i := range s.Project.Environments {
		if s.Project.Environments[i].Name == name {
			return &s.Project.Environments[i]
		}
	}
	return nil
}
