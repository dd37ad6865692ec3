package config

import (
	"fmt"
	"regexp"
)

// namePattern restricts entity names to DNS-label style identifiers so they
// can be embedded in work item keys and file paths without escaping.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// validate checks structural invariants that do not require the dependency
// graph: name shape, uniqueness, and non-empty commands. Reference
// resolution and acyclicity are the graph package's concern.
func validate(s *ProjectSnapshot) error {
	if err := validateName(s.Project.Path, "project name", s.Project.Name); err != nil {
		return err
	}
	if s.Project.DefaultEnvironment != "" && s.Environment(s.Project.DefaultEnvironment) == nil {
		return &ValidationError{Path: s.Project.Path, Field: "defaultEnvironment",
			Msg: fmt.Sprintf("environment %q is not declared", s.Project.DefaultEnvironment)}
	}

	envNames := map[string]bool{}
	for _, env := range s.Project.Environments {
		if err := validateName(s.Project.Path, "environment name", env.Name); err != nil {
			return err
		}
		if envNames[env.Name] {
			return &ValidationError{Path: s.Project.Path, Field: "environments",
				Msg: fmt.Sprintf("duplicate environment %q", env.Name)}
		}
		envNames[env.Name] = true
	}

	moduleNames := map[string]string{}
	// Services and tasks share one namespace so dependency references can
	// name either without a kind qualifier.
	runtimeNames := map[string]string{}

	for i := range s.Modules {
		m := &s.Modules[i]
		if err := validateName(m.Path, "module name", m.Name); err != nil {
			return err
		}
		if prev, ok := moduleNames[m.Name]; ok {
			return &ValidationError{Path: m.Path, Field: "name",
				Msg: fmt.Sprintf("module %q already declared in %s", m.Name, prev)}
		}
		moduleNames[m.Name] = m.Path

		for _, svc := range m.Services {
			if err := validateName(m.Path, "service name", svc.Name); err != nil {
				return err
			}
			if len(svc.Command) == 0 {
				return &ValidationError{Path: m.Path, Field: fmt.Sprintf("services.%s.command", svc.Name), Msg: "must not be empty"}
			}
			if err := claimRuntimeName(runtimeNames, m, "service", svc.Name); err != nil {
				return err
			}
		}
		for _, task := range m.Tasks {
			if err := validateName(m.Path, "task name", task.Name); err != nil {
				return err
			}
			if len(task.Command) == 0 {
				return &ValidationError{Path: m.Path, Field: fmt.Sprintf("tasks.%s.command", task.Name), Msg: "must not be empty"}
			}
			if err := claimRuntimeName(runtimeNames, m, "task", task.Name); err != nil {
				return err
			}
		}

		testNames := map[string]bool{}
		for _, test := range m.Tests {
			if err := validateName(m.Path, "test name", test.Name); err != nil {
				return err
			}
			if len(test.Command) == 0 {
				return &ValidationError{Path: m.Path, Field: fmt.Sprintf("tests.%s.command", test.Name), Msg: "must not be empty"}
			}
			if testNames[test.Name] {
				return &ValidationError{Path: m.Path, Field: "tests",
					Msg: fmt.Sprintf("duplicate test %q in module %q", test.Name, m.Name)}
			}
			testNames[test.Name] = true
		}
	}

	return nil
}

func claimRuntimeName(claimed map[string]string, m *ModuleConfig, kind, name string) error {
	if prev, ok := claimed[name]; ok {
		return &ValidationError{Path: m.Path, Field: kind + "s",
			Msg: fmt.Sprintf("%s %q conflicts with %s (service and task names share one namespace)", kind, name, prev)}
	}
	claimed[name] = fmt.Sprintf("%s %q in module %q", kind, name, m.Name)
	return nil
}

func validateName(path, field, name string) error {
	if name == "" {
		return &ValidationError{Path: path, Field: field, Msg: "must not be empty"}
	}
	if !namePattern.MatchString(name) {
		return &ValidationError{Path: path, Field: field,
			Msg: fmt.Sprintf("%q must start with a lowercase letter and contain only lowercase letters, digits and dashes", name)}
	}
	return nil
}
