package config

// applyDefaults fills in the optional fields of a freshly parsed snapshot.
// It runs before validation so validation can assume defaults are present.
func applyDefaults(s *ProjectSnapshot) {
	if len(s.Project.Environments) == 0 {
		s.Project.Environments = []EnvironmentConfig{{Name: DefaultEnvironmentName}}
	}
	if s.Project.DefaultEnvironment == "" {
		s.Project.DefaultEnvironment = s.Project.Environments[0].Name
	}
	if s.Project.Variables == nil {
		s.Project.Variables = map[string]interface{}{}
	}

	for i := range s.Modules {
		m := &s.Modules[i]
		if m.Type == "" {
			m.Type = ModuleTypeExec
		}
		if m.Variables == nil {
			m.Variables = map[string]interface{}{}
		}
	}
}
