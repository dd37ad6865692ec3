package config

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CheckRequiredVersion verifies that the running engine version satisfies
// the project's requiredVersion constraint (e.g. ">= 0.4.0"). A project
// without a constraint accepts any version, as do development builds whose
// version string is not a valid semver.
func (p *ProjectConfig) CheckRequiredVersion(engineVersion string) error {
	if p.RequiredVersion == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(p.RequiredVersion)
	if err != nil {
		return &ValidationError{Path: p.Path, Field: "requiredVersion",
			Msg: fmt.Sprintf("invalid constraint %q: %v", p.RequiredVersion, err)}
	}

	v, err := semver.NewVersion(engineVersion)
	if err != nil {
		// "dev" and other non-release builds bypass the check.
		return nil
	}

	if !constraint.Check(v) {
		return fmt.Errorf("project %q requires garden %s, but this is %s", p.Name, p.RequiredVersion, engineVersion)
	}
	return nil
}
