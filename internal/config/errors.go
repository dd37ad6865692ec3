package config

import (
	"errors"
	"fmt"
)

// ErrNoProject indicates that no project document was found among the
// scanned configuration files.
var ErrNoProject = errors.New("no project configuration found")

// ValidationError describes a single invalid declaration. Path identifies
// the file the offending document came from.
type ValidationError struct {
	Path  string
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration in %s: %s: %s", e.Path, e.Field, e.Msg)
	}
	return fmt.Sprintf("invalid configuration in %s: %s", e.Path, e.Msg)
}
