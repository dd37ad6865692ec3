package vcs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name garden configuration files must have.
const ConfigFileName = "garden.yml"

// ErrProjectRootNotFound indicates that no directory between the starting
// point and the filesystem root contains a project configuration.
var ErrProjectRootNotFound = errors.New("no project configuration found in this directory or any parent")

// FindProjectRoot locates the project root by probing start and its parents
// for a garden.yml with a project document. The walk is a bounded loop that
// terminates at the filesystem root.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	for {
		ok, err := hasProjectDocument(filepath.Join(dir, ConfigFileName))
		if err != nil {
			return "", err
		}
		if ok {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrProjectRootNotFound
		}
		dir = parent
	}
}

// hasProjectDocument reports whether path exists and contains a project
// document. Legacy wrapped documents (top-level project: key) also count so
// 'garden migrate' can be run from inside an unmigrated project.
func hasProjectDocument(path string) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	for {
		var doc struct {
			Kind    string    `yaml:"kind"`
			Project yaml.Node `yaml:"project"`
		}
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			// An unparsable file is not a project marker; keep probing
			// parents rather than failing root discovery outright.
			return false, nil
		}
		if doc.Kind == "Project" || doc.Project.Kind != 0 {
			return true, nil
		}
	}
}
