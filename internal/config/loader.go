package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"garden/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Load parses the given configuration files (paths relative to root) into a
// ProjectSnapshot. Files are processed in the order given; documents within
// a file in stream order. Exactly one project document must be present.
//
// Load applies defaults and validates the snapshot; it never returns a
// partially valid snapshot together with a nil error.
func Load(root string, files []string) (*ProjectSnapshot, error) {
	snapshot := &ProjectSnapshot{}
	seenProject := false

	for _, rel := range files {
		path := filepath.Join(root, rel)
		docs, err := parseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", rel, err)
		}

		for _, doc := range docs {
			switch doc.kind {
			case KindProject:
				if seenProject {
					return nil, &ValidationError{Path: rel, Msg: fmt.Sprintf("second project document (project already declared in %s)", snapshot.Project.Path)}
				}
				var p ProjectConfig
				if err := doc.node.Decode(&p); err != nil {
					return nil, fmt.Errorf("failed to decode project document in %s: %w", rel, err)
				}
				p.Path = rel
				snapshot.Project = p
				seenProject = true
			case KindModule:
				var m ModuleConfig
				if err := doc.node.Decode(&m); err != nil {
					return nil, fmt.Errorf("failed to decode module document in %s: %w", rel, err)
				}
				m.Path = filepath.Dir(rel)
				snapshot.Modules = append(snapshot.Modules, m)
			default:
				return nil, &ValidationError{Path: rel, Field: "kind", Msg: fmt.Sprintf("unknown document kind %q", doc.kind)}
			}
		}
	}

	if !seenProject {
		return nil, ErrNoProject
	}

	applyDefaults(snapshot)
	if err := validate(snapshot); err != nil {
		return nil, err
	}

	logging.Debug("Config", "Loaded project %s with %d modules from %d files",
		snapshot.Project.Name, len(snapshot.Modules), len(files))
	return snapshot, nil
}

type document struct {
	kind string
	node *yaml.Node
}

// parseFile reads one multi-document YAML file and returns its documents
// with their kind extracted. Empty documents are skipped.
func parseFile(path string) ([]document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []document
	dec := yaml.NewDecoder(f)
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if node.Kind == 0 || (node.Kind == yaml.DocumentNode && len(node.Content) == 0) {
			continue
		}

		var header struct {
			Kind    string    `yaml:"kind"`
			Project yaml.Node `yaml:"project"`
			Module  yaml.Node `yaml:"module"`
		}
		if err := node.Decode(&header); err != nil {
			return nil, err
		}
		if header.Kind == "" {
			// Pre-schema documents wrapped everything under a project: or
			// module: key. Point users at the migration command instead of
			// failing with an opaque decode error.
			if header.Project.Kind != 0 || header.Module.Kind != 0 {
				return nil, fmt.Errorf("document uses the legacy wrapped syntax; run 'garden migrate' to rewrite it")
			}
			return nil, fmt.Errorf("document is missing the kind field")
		}
		docs = append(docs, document{kind: header.Kind, node: &node})
	}
	return docs, nil
}
