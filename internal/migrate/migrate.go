// Package migrate rewrites legacy garden.yml documents into the current
// schema: it flattens the old project:/module: wrappers, renames the legacy
// "generic" module type to "exec", and hoists the removed
// environmentDefaults block into the fields that replaced it. The rewriter
// is a standalone batch transform over yaml documents; it is not part of
// the graph engine and runs before any configuration is loaded.
//
// Transforms operate on yaml.Node trees so comments and key order of
// untouched parts survive the rewrite.
package migrate

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// legacyModuleType is renamed to config.ModuleTypeExec ("exec"). Kept as a
// literal here so the migration stays frozen even if the current schema
// moves on.
const legacyModuleType = "generic"

// Migrate rewrites one configuration file. It returns the rewritten
// content and whether anything changed. Current-schema documents pass
// through untouched.
func Migrate(data []byte) ([]byte, bool, error) {
	var docs []*yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to parse document: %w", err)
		}
		docs = append(docs, &node)
	}

	changed := false
	for _, doc := range docs {
		c, err := migrateDocument(doc)
		if err != nil {
			return nil, false, err
		}
		changed = changed || c
	}
	if !changed {
		return data, false, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return nil, false, fmt.Errorf("failed to render migrated document: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

func migrateDocument(doc *yaml.Node) (bool, error) {
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return false, nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return false, nil
	}

	changed := false

	// Old syntax wrapped the whole document under a project: or module:
	// key. Flatten the wrapper and tag the document with its kind.
	if inner := mapValue(root, "project"); inner != nil && mapValue(root, "kind") == nil {
		flattenWrapper(root, inner, "Project")
		changed = true
	}
	if inner := mapValue(root, "module"); inner != nil && mapValue(root, "kind") == nil {
		flattenWrapper(root, inner, "Module")
		changed = true
	}

	kindNode := mapValue(root, "kind")
	if kindNode == nil {
		return changed, nil
	}

	switch kindNode.Value {
	case "Module":
		if t := mapValue(root, "type"); t != nil && t.Value == legacyModuleType {
			t.Value = "exec"
			changed = true
		}
	case "Project":
		c, err := hoistEnvironmentDefaults(root)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	return changed, nil
}

// flattenWrapper replaces the wrapper document's content with kind followed
// by the wrapped mapping's entries.
func flattenWrapper(root, inner *yaml.Node, kind string) {
	content := []*yaml.Node{
		scalarNode("kind"),
		scalarNode(kind),
	}
	if inner.Kind == yaml.MappingNode {
		content = append(content, inner.Content...)
	}
	root.Content = content
}

// hoistEnvironmentDefaults distributes the legacy environmentDefaults
// block: providers are merged into every environment (duplicate provider
// names across the merge are an error), varfile is pushed into every
// environment that has none (a collision with an environment-level varfile
// is an error), and variables move to the project level.
func hoistEnvironmentDefaults(project *yaml.Node) (bool, error) {
	defaults := mapValue(project, "environmentDefaults")
	if defaults == nil {
		return false, nil
	}
	mapDelete(project, "environmentDefaults")

	defProviders := mapValue(defaults, "providers")
	defVariables := mapValue(defaults, "variables")
	defVarfile := mapValue(defaults, "varfile")

	environments := mapValue(project, "environments")
	if environments != nil && environments.Kind == yaml.SequenceNode {
		for _, env := range environments.Content {
			envName := scalarValue(mapValue(env, "name"))

			if defProviders != nil && defProviders.Kind == yaml.SequenceNode {
				if err := mergeProviders(env, envName, defProviders); err != nil {
					return false, err
				}
			}

			if defVarfile != nil {
				if existing := mapValue(env, "varfile"); existing != nil {
					return false, fmt.Errorf(
						"environment %q declares varfile %q, which conflicts with environmentDefaults.varfile %q",
						envName, existing.Value, defVarfile.Value)
				}
				mapAppend(env, "varfile", cloneNode(defVarfile))
			}
		}
	}

	if defVariables != nil && defVariables.Kind == yaml.MappingNode {
		mergeVariables(project, defVariables)
	}
	return true, nil
}

func mergeProviders(env *yaml.Node, envName string, defProviders *yaml.Node) error {
	providers := mapValue(env, "providers")
	if providers == nil {
		providers = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		mapAppend(env, "providers", providers)
	}

	seen := map[string]bool{}
	for _, p := range providers.Content {
		seen[scalarValue(mapValue(p, "name"))] = true
	}
	for _, p := range defProviders.Content {
		name := scalarValue(mapValue(p, "name"))
		if seen[name] {
			return fmt.Errorf("duplicate provider %q in environment %q after merging environmentDefaults", name, envName)
		}
		seen[name] = true
		providers.Content = append(providers.Content, cloneNode(p))
	}
	return nil
}

// mergeVariables moves defaulted variables to the project level. Existing
// project-level keys win over defaults.
func mergeVariables(project, defVariables *yaml.Node) {
	variables := mapValue(project, "variables")
	if variables == nil {
		variables = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		mapAppend(project, "variables", variables)
	}

	existing := map[string]bool{}
	for i := 0; i+1 < len(variables.Content); i += 2 {
		existing[variables.Content[i].Value] = true
	}
	for i := 0; i+1 < len(defVariables.Content); i += 2 {
		key := defVariables.Content[i]
		if existing[key.Value] {
			continue
		}
		variables.Content = append(variables.Content, cloneNode(key), cloneNode(defVariables.Content[i+1]))
	}
}
