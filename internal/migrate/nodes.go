package migrate

import "gopkg.in/yaml.v3"

// Helpers over yaml mapping nodes. A mapping's Content slice alternates
// key and value nodes.

func mapValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func mapDelete(m *yaml.Node, key string) {
	if m == nil || m.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return
		}
	}
}

func mapAppend(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, scalarNode(key), value)
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func scalarValue(n *yaml.Node) string {
	if n == nil {
		return ""
	}
	return n.Value
}

// cloneNode deep-copies a node so a defaults entry can be appended to
// several environments without aliasing.
func cloneNode(n *yaml.Node) *yaml.Node {
	copied := *n
	if len(n.Content) > 0 {
		copied.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			copied.Content[i] = cloneNode(c)
		}
	}
	return &copied
}
