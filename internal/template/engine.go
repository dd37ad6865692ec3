// Package template renders command descriptors from module declarations
// before they are executed. Templates are standard Go text/template with
// the sprig function map; unknown fields are hard errors so a typo in a
// declaration fails the work item instead of silently producing an empty
// string.
package template

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders command strings against a Context.
type Engine struct {
	funcs template.FuncMap
}

// New creates a template engine.
func New() *Engine {
	return &Engine{funcs: sprig.TxtFuncMap()}
}

// Render renders a single template string.
func (e *Engine) Render(text string, ctx *Context) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("command").Funcs(e.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid template %q: %w", text, err)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, ctx); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", text, err)
	}
	return sb.String(), nil
}

// RenderAll renders every element of a command vector.
func (e *Engine) RenderAll(args []string, ctx *Context) ([]string, error) {
	result := make([]string, len(args))
	for i, arg := range args {
		rendered, err := e.Render(arg, ctx)
		if err != nil {
			return nil, err
		}
		result[i] = rendered
	}
	return result, nil
}

// RenderMap renders every value of an environment map.
func (e *Engine) RenderMap(env map[string]string, ctx *Context) (map[string]string, error) {
	if env == nil {
		return nil, nil
	}
	result := make(map[string]string, len(env))
	for k, v := range env {
		rendered, err := e.Render(v, ctx)
		if err != nil {
			return nil, err
		}
		result[k] = rendered
	}
	return result, nil
}
