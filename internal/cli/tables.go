package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"garden/internal/events"
	"garden/internal/graph"
	"garden/internal/taskgraph"
	gardenstrings "garden/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

// RenderEntityTable prints entities with their dependencies, one row per
// entity, in the order given.
func RenderEntityTable(out io.Writer, entities []*graph.Entity) {
	t := newTable(out)
	t.AppendHeader(table.Row{"KIND", "NAME", "MODULE", "DEPENDENCIES", "DESCRIPTION"})
	for _, e := range entities {
		deps := make([]string, len(e.Dependencies))
		for i, d := range e.Dependencies {
			deps[i] = d.String()
		}
		t.AppendRow(table.Row{
			e.Ref.Kind.String(),
			e.Ref.Name,
			e.ModuleName,
			strings.Join(deps, ", "),
			gardenstrings.TruncateDescription(e.Description, gardenstrings.DefaultDescriptionMaxLen),
		})
	}
	t.Render()
}

// RenderBatchTable prints topological batches: every entity in a level
// depends only on entities in earlier levels.
func RenderBatchTable(out io.Writer, batches [][]*graph.Entity) {
	t := newTable(out)
	t.AppendHeader(table.Row{"LEVEL", "ENTITIES"})
	for i, batch := range batches {
		names := make([]string, len(batch))
		for j, e := range batch {
			names[j] = e.Ref.String()
		}
		t.AppendRow(table.Row{i, strings.Join(names, ", ")})
	}
	t.Render()
}

// RenderResultsTable prints the terminal outcome of every root of a batch,
// sorted by key so output is stable.
func RenderResultsTable(out io.Writer, results taskgraph.Results) {
	keys := make([]string, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	t := newTable(out)
	t.AppendHeader(table.Row{"WORK ITEM", "STATUS", "DETAIL"})
	for _, key := range keys {
		res := results[key]
		t.AppendRow(table.Row{key, statusCell(res.Status), detailCell(res)})
	}
	t.Render()
}

func statusCell(s events.Status) string {
	switch s {
	case events.StatusComplete:
		return "✓ complete"
	case events.StatusError:
		return "✗ error"
	case events.StatusAborted:
		return "- aborted"
	default:
		return s.String()
	}
}

func detailCell(res taskgraph.Result) string {
	if res.Err != nil {
		return gardenstrings.TruncateDescription(res.Err.Error(), 100)
	}
	if res.Output == nil {
		return ""
	}
	if s, ok := res.Output.(fmt.Stringer); ok {
		return gardenstrings.TruncateDescription(s.String(), 100)
	}
	return ""
}
