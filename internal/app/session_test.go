package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"garden/internal/events"
	"garden/internal/graph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestProject lays out a small project whose commands leave marker
// files, so tests can observe what actually ran.
func writeTestProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	write("garden.yml", `kind: Project
name: demo
environments:
  - name: local
    variables:
      region: local-region
`)
	write("lib/garden.yml", `kind: Module
name: lib
build:
  command: [sh, -c, "echo lib >> ../built.log"]
`)
	write("api/garden.yml", `kind: Module
name: api
build:
  command: [sh, -c, "echo api >> ../built.log"]
  dependencies: [lib]
tasks:
  - name: migrate
    command: [sh, -c, "echo migrated > ../migrate.log"]
tests:
  - name: smoke
    command: [sh, -c, "echo {{.Variables.region}} > ../test.log"]
    dependencies: [migrate]
`)
	return root
}

func newTestSession(t *testing.T, root string) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), Options{Root: root, Version: "0.1.0"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestNewSessionBootstrapsProject(t *testing.T) {
	root := writeTestProject(t)
	s := newTestSession(t, root)

	assert.Equal(t, "demo", s.Snapshot.Project.Name)
	assert.Equal(t, "local", s.Environment)
	assert.NotEmpty(t, s.Fingerprint)
	require.NotNil(t, s.Graph.Get(graph.ModuleRef("api")))
	require.NotNil(t, s.Graph.Get(graph.TaskRef("migrate")))
}

func TestNewSessionRejectsUnknownEnvironment(t *testing.T) {
	root := writeTestProject(t)

	_, err := NewSession(context.Background(), Options{Root: root, Environment: "prod"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `environment "prod"`)
}

func TestBuildRunsModulesInDependencyOrder(t *testing.T) {
	root := writeTestProject(t)
	s := newTestSession(t, root)

	results, err := s.Build(context.Background(), []string{"api"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results.Failed())

	built, err := os.ReadFile(filepath.Join(root, "built.log"))
	require.NoError(t, err)
	assert.Equal(t, "lib\napi\n", string(built))
}

func TestBuildIsCachedAcrossSessions(t *testing.T) {
	root := writeTestProject(t)

	s := newTestSession(t, root)
	_, err := s.Build(context.Background(), []string{"api"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "built.log")))
	s.Close(context.Background())

	// The module trees did not change, so a new session reuses the
	// recorded build results and runs no commands.
	s2 := newTestSession(t, root)
	results, err := s2.Build(context.Background(), []string{"api"})
	require.NoError(t, err)
	assert.False(t, results.Failed())
	assert.NoFileExists(t, filepath.Join(root, "built.log"))
}

func TestTestRunsDependenciesFirst(t *testing.T) {
	root := writeTestProject(t)
	s := newTestSession(t, root)

	results, err := s.Test(context.Background(), []string{"api"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results.Failed())

	migrated, err := os.ReadFile(filepath.Join(root, "migrate.log"))
	require.NoError(t, err)
	assert.Equal(t, "migrated\n", string(migrated))

	// The test command saw the environment's variables.
	tested, err := os.ReadFile(filepath.Join(root, "test.log"))
	require.NoError(t, err)
	assert.Equal(t, "local-region\n", string(tested))
}

func TestRunTask(t *testing.T) {
	root := writeTestProject(t)
	s := newTestSession(t, root)

	results, err := s.RunTask(context.Background(), "migrate")
	require.NoError(t, err)
	assert.False(t, results.Failed())
	assert.FileExists(t, filepath.Join(root, "migrate.log"))
}

func TestRunTaskUnknownName(t *testing.T) {
	root := writeTestProject(t)
	s := newTestSession(t, root)

	var notFound *graph.EntityNotFoundError
	_, err := s.RunTask(context.Background(), "ghost")
	require.ErrorAs(t, err, &notFound)
}

func TestBuildUnknownModule(t *testing.T) {
	root := writeTestProject(t)
	s := newTestSession(t, root)

	var notFound *graph.EntityNotFoundError
	_, err := s.Build(context.Background(), []string{"ghost"})
	require.ErrorAs(t, err, &notFound)
}

func TestSessionPublishesLifecycleEvents(t *testing.T) {
	root := writeTestProject(t)
	s := newTestSession(t, root)

	var seen []events.Status
	done := make(chan struct{})
	s.Bus.Subscribe(func(ev events.Event) {
		seen = append(seen, ev.Status)
		if ev.Status.Terminal() {
			close(done)
		}
	})

	_, err := s.Build(context.Background(), []string{"lib"})
	require.NoError(t, err)
	<-done

	assert.Equal(t, []events.Status{events.StatusPending, events.StatusProcessing, events.StatusComplete}, seen)
}

func TestReloadPicksUpNewModules(t *testing.T) {
	root := writeTestProject(t)
	s := newTestSession(t, root)
	require.Nil(t, s.Graph.Get(graph.ModuleRef("web")))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "web"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "web", "garden.yml"),
		[]byte("kind: Module\nname: web\n"), 0o644))

	require.NoError(t, s.Reload(context.Background()))
	require.NotNil(t, s.Graph.Get(graph.ModuleRef("web")))
}

func TestReloadKeepsOldGraphOnBrokenConfig(t *testing.T) {
	root := writeTestProject(t)
	s := newTestSession(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "garden.yml"),
		[]byte("kind: Module\nname: LIB\n"), 0o644))

	require.Error(t, s.Reload(context.Background()))
	require.NotNil(t, s.Graph.Get(graph.ModuleRef("lib")), "previous graph survives a failed reload")
}
