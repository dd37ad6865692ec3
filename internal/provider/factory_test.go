package provider

import (
	"context"
	"sync"
	"testing"

	"garden/internal/config"
	"garden/internal/events"
	"garden/internal/graph"
	"garden/internal/taskgraph"
	"garden/internal/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider records the targets it receives and returns canned outputs.
// Operations may arrive from concurrent scheduler workers.
type fakeProvider struct {
	typ string

	mu      sync.Mutex
	targets []*Target
}

func (p *fakeProvider) Type() string { return p.typ }

func (p *fakeProvider) record(t *Target) {
	p.mu.Lock()
	p.targets = append(p.targets, t)
	p.mu.Unlock()
}

func (p *fakeProvider) recorded() []*Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targets
}

func (p *fakeProvider) Build(ctx context.Context, t *Target) (interface{}, error) {
	p.record(t)
	return &BuildOutput{Module: t.Module.Name, Version: t.Version}, nil
}

func (p *fakeProvider) Deploy(ctx context.Context, t *Target) (interface{}, error) {
	p.record(t)
	return &DeployOutput{Service: template.ServiceRuntime{
		Name: t.Entity.Ref.Name, State: "ready", PID: 1000, Version: t.Version,
	}}, nil
}

func (p *fakeProvider) RunTask(ctx context.Context, t *Target) (interface{}, error) {
	p.record(t)
	return &RunOutput{Name: t.Entity.Ref.Name}, nil
}

func (p *fakeProvider) RunTest(ctx context.Context, t *Target) (interface{}, error) {
	p.record(t)
	return &RunOutput{Name: t.Entity.Ref.Name}, nil
}

func testSnapshot() *config.ProjectSnapshot {
	return &config.ProjectSnapshot{
		Project: config.ProjectConfig{
			Kind: config.KindProject,
			Name: "demo",
			Environments: []config.EnvironmentConfig{
				{Name: "local", Variables: map[string]interface{}{"region": "local-region"}},
			},
			Variables: map[string]interface{}{"region": "global-region", "owner": "platform"},
		},
		Modules: []config.ModuleConfig{
			{
				Kind: config.KindModule,
				Name: "lib",
				Type: config.ModuleTypeExec,
			},
			{
				Kind: config.KindModule,
				Name: "api",
				Type: config.ModuleTypeExec,
				Path: "api",
				Build: config.BuildConfig{
					Command:      []string{"make", "api"},
					Dependencies: []string{"lib"},
				},
				Services: []config.ServiceConfig{
					{Name: "api", Command: []string{"./api"}, Dependencies: []string{"migrate"}},
				},
				Tasks: []config.TaskConfig{
					{Name: "migrate", Command: []string{"./migrate"}},
				},
				Tests: []config.TestConfig{
					{Name: "integ", Command: []string{"make", "test"}, Dependencies: []string{"api"}},
				},
				Variables: map[string]interface{}{"owner": "api-team"},
			},
		},
	}
}

func testFactory(t *testing.T, prov Provider) *Factory {
	t.Helper()
	snapshot := testSnapshot()
	g, err := graph.New(snapshot.Modules)
	require.NoError(t, err)

	versions := graph.NewVersionResolver(g, func(m *config.ModuleConfig) (string, string, error) {
		return "cfg-" + m.Name, "tree-" + m.Name, nil
	})
	return &Factory{
		Graph:       g,
		Router:      NewRouter(prov),
		Versions:    versions,
		Project:     snapshot,
		Environment: "local",
	}
}

func TestTaskKeyEmbedsOperationNameAndVersion(t *testing.T) {
	f := testFactory(t, &fakeProvider{typ: config.ModuleTypeExec})

	task, err := f.Task(graph.BuildRef("api"), events.OpBuild)
	require.NoError(t, err)

	version, err := f.Versions.Version("api")
	require.NoError(t, err)
	assert.Equal(t, "build.api."+version, task.Key())
	assert.Equal(t, graph.BuildRef("api"), task.Ref())
	assert.Equal(t, events.OpBuild, task.Kind())
}

func TestTaskRejectsMismatchedOperation(t *testing.T) {
	f := testFactory(t, &fakeProvider{typ: config.ModuleTypeExec})

	_, err := f.Task(graph.ServiceRef("api"), events.OpBuild)
	require.Error(t, err)

	_, err = f.Task(graph.BuildRef("api"), events.OpDeploy)
	require.Error(t, err)

	_, err = f.Task(graph.TaskRef("migrate"), events.OpRunTest)
	require.Error(t, err)
}

func TestTaskFailsOnUnknownEntity(t *testing.T) {
	f := testFactory(t, &fakeProvider{typ: config.ModuleTypeExec})

	var notFound *graph.EntityNotFoundError
	_, err := f.Task(graph.ServiceRef("ghost"), events.OpDeploy)
	require.ErrorAs(t, err, &notFound)
}

func TestTaskFailsOnUnknownModuleType(t *testing.T) {
	f := testFactory(t, &fakeProvider{typ: "container"})

	var unknown *UnknownModuleTypeError
	_, err := f.Task(graph.BuildRef("api"), events.OpBuild)
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, config.ModuleTypeExec, unknown.ModuleType)
}

func TestBuildDependsOnDependencyBuilds(t *testing.T) {
	f := testFactory(t, &fakeProvider{typ: config.ModuleTypeExec})

	task, err := f.Task(graph.BuildRef("api"), events.OpBuild)
	require.NoError(t, err)

	deps, err := task.Dependencies(context.Background())
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, graph.BuildRef("lib"), deps[0].Ref())
	assert.Equal(t, events.OpBuild, deps[0].Kind())
}

func TestDeployDependsOnOwningBuildAndRuntimeDeps(t *testing.T) {
	f := testFactory(t, &fakeProvider{typ: config.ModuleTypeExec})

	task, err := f.Task(graph.ServiceRef("api"), events.OpDeploy)
	require.NoError(t, err)

	deps, err := task.Dependencies(context.Background())
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, graph.BuildRef("api"), deps[0].Ref())
	assert.Equal(t, events.OpBuild, deps[0].Kind())
	assert.Equal(t, graph.TaskRef("migrate"), deps[1].Ref())
	assert.Equal(t, events.OpRunTask, deps[1].Kind())
}

func TestTestDependsOnServiceDeploy(t *testing.T) {
	f := testFactory(t, &fakeProvider{typ: config.ModuleTypeExec})

	task, err := f.Task(graph.TestRef("api", "integ"), events.OpRunTest)
	require.NoError(t, err)

	deps, err := task.Dependencies(context.Background())
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, graph.BuildRef("api"), deps[0].Ref())
	assert.Equal(t, graph.ServiceRef("api"), deps[1].Ref())
	assert.Equal(t, events.OpDeploy, deps[1].Kind())
}

func TestExecuteDispatchesToProvider(t *testing.T) {
	prov := &fakeProvider{typ: config.ModuleTypeExec}
	f := testFactory(t, prov)

	task, err := f.Task(graph.ServiceRef("api"), events.OpDeploy)
	require.NoError(t, err)

	out, err := task.Execute(context.Background(), taskgraph.ResultSet{})
	require.NoError(t, err)

	deployed, ok := out.(*DeployOutput)
	require.True(t, ok)
	assert.Equal(t, "api", deployed.Service.Name)

	require.Len(t, prov.recorded(), 1)
	assert.Equal(t, events.OpDeploy, prov.recorded()[0].Op)
}

func TestTemplateContextLayersVariables(t *testing.T) {
	prov := &fakeProvider{typ: config.ModuleTypeExec}
	f := testFactory(t, prov)

	task, err := f.Task(graph.ServiceRef("api"), events.OpDeploy)
	require.NoError(t, err)
	_, err = task.Execute(context.Background(), taskgraph.ResultSet{})
	require.NoError(t, err)

	require.Len(t, prov.recorded(), 1)
	tmpl := prov.recorded()[0].Template
	require.NotNil(t, tmpl)

	assert.Equal(t, "demo", tmpl.Project.Name)
	assert.Equal(t, "local", tmpl.Project.Environment)
	assert.Equal(t, "api", tmpl.Module.Name)
	// Environment overrides project; module overrides both.
	assert.Equal(t, "local-region", tmpl.Variables["region"])
	assert.Equal(t, "api-team", tmpl.Variables["owner"])
}

func TestTemplateContextCollectsDeployedServices(t *testing.T) {
	prov := &fakeProvider{typ: config.ModuleTypeExec}
	f := testFactory(t, prov)

	task, err := f.Task(graph.ServiceRef("api"), events.OpDeploy)
	require.NoError(t, err)

	deps := taskgraph.ResultSet{
		"deploy.db.v-x": {
			Status: events.StatusComplete,
			Output: &DeployOutput{Service: template.ServiceRuntime{Name: "db", State: "ready", PID: 7}},
		},
		"build.api.v-y": {
			Status: events.StatusComplete,
			Output: &BuildOutput{Module: "api"},
		},
	}
	_, err = task.Execute(context.Background(), deps)
	require.NoError(t, err)

	tmpl := prov.recorded()[0].Template
	require.Contains(t, tmpl.Runtime.Services, "db")
	assert.Equal(t, 7, tmpl.Runtime.Services["db"].PID)
	assert.Len(t, tmpl.Runtime.Services, 1)
}

func TestSchedulerRunsFactoryTasksEndToEnd(t *testing.T) {
	prov := &fakeProvider{typ: config.ModuleTypeExec}
	f := testFactory(t, prov)

	task, err := f.Task(graph.TestRef("api", "integ"), events.OpRunTest)
	require.NoError(t, err)

	tg := taskgraph.New(taskgraph.Config{})
	results, err := tg.Process(context.Background(), "batch-1", []taskgraph.Task{task})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, events.StatusComplete, results[task.Key()].Status)

	// build lib, build api, run migrate, deploy api, run test.
	assert.Len(t, prov.recorded(), 5)
}
