package exec

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"time"

	"garden/internal/provider"
	"garden/internal/store"
	"garden/internal/template"
	"garden/pkg/logging"
)

const (
	// readyPollInterval is how often a service's readyCommand is retried.
	readyPollInterval = 500 * time.Millisecond
	// readyTimeout bounds how long deploy waits for a service to become
	// ready before giving up.
	readyTimeout = 30 * time.Second
)

// Provider executes module operations as local commands: build runs the
// module's build command, deploy starts service processes, task and test
// operations run their commands to completion. It is the reference
// implementation of the provider contract.
//
// Build results are recorded in the local store keyed by module version,
// which gives builds content-addressed reuse across runs on top of the
// scheduler's run-scoped caching.
type Provider struct {
	root      string
	store     *store.Store
	templates *template.Engine
	procs     *ProcessRegistry
}

// New creates an exec provider rooted at the project directory. The store
// may be nil, in which case cross-run build caching is disabled.
func New(root string, st *store.Store, templates *template.Engine) *Provider {
	return &Provider{
		root:      root,
		store:     st,
		templates: templates,
		procs:     NewProcessRegistry(),
	}
}

// Type implements provider.Provider.
func (p *Provider) Type() string { return "exec" }

// Processes exposes the registry of service processes started by deploys,
// so the session can stop them on shutdown.
func (p *Provider) Processes() *ProcessRegistry { return p.procs }

// Build implements provider.Provider.
func (p *Provider) Build(ctx context.Context, t *provider.Target) (interface{}, error) {
	out := &provider.BuildOutput{Module: t.Module.Name, Version: t.Version}
	if len(t.Module.Build.Command) == 0 {
		return out, nil
	}

	cacheKey := "build." + t.Module.Name + "." + t.Version
	if p.store != nil {
		if cached, ok, err := p.store.GetBuildResult(cacheKey); err != nil {
			logging.Warn("ExecProvider", "Build cache lookup for %s failed: %v", t.Module.Name, err)
		} else if ok {
			logging.Debug("ExecProvider", "Build %s already up to date (%s)", t.Module.Name, t.Version)
			out.Cached = true
			out.Digest = cached.Digest
			return out, nil
		}
	}

	args, err := p.templates.RenderAll(t.Module.Build.Command, t.Template)
	if err != nil {
		return nil, err
	}

	log, err := p.runCommand(ctx, args, filepath.Join(p.root, t.Module.Path), nil)
	if err != nil {
		return nil, fmt.Errorf("build of module %s failed: %w", t.Module.Name, err)
	}
	out.Log = log

	sum := sha256.Sum256([]byte(log))
	out.Digest = hex.EncodeToString(sum[:])
	if p.store != nil {
		record := &store.BuildResult{Key: cacheKey, Module: t.Module.Name, Version: t.Version, Digest: out.Digest}
		if err := p.store.PutBuildResult(record); err != nil {
			logging.Warn("ExecProvider", "Failed to record build result for %s: %v", t.Module.Name, err)
		} else if err := p.store.PruneBuildResults(t.Module.Name, t.Version); err != nil {
			logging.Warn("ExecProvider", "Failed to prune stale build results for %s: %v", t.Module.Name, err)
		}
	}
	return out, nil
}

// Deploy implements provider.Provider. The service process deliberately
// outlives the run context: it belongs to the session, not the batch, and
// is stopped through the process registry.
func (p *Provider) Deploy(ctx context.Context, t *provider.Target) (interface{}, error) {
	svc := t.Entity.Service
	args, err := p.templates.RenderAll(svc.Command, t.Template)
	if err != nil {
		return nil, err
	}
	env, err := p.templates.RenderMap(svc.Env, t.Template)
	if err != nil {
		return nil, err
	}

	logFile, err := p.openServiceLog(svc.Name)
	if err != nil {
		return nil, err
	}

	cmd := osexec.Command(args[0], args[1:]...)
	cmd.Dir = filepath.Join(p.root, t.Module.Path)
	cmd.Env = append(os.Environ(), envSlice(env)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to start service %s: %w", svc.Name, err)
	}
	p.procs.Track(svc.Name, cmd)
	logging.Info("ExecProvider", "Started service %s (pid %d)", svc.Name, cmd.Process.Pid)

	if err := p.awaitReady(ctx, t, svc.Name, svc.ReadyCommand); err != nil {
		p.procs.Stop(svc.Name)
		return nil, err
	}

	return &provider.DeployOutput{Service: template.ServiceRuntime{
		Name:    svc.Name,
		State:   "running",
		PID:     cmd.Process.Pid,
		Version: t.Version,
	}}, nil
}

// RunTask implements provider.Provider.
func (p *Provider) RunTask(ctx context.Context, t *provider.Target) (interface{}, error) {
	task := t.Entity.Task
	return p.runToCompletion(ctx, t, task.Name, task.Command, task.Env)
}

// RunTest implements provider.Provider.
func (p *Provider) RunTest(ctx context.Context, t *provider.Target) (interface{}, error) {
	test := t.Entity.Test
	return p.runToCompletion(ctx, t, test.Name, test.Command, test.Env)
}

func (p *Provider) runToCompletion(ctx context.Context, t *provider.Target, name string, command []string, env map[string]string) (interface{}, error) {
	args, err := p.templates.RenderAll(command, t.Template)
	if err != nil {
		return nil, err
	}
	rendered, err := p.templates.RenderMap(env, t.Template)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	log, err := p.runCommand(ctx, args, filepath.Join(p.root, t.Module.Path), rendered)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return &provider.RunOutput{Name: name, Log: log, Took: time.Since(start)}, nil
}

// runCommand executes args in dir and returns the combined output. On
// failure the output tail is folded into the error so the cause survives
// into batch results without the caller needing the payload.
func (p *Provider) runCommand(ctx context.Context, args []string, dir string, env map[string]string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("empty command")
	}
	cmd := osexec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), envSlice(env)...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	output := buf.String()
	if err != nil {
		if tail := outputTail(output); tail != "" {
			return output, fmt.Errorf("%s: %w: %s", commandString(args), err, tail)
		}
		return output, fmt.Errorf("%s: %w", commandString(args), err)
	}
	return output, nil
}

// awaitReady polls the service's readyCommand until it succeeds. Services
// without one are considered ready as soon as their process started.
func (p *Provider) awaitReady(ctx context.Context, t *provider.Target, name string, readyCommand []string) error {
	if len(readyCommand) == 0 {
		return nil
	}
	args, err := p.templates.RenderAll(readyCommand, t.Template)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(readyTimeout)
	for {
		if _, err := p.runCommand(ctx, args, filepath.Join(p.root, t.Module.Path), nil); err == nil {
			logging.Debug("ExecProvider", "Service %s is ready", name)
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		} else if time.Now().After(deadline) {
			return fmt.Errorf("service %s did not become ready within %s: %w", name, readyTimeout, err)
		}

		select {
		case <-time.After(readyPollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Provider) openServiceLog(name string) (*os.File, error) {
	dir := filepath.Join(p.root, store.DirName, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open service log for %s: %w", name, err)
	}
	return f, nil
}

func envSlice(env map[string]string) []string {
	var result []string
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	return result
}

// outputTail returns the last non-empty line of command output.
func outputTail(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
