package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"garden/internal/config"
	"garden/internal/events"
	"garden/internal/graph"
	"garden/internal/provider"
	providerexec "garden/internal/provider/exec"
	"garden/internal/store"
	"garden/internal/taskgraph"
	"garden/internal/telemetry"
	"garden/internal/template"
	"garden/internal/vcs"
	"garden/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// Options configures a session.
type Options struct {
	// Root is the project root. Empty means discover it from the working
	// directory.
	Root string
	// Environment selects a declared environment. Empty means the
	// project's default.
	Environment string
	// Concurrency bounds simultaneously processing work items. Zero means
	// the engine default.
	Concurrency int
	// Version is the engine version, used for requiredVersion checks and
	// telemetry.
	Version string
	// Telemetry enables the anonymized usage reporter.
	Telemetry bool
}

// Session is one fully wired engine instance: configuration snapshot,
// entity graph, scheduler, event bus, providers and local state. A session
// is created per command invocation (or kept alive in dev mode, where
// Reload swaps the graph wholesale on configuration changes).
type Session struct {
	Root        string
	Environment string
	Fingerprint string
	Snapshot    *config.ProjectSnapshot
	Graph       *graph.ConfigGraph
	Bus         *events.Bus
	Tasks       *taskgraph.TaskGraph
	Factory     *provider.Factory
	Store       *store.Store

	opts      Options
	scanner   *vcs.Scanner
	templates *template.Engine
	exec      *providerexec.Provider
	reporter  *telemetry.Reporter
}

// NewSession bootstraps a session: locate the root, scan and load the
// configuration, build the graph, and wire scheduler, providers, bus and
// telemetry.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	root := opts.Root
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root, err = vcs.FindProjectRoot(cwd)
		if err != nil {
			return nil, err
		}
	}
	logging.Debug("Session", "Using project root %s", root)

	s := &Session{
		Root:    root,
		opts:    opts,
		scanner: vcs.NewScanner(),
	}

	// Config scan and repository fingerprint are independent; run them in
	// parallel.
	var files []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		files, err = s.scanner.ConfigFiles(gctx, root)
		return err
	})
	g.Go(func() error {
		var err error
		s.Fingerprint, err = s.scanner.Fingerprint(gctx, root)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.load(files); err != nil {
		return nil, err
	}

	st, err := store.Open(root)
	if err != nil {
		return nil, err
	}
	s.Store = st

	s.Bus = events.NewBus()
	s.templates = template.New()
	s.exec = providerexec.New(root, st, s.templates)

	anonymousID, err := st.AnonymousID()
	if err != nil {
		logging.Warn("Session", "Failed to read anonymous ID, telemetry disabled: %v", err)
		anonymousID = ""
	}
	s.reporter = telemetry.New(anonymousID,
		filepath.Join(root, store.DirName, "telemetry"),
		opts.Version,
		opts.Telemetry && anonymousID != "")
	s.reporter.Start(s.Bus)

	s.wire()
	logging.Info("Session", "Project %s ready (%d modules, fingerprint %s)",
		s.Snapshot.Project.Name, len(s.Snapshot.Modules), s.Fingerprint)
	return s, nil
}

// load parses configuration files and rebuilds the entity graph.
func (s *Session) load(files []string) error {
	snapshot, err := config.Load(s.Root, files)
	if err != nil {
		return err
	}
	if err := snapshot.Project.CheckRequiredVersion(s.opts.Version); err != nil {
		return err
	}

	environment := s.opts.Environment
	if environment == "" {
		environment = snapshot.Project.DefaultEnvironment
	}
	if snapshot.Environment(environment) == nil {
		return fmt.Errorf("environment %q is not declared by project %q", environment, snapshot.Project.Name)
	}

	entityGraph, err := graph.New(snapshot.Modules)
	if err != nil {
		return err
	}

	s.Snapshot = snapshot
	s.Graph = entityGraph
	s.Environment = environment
	return nil
}

// wire rebuilds the run-scoped pieces: version resolver, work item factory
// and scheduler. Called at bootstrap and again on every reload so stale
// cached results never survive a configuration change.
func (s *Session) wire() {
	versions := graph.NewVersionResolver(s.Graph, s.scanner.ModuleHasher(s.Root))
	s.Factory = &provider.Factory{
		Graph:       s.Graph,
		Router:      provider.NewRouter(s.exec),
		Versions:    versions,
		Project:     s.Snapshot,
		Environment: s.Environment,
	}
	s.Tasks = taskgraph.New(taskgraph.Config{Concurrency: s.opts.Concurrency, Bus: s.Bus})
}

// Reload re-scans and re-loads the configuration and replaces the graph
// and scheduler wholesale. The event bus, store and running service
// processes survive a reload.
func (s *Session) Reload(ctx context.Context) error {
	s.scanner = vcs.NewScanner()
	files, err := s.scanner.ConfigFiles(ctx, s.Root)
	if err != nil {
		return err
	}
	if err := s.load(files); err != nil {
		return err
	}
	s.wire()
	logging.Info("Session", "Configuration reloaded (%d modules)", len(s.Snapshot.Modules))
	return nil
}

// Close tears the session down: service processes, telemetry, bus, store.
func (s *Session) Close(ctx context.Context) {
	s.exec.Processes().StopAll(ctx)
	if err := s.reporter.Close(); err != nil {
		logging.Warn("Session", "Failed to flush telemetry: %v", err)
	}
	s.Bus.Close()
	if err := s.Store.Close(); err != nil {
		logging.Warn("Session", "Failed to close store: %v", err)
	}
}
