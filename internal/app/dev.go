package app

import (
	"context"
	"path/filepath"

	"garden/internal/taskgraph"
	"garden/internal/watcher"
	"garden/pkg/logging"
)

// Dev deploys every service and then keeps the project converged: any
// change under a module directory or to a configuration file triggers a
// wholesale reload of the graph and a redeploy. Runs until ctx is
// cancelled. onDeploy, when non-nil, is called with the results of each
// deploy round so the CLI can render them.
func (s *Session) Dev(ctx context.Context, onDeploy func(taskgraph.Results)) error {
	w, err := watcher.New(0)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := s.watchAll(w); err != nil {
		return err
	}

	results, err := s.Deploy(ctx, nil)
	if err != nil {
		return err
	}
	if onDeploy != nil {
		onDeploy(results)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.Changes():
			logging.Info("Dev", "Change detected, reloading configuration")
			if err := s.Reload(ctx); err != nil {
				// A broken intermediate state is normal while editing;
				// report and wait for the next change.
				logging.Error("Dev", err, "Reload failed, waiting for further changes")
				continue
			}
			if err := s.watchAll(w); err != nil {
				logging.Warn("Dev", "Failed to refresh watches: %v", err)
			}
			results, err := s.Deploy(ctx, nil)
			if err != nil {
				logging.Error("Dev", err, "Redeploy failed")
				continue
			}
			if onDeploy != nil {
				onDeploy(results)
			}
		}
	}
}

// watchAll registers the project configuration files and every module
// directory.
func (s *Session) watchAll(w *watcher.Watcher) error {
	if err := w.Add(filepath.Join(s.Root, "garden.yml")); err != nil {
		logging.Debug("Dev", "Cannot watch project file: %v", err)
	}
	seen := map[string]bool{}
	for _, m := range s.Snapshot.Modules {
		dir := filepath.Join(s.Root, m.Path)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := w.AddRecursive(dir); err != nil {
			return err
		}
	}
	return nil
}
