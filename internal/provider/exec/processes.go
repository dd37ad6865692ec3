package exec

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"garden/pkg/logging"
)

// ProcessRegistry tracks the long-running service processes started by the
// exec provider so they can be stopped on shutdown. The provider owns
// these processes, so it is also the one responsible for killing them on
// cancellation.
//
// Safe for concurrent use.
type ProcessRegistry struct {
	mu    sync.Mutex
	procs map[string]*exec.Cmd
}

// NewProcessRegistry returns an empty registry.
func NewProcessRegistry() *ProcessRegistry {
	return &ProcessRegistry{procs: make(map[string]*exec.Cmd)}
}

// Track registers a started service process, stopping any previous process
// registered under the same name.
func (r *ProcessRegistry) Track(name string, cmd *exec.Cmd) {
	r.mu.Lock()
	prev := r.procs[name]
	r.procs[name] = cmd
	r.mu.Unlock()

	if prev != nil && prev.Process != nil {
		logging.Debug("ExecProvider", "Replacing running process for service %s (pid %d)", name, prev.Process.Pid)
		stopProcess(name, prev)
	}

	// Reap the process when it exits so it never becomes a zombie.
	go func() {
		err := cmd.Wait()
		r.mu.Lock()
		if r.procs[name] == cmd {
			delete(r.procs, name)
		}
		r.mu.Unlock()
		if err != nil {
			logging.Debug("ExecProvider", "Service %s exited: %v", name, err)
		}
	}()
}

// PID returns the pid of the tracked process for name, or 0.
func (r *ProcessRegistry) PID(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cmd, ok := r.procs[name]; ok && cmd.Process != nil {
		return cmd.Process.Pid
	}
	return 0
}

// Stop stops the tracked process for name, if any.
func (r *ProcessRegistry) Stop(name string) {
	r.mu.Lock()
	cmd := r.procs[name]
	delete(r.procs, name)
	r.mu.Unlock()
	if cmd != nil {
		stopProcess(name, cmd)
	}
}

// StopAll stops every tracked process. Used on session shutdown.
func (r *ProcessRegistry) StopAll(ctx context.Context) {
	r.mu.Lock()
	procs := r.procs
	r.procs = make(map[string]*exec.Cmd)
	r.mu.Unlock()

	for name, cmd := range procs {
		stopProcess(name, cmd)
	}

	// Give processes a moment to die before the session tears down shared
	// state they might still be writing to.
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
	}
}

func stopProcess(name string, cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	logging.Debug("ExecProvider", "Stopping service %s (pid %d)", name, cmd.Process.Pid)
	if err := cmd.Process.Kill(); err != nil {
		logging.Debug("ExecProvider", "Failed to kill service %s: %v", name, err)
	}
}

func commandString(args []string) string {
	return fmt.Sprintf("%v", args)
}
