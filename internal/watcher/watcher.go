// Package watcher debounces filesystem change notifications for dev mode.
// Any change below a watched path eventually produces one signal on
// Changes(); consumers respond by rebuilding the configuration graph
// wholesale and redeploying what changed.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"garden/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a change
// signal fires. Editors produce bursts of writes; one rebuild per burst is
// enough.
const DefaultDebounce = 300 * time.Millisecond

// skippedDirs are not watched.
var skippedDirs = map[string]bool{
	".git":         true,
	".garden":      true,
	"node_modules": true,
}

// Watcher wraps fsnotify with recursive directory registration and
// debouncing.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	changes  chan struct{}
	closed   chan struct{}
}

// New creates a watcher. A non-positive debounce uses DefaultDebounce.
func New(debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// AddRecursive watches dir and all directories below it.
func (w *Watcher) AddRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skippedDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Add watches a single file or directory.
func (w *Watcher) Add(path string) error {
	return w.fs.Add(path)
}

// Changes delivers one signal per debounced burst of filesystem events.
// The channel is never closed while the watcher is open; after Close no
// further signals arrive.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops watching.
func (w *Watcher) Close() error {
	select {
	case <-w.closed:
		return nil
	default:
	}
	close(w.closed)
	return w.fs.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			logging.Debug("Watcher", "Filesystem event: %s %s", ev.Op, ev.Name)
			// New directories must be registered to keep the watch
			// recursive.
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !skippedDirs[filepath.Base(ev.Name)] {
					_ = w.AddRecursive(ev.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warn("Watcher", "Filesystem watcher error: %v", err)
		case <-w.closed:
			return
		}
	}
}
