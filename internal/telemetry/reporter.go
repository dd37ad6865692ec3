// Package telemetry reports anonymized usage: per-operation outcome counts
// and durations, never entity or project names. The reporter is an explicit
// instance with an explicit lifecycle (New, Start, Close) constructed once
// at session start and handed to whoever needs it; there is no package
// singleton.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"garden/internal/events"
	"garden/pkg/logging"
)

// DisableEnvVar disables telemetry when set to any non-empty value.
const DisableEnvVar = "GARDEN_DISABLE_ANALYTICS"

// record is one aggregated line of the flushed JSONL file.
type record struct {
	AnonymousID string `json:"anonymousId"`
	Operation   string `json:"operation"`
	Status      string `json:"status"`
	Count       int    `json:"count"`
	TotalMs     int64  `json:"totalMs"`
	FlushedAt   string `json:"flushedAt"`
	Version     string `json:"version"`
}

type outcomeKey struct {
	op     events.OpKind
	status events.Status
}

type outcomeStats struct {
	count int
	total time.Duration
}

// Reporter aggregates work item outcomes from the event bus.
//
// Safe for concurrent use; the bus delivers events on a dedicated
// goroutine per subscriber.
type Reporter struct {
	anonymousID string
	dir         string
	version     string
	enabled     bool

	mu          sync.Mutex
	started     map[string]time.Time
	outcomes    map[outcomeKey]*outcomeStats
	unsubscribe func()
}

// New creates a reporter that flushes into dir. A reporter created with
// enabled=false never records or writes anything; callers can construct it
// unconditionally and skip the nil checks.
func New(anonymousID, dir, version string, enabled bool) *Reporter {
	if os.Getenv(DisableEnvVar) != "" {
		enabled = false
	}
	return &Reporter{
		anonymousID: anonymousID,
		dir:         dir,
		version:     version,
		enabled:     enabled,
		started:     make(map[string]time.Time),
		outcomes:    make(map[outcomeKey]*outcomeStats),
	}
}

// Start subscribes the reporter to the bus.
func (r *Reporter) Start(bus *events.Bus) {
	if !r.enabled {
		return
	}
	r.unsubscribe = bus.Subscribe(r.handle)
}

func (r *Reporter) handle(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Status {
	case events.StatusProcessing:
		r.started[ev.Key] = ev.Timestamp
	case events.StatusComplete, events.StatusError, events.StatusAborted:
		var took time.Duration
		if start, ok := r.started[ev.Key]; ok {
			took = ev.Timestamp.Sub(start)
			delete(r.started, ev.Key)
		}
		key := outcomeKey{op: ev.Op, status: ev.Status}
		stats := r.outcomes[key]
		if stats == nil {
			stats = &outcomeStats{}
			r.outcomes[key] = stats
		}
		stats.count++
		stats.total += took
	}
}

// Close unsubscribes and flushes aggregated outcomes to a JSONL file.
// Closing a disabled or empty reporter is a no-op.
func (r *Reporter) Close() error {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}

	r.mu.Lock()
	outcomes := r.outcomes
	r.outcomes = make(map[outcomeKey]*outcomeStats)
	r.mu.Unlock()

	if !r.enabled || len(outcomes) == 0 {
		return nil
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	now := time.Now().UTC()
	path := filepath.Join(r.dir, now.Format("20060102T150405")+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open telemetry file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for key, stats := range outcomes {
		rec := record{
			AnonymousID: r.anonymousID,
			Operation:   key.op.String(),
			Status:      key.status.String(),
			Count:       stats.count,
			TotalMs:     stats.total.Milliseconds(),
			FlushedAt:   now.Format(time.RFC3339),
			Version:     r.version,
		}
		if err := enc.Encode(&rec); err != nil {
			return fmt.Errorf("failed to write telemetry record: %w", err)
		}
	}
	logging.Debug("Telemetry", "Flushed %d outcome records to %s", len(outcomes), path)
	return nil
}
