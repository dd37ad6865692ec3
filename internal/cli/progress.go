package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"garden/internal/events"

	"github.com/briandowns/spinner"
)

// Progress is an event bus subscriber that drives a spinner status line
// while a batch runs. It is presentation only; dropping or lagging events
// never affects scheduling.
type Progress struct {
	quiet bool
	spin  *spinner.Spinner

	mu          sync.Mutex
	processing  map[string]bool
	completed   int
	failed      int
	aborted     int
	unsubscribe func()
}

// NewProgress creates a progress reporter writing to out. When quiet is
// true the reporter subscribes to nothing and renders nothing.
func NewProgress(out io.Writer, quiet bool) *Progress {
	p := &Progress{quiet: quiet, processing: make(map[string]bool)}
	if !quiet {
		p.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	}
	return p
}

// Start subscribes to the bus and begins rendering.
func (p *Progress) Start(bus *events.Bus) {
	if p.quiet {
		return
	}
	p.spin.Suffix = " waiting for work items"
	p.spin.Start()
	p.unsubscribe = bus.Subscribe(p.handle)
}

// Stop unsubscribes and clears the status line.
func (p *Progress) Stop() {
	if p.quiet {
		return
	}
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	p.spin.Stop()
}

func (p *Progress) handle(ev events.Event) {
	p.mu.Lock()
	switch ev.Status {
	case events.StatusProcessing:
		p.processing[ev.Key] = true
	case events.StatusComplete:
		delete(p.processing, ev.Key)
		p.completed++
	case events.StatusError:
		delete(p.processing, ev.Key)
		p.failed++
	case events.StatusAborted:
		delete(p.processing, ev.Key)
		p.aborted++
	}

	current := ""
	for key := range p.processing {
		current = key
		break
	}
	suffix := fmt.Sprintf(" %s (%d running, %d done", current, len(p.processing), p.completed)
	if p.failed > 0 {
		suffix += fmt.Sprintf(", %d failed", p.failed)
	}
	if p.aborted > 0 {
		suffix += fmt.Sprintf(", %d aborted", p.aborted)
	}
	suffix += ")"
	p.mu.Unlock()

	p.spin.Suffix = suffix
}
