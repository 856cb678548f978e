package exporter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"knexport/pkg/kidsnote"
)

// Counters are the run's running totals. They only ever grow.
type Counters struct {
	Downloaded int    `json:"downloaded"`
	Skipped    int    `json:"skipped"`
	Photos     int    `json:"photos"`
	Videos     int    `json:"videos"`
	Files      int    `json:"files"`
	Errors     int    `json:"errors"`
	LastError  string `json:"last_error,omitempty"`
}

// Run is the context of one export. The export loop is its only writer;
// other goroutines read it through Stats and request a stop through RequestStop.
type Run struct {
	ID        string
	Kind      kidsnote.Kind
	Root      string
	Filters   Filters
	StartedAt time.Time

	stop atomic.Bool

	mu              sync.Mutex
	counters        Counters
	orderViolations int
	total           string
	summary         string
	stopped         bool
}

// NewRun creates a run with a fresh id and zeroed counters.
func NewRun(kind kidsnote.Kind, root string, filters Filters) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Root:      root,
		Filters:   filters,
		StartedAt: time.Now(),
		total:     "?",
	}
}

// RequestStop asks the loop to halt at the next item or asset boundary.
func (r *Run) RequestStop() {
	r.stop.Store(true)
}

// StopRequested reports whether RequestStop has been called.
func (r *Run) StopRequested() bool {
	return r.stop.Load()
}

// Stats returns a copy of the counters.
func (r *Run) Stats() Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters
}

// OrderViolations counts items that were newer than the item before them.
func (r *Run) OrderViolations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orderViolations
}

// Summary returns the final report, or "" while the run has not finished.
func (r *Run) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Stopped reports whether the run ended because a stop was requested.
func (r *Run) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *Run) record(fn func(c *Counters)) Counters {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.counters)
	return r.counters
}

func (r *Run) fail(err error) {
	r.record(func(c *Counters) {
		c.Errors++
		c.LastError = err.Error()
	})
}

func (r *Run) setTotal(total string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
}

func (r *Run) totalLabel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

func (r *Run) noteOrderViolation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orderViolations++
}

func (r *Run) finish(summary string, stopped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = summary
	r.stopped = stopped
}
