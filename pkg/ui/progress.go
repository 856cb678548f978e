package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"knexport/pkg/status"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// RenderBar draws a fixed-width bar for done out of total. An unknown or
// non-positive total yields an empty bar with "?" as the denominator.
func RenderBar(done int, total string, width int) string {
	n, err := strconv.Atoi(total)
	if err != nil || n <= 0 {
		return fmt.Sprintf("[%s] %d/?", strings.Repeat(ProgressEmpty, width), done)
	}
	filled := done * width / n
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat(ProgressBar, filled),
		strings.Repeat(ProgressEmpty, width-filled),
		done, n)
}

// Fraction returns marker progress in [0, 1], or false when the total is unknown.
func Fraction(m *status.Marker) (float64, bool) {
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m.Total)
	if err != nil || n <= 0 {
		return 0, false
	}
	f := float64(m.Index) / float64(n)
	if f > 1 {
		f = 1
	}
	return f, true
}

// ProgressPrinter echoes every new progress line from a status store.
type ProgressPrinter struct {
	store *status.Store

	mu   sync.Mutex
	last string
}

// NewProgressPrinter watches store.
func NewProgressPrinter(store *status.Store) *ProgressPrinter {
	return &ProgressPrinter{store: store}
}

// Run prints until ctx is done. Repeated lines are printed once.
func (p *ProgressPrinter) Run(ctx context.Context) {
	updates, unsubscribe := p.store.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			p.Print(snap)
		}
	}
}

// Print writes snap's progress line if it changed since the last call.
func (p *ProgressPrinter) Print(snap status.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap.Progress == "" || snap.Progress == p.last {
		return
	}
	p.last = snap.Progress
	if snap.Marker != nil {
		printf("%s %s\n", Dim(RenderBar(snap.Marker.Index, snap.Marker.Total, 20)), ColorStatusLine(snap.Progress))
		return
	}
	PrintStatusLine(snap.Progress)
}

func (p *ProgressPrinter) lastLine() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
