package ui

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knexport/pkg/kidsnote"
	"knexport/pkg/status"
)

func TestRenderBar(t *testing.T) {
	tests := []struct {
		done  int
		total string
		want  string
	}{
		{0, "4", "[░░░░] 0/4"},
		{2, "4", "[██░░] 2/4"},
		{4, "4", "[████] 4/4"},
		{9, "4", "[████] 9/4"},
		{3, "?", "[░░░░] 3/?"},
		{3, "0", "[░░░░] 3/?"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RenderBar(tt.done, tt.total, 4))
	}
}

func TestFraction(t *testing.T) {
	f, ok := Fraction(&status.Marker{Index: 1, Total: "4"})
	assert.True(t, ok)
	assert.InDelta(t, 0.25, f, 1e-9)

	_, ok = Fraction(&status.Marker{Index: 1, Total: "?"})
	assert.False(t, ok)

	_, ok = Fraction(nil)
	assert.False(t, ok)
}

func TestProgressPrinterDeduplicates(t *testing.T) {
	buf := capture(t, false)
	p := NewProgressPrinter(status.NewMemoryStore())

	p.Print(status.Snapshot{Progress: "✓ Album 1/2 a"})
	p.Print(status.Snapshot{Progress: "✓ Album 1/2 a"})
	p.Print(status.Snapshot{Progress: ""})
	p.Print(status.Snapshot{
		Progress: "· Album 2/2 b",
		Marker:   &status.Marker{Kind: kidsnote.KindAlbum, Index: 2, Total: "2"},
	})

	assert.Equal(t, "✓ Album 1/2 a\n[████████████████████] 2/2 · Album 2/2 b\n", buf.String())
}

func TestProgressPrinterRunFollowsStore(t *testing.T) {
	buf := capture(t, false)
	store := status.NewMemoryStore()
	p := NewProgressPrinter(store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// The subscription is registered asynchronously; keep publishing until it lands.
	require.Eventually(t, func() bool {
		_ = store.SetProgress("✓ Report 1/? hello")
		return p.lastLine() == "✓ Report 1/? hello"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Contains(t, buf.String(), "✓ Report 1/? hello")
}
