package tui

import (
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knexport/pkg/kidsnote"
	"knexport/pkg/status"
)

func key(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestApplyKeepsDistinctRecentLines(t *testing.T) {
	m := NewModel("Album", nil)

	m.Apply(status.Snapshot{Progress: "✓ Album 1/? a"})
	m.Apply(status.Snapshot{Progress: "✓ Album 1/? a"})
	m.Apply(status.Snapshot{Progress: ""})
	m.Apply(status.Snapshot{Progress: "· Album 2/? b"})

	assert.Equal(t, []string{"✓ Album 1/? a", "· Album 2/? b"}, m.History())
}

func TestHistoryIsBounded(t *testing.T) {
	m := NewModel("Album", nil)
	for i := 0; i < maxHistory+5; i++ {
		m.Apply(status.Snapshot{Progress: fmt.Sprintf("✓ Album %d/?", i)})
	}

	h := m.History()
	require.Len(t, h, maxHistory)
	assert.Equal(t, fmt.Sprintf("✓ Album %d/?", maxHistory+4), h[len(h)-1])
}

func TestStopKeyRequestsStopOnce(t *testing.T) {
	stops := 0
	m := NewModel("Report", func() { stops++ })

	_, cmd := m.Update(key("s"))
	assert.False(t, isQuit(cmd), "s keeps the view open")
	_, _ = m.Update(key("s"))

	assert.Equal(t, 1, stops)
}

func TestQuitKeysStopTheRun(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			stops := 0
			m := NewModel("Album", func() { stops++ })

			_, cmd := m.Update(key(k))

			assert.True(t, isQuit(cmd))
			assert.Equal(t, 1, stops)
		})
	}
}

func TestNoStopAfterFinish(t *testing.T) {
	stops := 0
	m := NewModel("Album", func() { stops++ })

	_, cmd := m.Update(DoneMsg{Err: errors.New("boom")})
	assert.True(t, isQuit(cmd))
	assert.True(t, m.Finished())
	assert.EqualError(t, m.Err(), "boom")

	_, _ = m.Update(key("s"))
	assert.Zero(t, stops)
}

func TestViewShowsRunState(t *testing.T) {
	m := NewModel("Album", nil)
	assert.Equal(t, "Initializing...", m.View())

	_, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	_, _ = m.Update(SnapshotMsg(status.Snapshot{
		RunID:    "run-1",
		Progress: "✓ Album 2/4 2024-10-05 Picnic",
		Marker:   &status.Marker{Kind: kidsnote.KindAlbum, Index: 2, Total: "4", ID: "77"},
		Endpoint: &kidsnote.EndpointInfo{ChildID: "4821"},
		Final:    "✓ Export complete (Album)\nDownloaded: 2",
	}))

	view := m.View()
	for _, want := range []string{"knexport · Album", "run-1", "4821", "2/4 (id 77)", "2024-10-05 Picnic", "SUMMARY", "Downloaded: 2", "s: stop"} {
		assert.Contains(t, view, want)
	}
}

func TestHelpToggle(t *testing.T) {
	m := NewModel("Album", nil)
	_, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	_, _ = m.Update(key("?"))
	assert.Contains(t, m.View(), "stop after the current asset")

	_, _ = m.Update(key("?"))
	assert.NotContains(t, m.View(), "stop after the current asset")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"4s", "4s"},
		{"65s", "1m 5s"},
		{"3725s", "1h 2m 5s"},
	}
	for _, tt := range tests {
		d, err := time.ParseDuration(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, formatDuration(d))
	}
}
