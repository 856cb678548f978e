package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"knexport/pkg/status"
)

const maxHistory = 12

// Model is the bubbletea model for a single export run. It only ever
// renders what the status store publishes.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	title     string
	onStop    func()
	startedAt time.Time

	snap    status.Snapshot
	history []string

	stopRequested bool
	finished      bool
	err           error

	width    int
	height   int
	showHelp bool
}

// NewModel creates a model titled title. onStop is called at most once, when
// the user asks the run to stop.
func NewModel(title string, onStop func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	return Model{
		spinner:   s,
		bar:       bar,
		title:     title,
		onStop:    onStop,
		startedAt: time.Now(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// Apply takes in a new snapshot. A changed progress line is appended to the
// history; the marker and final summary simply replace the previous ones.
func (m *Model) Apply(snap status.Snapshot) {
	if snap.Progress != "" && snap.Progress != m.snap.Progress {
		m.history = append(m.history, snap.Progress)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
	}
	m.snap = snap
}

// RequestStop forwards the stop request once.
func (m *Model) RequestStop() bool {
	if m.stopRequested || m.finished {
		return false
	}
	m.stopRequested = true
	if m.onStop != nil {
		m.onStop()
	}
	return true
}

// Finished reports whether the run has ended.
func (m *Model) Finished() bool {
	return m.finished
}

// History returns the recent progress lines, oldest first.
func (m *Model) History() []string {
	return append([]string(nil), m.history...)
}

// Err returns the run error delivered with DoneMsg.
func (m *Model) Err() error {
	return m.err
}
