package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"knexport/pkg/status"
)

// TUI represents the terminal user interface
type TUI struct {
	program *tea.Program
	model   *Model
	store   *status.Store
}

// New creates a TUI that renders store and calls onStop when the user presses s or q.
func New(title string, store *status.Store, onStop func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(title, onStop)
	model.Apply(store.Snapshot())
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(&model, opts...),
		model:   &model,
		store:   store,
	}
}

// Run blocks until the program exits, either after Finish or when the user quits.
func (t *TUI) Run(ctx context.Context) error {
	updates, unsubscribe := t.store.Subscribe()
	defer unsubscribe()

	forwardDone := make(chan struct{})
	defer close(forwardDone)
	go func() {
		for {
			select {
			case <-forwardDone:
				return
			case <-ctx.Done():
				t.program.Quit()
				return
			case snap, ok := <-updates:
				if !ok {
					return
				}
				t.program.Send(SnapshotMsg(snap))
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Finish pushes the last snapshot and closes the view.
func (t *TUI) Finish(err error) {
	t.program.Send(SnapshotMsg(t.store.Snapshot()))
	t.program.Send(DoneMsg{Err: err})
}
