package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	sections := []string{m.renderHeader(), m.renderStatsPanel(), m.renderHistoryPanel()}
	if m.snap.Final != "" {
		sections = append(sections, m.renderSummaryPanel())
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("s: stop  q: quit  ?: help"))
	}

	return baseStyle.Width(m.width).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func (m Model) renderHeader() string {
	state := m.spinner.View() + " exporting"
	switch {
	case m.finished && m.err != nil:
		state = errorStyle.Render("✗ failed")
	case m.finished:
		state = successStyle.Render("✓ finished")
	case m.stopRequested:
		state = warningStyle.Render("■ stopping…")
	}
	return headerStyle.Render("knexport · "+m.title) + "  " + state
}

func (m Model) renderStatsPanel() string {
	rows := []string{
		stat("Elapsed", formatDuration(time.Since(m.startedAt))),
	}
	if m.snap.RunID != "" {
		rows = append(rows, stat("Run", m.snap.RunID))
	}
	if e := m.snap.Endpoint; e != nil {
		rows = append(rows, stat("Child", e.ChildID))
	}
	if mk := m.snap.Marker; mk != nil {
		rows = append(rows, stat("Item", fmt.Sprintf("%d/%s (id %s)", mk.Index, mk.Total, mk.ID)))
		if total, err := strconv.Atoi(mk.Total); err == nil && total > 0 {
			f := float64(mk.Index) / float64(total)
			if f > 1 {
				f = 1
			}
			rows = append(rows, m.bar.ViewAs(f))
		}
	}

	title := titleStyle.Render(" RUN ")
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, append([]string{title}, rows...)...))
}

func (m Model) renderHistoryPanel() string {
	lines := []string{titleStyle.Render(" ACTIVITY ")}
	if len(m.history) == 0 {
		lines = append(lines, skippedStyle.Render("waiting for the first item…"))
	}
	for _, l := range m.history {
		lines = append(lines, lineStyle(l).Render(truncate(l, m.width-8)))
	}
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderSummaryPanel() string {
	first, rest, _ := strings.Cut(m.snap.Final, "\n")
	body := lineStyle(first).Render(first)
	if rest != "" {
		body += "\n" + rest
	}
	return panelStyle.Render(titleStyle.Render(" SUMMARY ") + "\n" + body)
}

func (m Model) renderHelp() string {
	help := `
  s        - stop after the current asset
  q        - stop and leave
  ?        - toggle this help`
	return helpStyle.Render(help)
}

func stat(label, value string) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label+":"), statsValueStyle.Render(value))
}

func truncate(s string, max int) string {
	r := []rune(s)
	if max <= 1 || len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
