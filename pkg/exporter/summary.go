package exporter

import (
	"fmt"
	"strings"
	"time"

	"knexport/pkg/kidsnote"
)

const (
	markDone    = "✓"
	markFailed  = "✗"
	markStopped = "■"
	markSkipped = "·"

	LineStopped  = markStopped + " Stopped by user"
	LineComplete = markDone + " Export complete"
)

// progressLine renders one per-item status line.
func progressLine(mark string, run *Run, index int, label string, elapsed time.Duration) string {
	c := run.Stats()
	return fmt.Sprintf("%s %s %d/%s %s | %d downloaded, %d skipped | %s",
		mark, run.Kind.Label(), index, run.totalLabel(), label,
		c.Downloaded, c.Skipped, formatElapsed(elapsed))
}

func failureLine(err error) string {
	return markFailed + " " + err.Error()
}

func itemLabel(item *kidsnote.Item) string {
	label := strings.TrimSpace(item.Date() + " " + item.Title)
	if label == "" {
		label = "#" + item.ID
	}
	if r := []rune(label); len(r) > 40 {
		label = string(r[:39]) + "…"
	}
	return label
}

// Summary composes the final report. It always carries whatever counts the
// run accumulated, including after a failure.
func Summary(run *Run, elapsed time.Duration, stopped bool, err error) string {
	c := run.Stats()

	var b strings.Builder
	switch {
	case err != nil:
		fmt.Fprintf(&b, "%s Export failed (%s)\n", markFailed, run.Kind.Label())
	case stopped:
		fmt.Fprintf(&b, "%s Export stopped (%s)\n", markStopped, run.Kind.Label())
	default:
		fmt.Fprintf(&b, "%s Export complete (%s)\n", markDone, run.Kind.Label())
	}
	if run.Filters.FromYM != "" || run.Filters.ToYM != "" {
		fmt.Fprintf(&b, "Range: %s\n", run.Filters)
	}
	fmt.Fprintf(&b, "Downloaded: %d\n", c.Downloaded)
	fmt.Fprintf(&b, "Skipped: %d\n", c.Skipped)
	fmt.Fprintf(&b, "Photos: %d, Videos: %d, Files: %d\n", c.Photos, c.Videos, c.Files)
	fmt.Fprintf(&b, "Errors: %d\n", c.Errors)
	if c.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", c.LastError)
	}
	if n := run.OrderViolations(); n > 0 {
		fmt.Fprintf(&b, "Out-of-order items: %d (the range scan assumes newest first)\n", n)
	}
	if run.Root != "" {
		fmt.Fprintf(&b, "Output: %s\n", run.Root)
	}
	fmt.Fprintf(&b, "Elapsed: %s", formatElapsed(elapsed))
	return b.String()
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
