package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, color bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetColor(color)
	t.Cleanup(func() {
		SetOutput(nil)
		SetColor(true)
	})
	return &buf
}

func TestColorizeRespectsSetColor(t *testing.T) {
	capture(t, true)
	assert.Equal(t, "\033[32mok\033[0m", Green("ok"))

	SetColor(false)
	assert.Equal(t, "ok", Green("ok"))
}

func TestPrintHelpers(t *testing.T) {
	buf := capture(t, false)

	PrintError("save failed", errors.New("disk full"))
	PrintWarning("slow")
	PrintInfo("Child", "4821")
	PrintSuccess("done")

	assert.Equal(t, "save failed: disk full\nslow\nChild: 4821\ndone\n", buf.String())
}

func TestColorStatusLine(t *testing.T) {
	capture(t, true)

	tests := []struct {
		line string
		want string
	}{
		{"✓ Export complete", Green("✓ Export complete")},
		{"✗ item 7: boom", Red("✗ item 7: boom")},
		{"■ Stopped by user", Yellow("■ Stopped by user")},
		{"· Album 3/? skipped", Dim("· Album 3/? skipped")},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ColorStatusLine(tt.line), tt.line)
	}
}
