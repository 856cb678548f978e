package ui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	titles   []string
	messages []string
	err      error
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestNotifyRunFinished(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		err     error
		want    string
	}{
		{"complete", "✓ Export complete (Album)\nDownloaded: 3", nil, "✓ Export complete (Album)"},
		{"failed", "✗ Export failed (Album)\nDownloaded: 1", errors.New("boom"), "✗ Export failed (Album)"},
		{"no summary", "", errors.New("no child id"), "✗ no child id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := capture(t, false)
			sender := &recordingSender{}
			n := NewNotifierWithSender(sender)

			n.NotifyRunFinished("Album", tt.summary, tt.err)

			require.Len(t, sender.messages, 1)
			assert.Equal(t, "knexport: Album", sender.titles[0])
			assert.Equal(t, tt.want, sender.messages[0])
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestNotifierIgnoresSenderErrors(t *testing.T) {
	capture(t, false)
	sender := &recordingSender{err: errors.New("notify-send missing")}

	assert.NotPanics(t, func() {
		NewNotifierWithSender(sender).SendNotification("t", "m")
	})
	assert.Len(t, sender.titles, 1)
}

func TestDisabledNotifierOnlyPrints(t *testing.T) {
	buf := capture(t, false)
	n := NewNotifier(false)
	sender := &recordingSender{}
	n.sender = sender

	n.SendSuccess("knexport", "done")

	assert.Empty(t, sender.titles)
	assert.Contains(t, buf.String(), "knexport: done")
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"say \"hi\" \\ bye"`, appleScriptQuote(`say "hi" \ bye`))
	assert.Equal(t, "a &lt;b&gt; &amp; &quot;c&quot;", xmlEscape(`a <b> & "c"`))
}
