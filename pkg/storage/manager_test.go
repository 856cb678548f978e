package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "knexport/pkg/errors"
	"knexport/pkg/logger"
)

type fakeSource struct {
	bodies map[string]string
	err    error
	calls  []string
}

func (f *fakeSource) Download(_ context.Context, rawURL string, w io.Writer) (int64, error) {
	f.calls = append(f.calls, rawURL)
	if f.err != nil {
		return 0, f.err
	}
	n, err := io.WriteString(w, f.bodies[rawURL])
	return int64(n), err
}

func newManager(t *testing.T, src Source) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "out"), src, logger.NewNopLogger())
	require.NoError(t, err)
	return m
}

func TestSaveTextCreatesDirectories(t *testing.T) {
	m := newManager(t, nil)

	p, err := m.SaveText(context.Background(), "albums/2024-10-05 Picnic/content.txt", "hello")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.Root(), "albums", "2024-10-05 Picnic", "content.txt"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSaveUniquifiesCollisions(t *testing.T) {
	m := newManager(t, nil)
	ctx := context.Background()

	first, err := m.SaveText(ctx, "a/note.txt", "1")
	require.NoError(t, err)
	second, err := m.SaveText(ctx, "a/note.txt", "2")
	require.NoError(t, err)
	third, err := m.SaveBytes(ctx, "a/note.txt", []byte("3"))
	require.NoError(t, err)

	assert.Equal(t, "note.txt", filepath.Base(first))
	assert.Equal(t, "note (1).txt", filepath.Base(second))
	assert.Equal(t, "note (2).txt", filepath.Base(third))

	data, _ := os.ReadFile(first)
	assert.Equal(t, "1", string(data), "existing files are never overwritten")
}

func TestSaveLeavesNoTemporaryFiles(t *testing.T) {
	src := &fakeSource{err: &errs.Error{Type: errs.ErrorTypeHTTP, Status: 404, Message: "HTTP 404"}}
	m := newManager(t, src)

	_, err := m.SaveURL(context.Background(), "x/photos/001.jpg", "https://cdn/x.jpg")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeHTTP), "source error type is preserved")

	entries, err := os.ReadDir(filepath.Join(m.Root(), "x", "photos"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveURL(t *testing.T) {
	src := &fakeSource{bodies: map[string]string{"https://cdn/v.mp4": "VIDEO"}}
	m := newManager(t, src)

	p, err := m.SaveURL(context.Background(), "x/videos/001.mp4", "https://cdn/v.mp4")
	require.NoError(t, err)
	data, _ := os.ReadFile(p)
	assert.Equal(t, "VIDEO", string(data))
	assert.Equal(t, []string{"https://cdn/v.mp4"}, src.calls)
}

func TestSaveUntypedWriteErrorIsSaveError(t *testing.T) {
	m := newManager(t, &fakeSource{err: errors.New("disk quota")})
	_, err := m.SaveURL(context.Background(), "x/a.bin", "https://cdn/a")
	assert.True(t, errs.IsType(err, errs.ErrorTypeSave))
}

func TestSaveURLWithoutSource(t *testing.T) {
	m := newManager(t, nil)
	_, err := m.SaveURL(context.Background(), "x/a.bin", "https://cdn/a")
	assert.True(t, errs.IsType(err, errs.ErrorTypeSave))
}

func TestSaveRejectsInvalidNames(t *testing.T) {
	m := newManager(t, nil)

	for _, rel := range []string{
		"albums/Trip: day 1/content.txt",
		"albums/Trip./content.txt",
		"albums/CON/content.txt",
		"albums/" + strings.Repeat("가", 100) + "/content.txt",
	} {
		_, err := m.SaveText(context.Background(), rel, "x")
		assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidFilename), rel)
		assert.ErrorIs(t, err, errs.ErrInvalidFilename)
	}
}

func TestSaveHonorsCancelledContext(t *testing.T) {
	m := newManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.SaveText(ctx, "a.txt", "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateRelPath(t *testing.T) {
	tests := []struct {
		rel string
		ok  bool
	}{
		{"albums/2024-10-05 Picnic/photos/001.jpg", true},
		{"reports/2024-09-30 Daily 991/files/menu.pdf", true},
		{"a/console.txt", true},
		{"a/CONFIG", true},
		{"", false},
		{"/etc/passwd", false},
		{"a//b", false},
		{"a/../b", false},
		{"a/./b", false},
		{"a/b ", false},
		{"a/b.", false},
		{"a/b?c", false},
		{"a/b\x01c", false},
		{"a/nul.txt", false},
		{"a/Com3", false},
		{"a/" + strings.Repeat("x", 256), false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			err := ValidateRelPath(tt.rel)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errs.IsType(err, errs.ErrorTypeInvalidFilename))
			}
		})
	}
}
