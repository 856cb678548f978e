package status

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"knexport/pkg/kidsnote"
	"knexport/pkg/logger"
)

func TestStorePersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "status.json")

	s, err := NewStore(path, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, s.Begin("run-1"))
	require.NoError(t, s.SetEndpoint(kidsnote.NewEndpointInfo("https://www.kidsnote.com", kidsnote.KindAlbum, "1234", "")))
	require.NoError(t, s.SetProgressAndMarker("✓ albums 1/?", Marker{Kind: kidsnote.KindAlbum, Index: 1, Total: "?", ID: "77"}))
	require.NoError(t, s.SetFinal("done"))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file is renamed away")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "✓ albums 1/?", loaded.Progress)
	assert.Equal(t, "done", loaded.Final)
	require.NotNil(t, loaded.Marker)
	assert.Equal(t, "77", loaded.Marker.ID)
	require.NotNil(t, loaded.Endpoint)
	assert.Equal(t, "1234", loaded.Endpoint.ChildID)

	reopened, err := NewStore(path, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "done", reopened.Snapshot().Final)
}

func TestBeginClearsPreviousRun(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetProgress("old"))
	require.NoError(t, s.SetFinal("old summary"))
	require.NoError(t, s.SetProgressAndMarker("x", Marker{Index: 3}))

	require.NoError(t, s.Begin("run-2"))

	snap := s.Snapshot()
	assert.Equal(t, "run-2", snap.RunID)
	assert.Empty(t, snap.Progress)
	assert.Empty(t, snap.Final)
	assert.Nil(t, snap.Marker)
}

func TestLastWriteWins(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SetProgress("a"))
	require.NoError(t, s.SetProgress("b"))
	assert.Equal(t, "b", s.Snapshot().Progress)
}

func TestSubscribeDeliversNewest(t *testing.T) {
	s := NewMemoryStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.SetProgress("one"))
	require.NoError(t, s.SetProgress("two"))
	require.NoError(t, s.SetProgress("three"))

	select {
	case snap := <-ch:
		assert.Equal(t, "three", snap.Progress)
	case <-time.After(time.Second):
		t.Fatal("no notification")
	}

	select {
	case snap := <-ch:
		t.Fatalf("unexpected extra notification: %q", snap.Progress)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := NewMemoryStore()
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, s.SetProgress("after"))
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	snap, err := Load(filepath.Join(dir, "none.json"))
	assert.NoError(t, err)
	assert.Nil(t, snap)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	s, err := NewStore(bad, logger.NewNopLogger())
	require.NoError(t, err, "a corrupt file does not block a new run")
	assert.Empty(t, s.Snapshot().Progress)
}

func TestDataDirectoryHonorsXDG(t *testing.T) {
	if os.Getenv("APPDATA") != "" || filepath.Separator != '/' {
		t.Skip("XDG layout only applies on unix-like systems")
	}
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultPath()
	require.NoError(t, err)
	if filepath.Dir(filepath.Dir(got)) == dir {
		assert.Equal(t, filepath.Join(dir, "knexport", "status.json"), got)
	}
}
