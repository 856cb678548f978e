package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"knexport/pkg/kidsnote"
	"knexport/pkg/logger"
)

// Marker records the last item the export loop finished with.
type Marker struct {
	Kind  kidsnote.Kind `json:"kind"`
	Index int           `json:"index"`
	// Total is the server-reported total, or "?" when it was not trusted
	Total     string    `json:"total"`
	ID        string    `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is everything visible outside a run. Every field is overwritten,
// never merged, by the single active writer.
type Snapshot struct {
	RunID     string                 `json:"run_id,omitempty"`
	Progress  string                 `json:"progress"`
	Final     string                 `json:"final"`
	Marker    *Marker                `json:"marker,omitempty"`
	Endpoint  *kidsnote.EndpointInfo `json:"endpoint,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
	Version   int                    `json:"version"`
}

const snapshotVersion = 1

// Store holds the status slots in memory, mirrors them to a JSON file, and
// notifies subscribers on every change. An empty path keeps it memory-only.
type Store struct {
	path   string
	logger logger.Logger

	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]chan Snapshot
	nextID int
}

// NewStore opens the store at path, picking up whatever a previous run left there.
func NewStore(path string, log logger.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.OrDefault(log),
		subs:   make(map[int]chan Snapshot),
		snap:   Snapshot{Version: snapshotVersion},
	}
	if path == "" {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create status directory: %w", err)
	}
	prev, err := Load(path)
	if err != nil {
		s.logger.WithError(err).Warn("ignoring unreadable status file")
	} else if prev != nil {
		s.snap = *prev
	}
	return s, nil
}

// NewMemoryStore returns a store that is never written to disk.
func NewMemoryStore() *Store {
	s, _ := NewStore("", logger.NewNopLogger())
	return s
}

// Load reads a status file. A missing file yields (nil, nil).
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode status file: %w", err)
	}
	return &snap, nil
}

// Path returns the backing file, or "" for a memory-only store.
func (s *Store) Path() string {
	return s.path
}

// Begin clears both slots and the marker for a new run.
func (s *Store) Begin(runID string) error {
	return s.update(func(snap *Snapshot) {
		snap.RunID = runID
		snap.Progress = ""
		snap.Final = ""
		snap.Marker = nil
		snap.Endpoint = nil
	})
}

// SetProgress overwrites the progress line.
func (s *Store) SetProgress(line string) error {
	return s.update(func(snap *Snapshot) { snap.Progress = line })
}

// SetFinal overwrites the final summary.
func (s *Store) SetFinal(summary string) error {
	return s.update(func(snap *Snapshot) { snap.Final = summary })
}

// ClearFinal empties the final summary slot.
func (s *Store) ClearFinal() error {
	return s.SetFinal("")
}

// SetProgressAndMarker updates the progress line and last-processed marker together.
func (s *Store) SetProgressAndMarker(line string, m Marker) error {
	return s.update(func(snap *Snapshot) {
		snap.Progress = line
		m.UpdatedAt = time.Now()
		snap.Marker = &m
	})
}

// SetEndpoint stores a diagnostic copy of the discovered endpoint.
func (s *Store) SetEndpoint(info *kidsnote.EndpointInfo) error {
	return s.update(func(snap *Snapshot) {
		if info == nil {
			snap.Endpoint = nil
			return
		}
		cp := *info
		snap.Endpoint = &cp
	})
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe returns a channel that always holds the newest snapshot after a
// change. Slow readers miss intermediate values, never the latest one.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) update(mutate func(*Snapshot)) error {
	s.mu.Lock()
	mutate(&s.snap)
	s.snap.UpdatedAt = time.Now()
	s.snap.Version = snapshotVersion
	snap := s.snap
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
	s.mu.Unlock()

	return s.persist(snap)
}

// persist writes the snapshot atomically via a temp file and rename.
func (s *Store) persist(snap Snapshot) error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary status file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync status file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close status file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	return nil
}

// DefaultPath returns status.json inside the per-user data directory.
func DefaultPath() (string, error) {
	dir, err := DataDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "status.json"), nil
}

// DataDirectory returns the per-user data directory for the current OS.
func DataDirectory() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "knexport"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "knexport"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "knexport"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "knexport"), nil
	}
}
