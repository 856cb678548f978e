package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	errs "knexport/pkg/errors"
	"knexport/pkg/logger"
)

// Source streams a remote asset. Implemented by kidsnote.Client.
type Source interface {
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// Manager writes export files under a root directory. It never overwrites:
// a name already taken on disk becomes "name (1).ext", "name (2).ext" and so on.
type Manager struct {
	root   string
	source Source
	logger logger.Logger

	mu      sync.Mutex
	claimed map[string]bool
}

// NewManager creates the root directory if needed.
func NewManager(root string, source Source, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeSave, "create output directory", err)
	}
	return &Manager{
		root:    root,
		source:  source,
		logger:  logger.OrDefault(log),
		claimed: make(map[string]bool),
	}, nil
}

// Root returns the output directory
func (m *Manager) Root() string {
	return m.root
}

// SaveText writes text to relPath and returns the path actually written.
func (m *Manager) SaveText(ctx context.Context, relPath, text string) (string, error) {
	return m.save(ctx, relPath, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

// SaveBytes writes data to relPath and returns the path actually written.
func (m *Manager) SaveBytes(ctx context.Context, relPath string, data []byte) (string, error) {
	return m.save(ctx, relPath, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// SaveURL downloads rawURL into relPath and returns the path actually written.
func (m *Manager) SaveURL(ctx context.Context, relPath, rawURL string) (string, error) {
	if m.source == nil {
		return "", errs.New(errs.ErrorTypeSave, "save url", "no download source configured")
	}
	return m.save(ctx, relPath, func(w io.Writer) error {
		_, err := m.source.Download(ctx, rawURL, w)
		return err
	})
}

func (m *Manager) save(ctx context.Context, relPath string, write func(io.Writer) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateRelPath(relPath); err != nil {
		return "", err
	}

	dir := filepath.Join(m.root, filepath.FromSlash(path.Dir(relPath)))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", classify("create directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".knexport-*.part")
	if err != nil {
		return "", classify("create temporary file", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := write(tmp); err != nil {
		tmp.Close()
		cleanup()
		if errs.TypeOf(err) != errs.ErrorTypeUnknown || ctx.Err() != nil {
			return "", err
		}
		return "", errs.Wrap(errs.ErrorTypeSave, "write "+relPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", errs.Wrap(errs.ErrorTypeSave, "sync "+relPath, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", errs.Wrap(errs.ErrorTypeSave, "close "+relPath, err)
	}

	final, err := m.claim(filepath.Join(dir, path.Base(relPath)))
	if err != nil {
		cleanup()
		return "", err
	}
	if err := os.Rename(tmpName, final); err != nil {
		m.release(final)
		cleanup()
		return "", classify("rename "+relPath, err)
	}

	m.logger.DebugWithFields("file saved", map[string]interface{}{"path": final})
	return final, nil
}

// claim picks the first free variant of target and reserves it.
func (m *Manager) claim(target string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(target, ext)
	for i := 0; i < 10000; i++ {
		candidate := target
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		if m.claimed[candidate] {
			continue
		}
		if _, err := os.Lstat(candidate); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", classify("stat "+candidate, err)
		}
		m.claimed[candidate] = true
		return candidate, nil
	}
	return "", errs.New(errs.ErrorTypeSave, "claim", "too many name collisions for "+target)
}

func (m *Manager) release(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, p)
}

// classify maps OS errors caused by the name itself to ErrorTypeInvalidFilename.
func classify(op string, err error) error {
	if stderrors.Is(err, syscall.ENAMETOOLONG) || stderrors.Is(err, syscall.EINVAL) || stderrors.Is(err, syscall.EILSEQ) {
		return &errs.Error{Type: errs.ErrorTypeInvalidFilename, Op: op, Err: err}
	}
	return errs.Wrap(errs.ErrorTypeSave, op, err)
}

const maxComponentBytes = 255

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ValidateRelPath rejects slash-separated relative paths that would not be a
// portable file name. The error is always ErrorTypeInvalidFilename.
func ValidateRelPath(rel string) error {
	invalid := func(reason string) error {
		return &errs.Error{
			Type:    errs.ErrorTypeInvalidFilename,
			Op:      "validate path",
			Message: fmt.Sprintf("%s: %q", reason, rel),
		}
	}

	if rel == "" {
		return invalid("empty path")
	}
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return invalid("absolute path")
	}

	for _, part := range strings.Split(rel, "/") {
		switch {
		case part == "":
			return invalid("empty path component")
		case part == "." || part == "..":
			return invalid("relative path component")
		case len(part) > maxComponentBytes:
			return invalid("path component too long")
		case strings.HasSuffix(part, ".") || strings.HasSuffix(part, " "):
			return invalid("trailing dot or space")
		case strings.ContainsAny(part, `<>:"\|?*`):
			return invalid("illegal character")
		}
		for _, r := range part {
			if r < 0x20 || r == 0x7f {
				return invalid("control character")
			}
		}
		stem := strings.ToUpper(part)
		if i := strings.IndexByte(stem, '.'); i >= 0 {
			stem = stem[:i]
		}
		if reservedNames[strings.TrimRight(stem, " ")] {
			return invalid("reserved device name")
		}
	}
	return nil
}
