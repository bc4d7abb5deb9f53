package settings

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	Path          string
	DefaultOwners []string // first-run owners; DefaultOwners when empty
	Logger        *slog.Logger
}

// Store is the single in-process owner of the settings document.
//
// Field access is mutex-guarded. Saves run outside the lock, so concurrent
// updates race at the file level and the last writer wins.
type Store struct {
	path   string
	format format
	owners []string
	logger *slog.Logger

	mu  sync.RWMutex
	cur *Settings

	writeMu     sync.Mutex
	lastWritten []byte
}

// Open loads the settings document, creating it with defaults when missing.
// A corrupt document is logged and the store degrades to empty settings; the
// load error is returned alongside the usable store.
func Open(cfg StoreConfig) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   cfg.Path,
		format: formatFor(cfg.Path),
		owners: cfg.DefaultOwners,
		logger: logger,
	}
	cur, err := s.Load()
	if err != nil {
		s.logger.Error("could not load settings, using empty settings", "path", s.path, "err", err)
		cur = &Settings{}
	}
	s.cur = cur
	return s, err
}

// Load reads the document from disk. When the file is absent the defaults are
// written and returned.
func (s *Store) Load() (*Settings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		def := Defaults(s.owners)
		if err := s.write(def); err != nil {
			s.logger.Error("could not save default settings", "path", s.path, "err", err)
		} else {
			s.logger.Info("created default settings", "path", s.path)
		}
		return def, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	return s.decode(data)
}

func (s *Store) decode(data []byte) (*Settings, error) {
	var out Settings
	if err := s.format.decode(data, &out); err != nil {
		return nil, &PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	return &out, nil
}

// ReadFile decodes and validates a settings document without a store.
func ReadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	var out Settings
	if err := formatFor(path).decode(data, &out); err != nil {
		return nil, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	return &out, nil
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Clone()
}

// Update applies fn to the current settings and saves the result. A save
// failure is logged and returned; the in-memory change is kept.
func (s *Store) Update(fn func(*Settings) error) (*Settings, error) {
	s.mu.Lock()
	next := s.cur.Clone()
	if err := fn(next); err != nil {
		s.mu.Unlock()
		return s.Snapshot(), err
	}
	s.cur = next
	snap := next.Clone()
	s.mu.Unlock()

	if err := s.write(snap); err != nil {
		s.logger.Error("could not save settings", "path", s.path, "err", err)
		return snap, err
	}
	return snap, nil
}

// SetToggle sets a protection or behavior toggle and saves. Unknown names
// return ErrUnknownToggle and leave the settings unchanged.
func (s *Store) SetToggle(name string, on bool) (*Settings, error) {
	return s.Update(func(st *Settings) error {
		return st.SetToggle(name, on)
	})
}

// replace swaps in settings read from disk.
func (s *Store) replace(next *Settings) {
	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()
}

// isOwnWrite reports whether data is exactly what this store last wrote.
func (s *Store) isOwnWrite(data []byte) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.lastWritten != nil && bytes.Equal(s.lastWritten, data)
}

func (s *Store) write(st *Settings) error {
	data, err := s.format.encode(st)
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := writeAtomic(s.path, data); err != nil {
		return &PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	s.lastWritten = data
	return nil
}

// writeAtomic replaces path with content via a synced temp file and rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
