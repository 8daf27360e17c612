package artifact

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store persists exactly one artifact at a fixed path.
//
// Writes go to a temporary file in the same directory, are synced, and are
// then renamed over the destination, so a reader sees either the previous
// artifact or the new one in full. When several processes save
// concurrently, the last rename wins.
type Store struct {
	path string
}

// NewStore returns a Store for the artifact file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the artifact file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether an artifact file is present.
func (s *Store) Exists() (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("artifact: stat %s: %w", s.path, err)
}

// Load reads and verifies the stored artifact. A missing file yields an
// error matching fs.ErrNotExist; a corrupt or mismatched one matches
// ErrIncompatible.
func (s *Store) Load() (*Artifact, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("artifact: open: %w", err)
	}
	defer f.Close()

	a, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return a, nil
}

// Save writes a atomically, creating missing parent directories. Failures
// match ErrPersistence.
func (s *Store) Save(a *Artifact) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrPersistence, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := Encode(w, a); err != nil {
		if errors.Is(err, ErrIncompatible) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %v", ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		committed = true
		return fmt.Errorf("%w: rename: %v", ErrPersistence, err)
	}
	committed = true
	return nil
}
