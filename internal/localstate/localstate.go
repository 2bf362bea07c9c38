// Package localstate provides a small key-value store for best-effort
// client-local state: the free-session lock record and the welcome flag.
// Storage unavailability is a supported condition, not an error — callers
// get a Noop store and degrade to "always show" / "never lock".
package localstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the minimal key-value contract. Implementations never panic on
// storage loss; Get simply reports absence.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// FileStore persists keys in a single JSON file. Writes go through a
// temp-file rename so a crash mid-write never corrupts existing state.
type FileStore struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

// Open loads or creates a FileStore at path. A missing file is an empty
// store; an unreadable or corrupt file is an error so the caller can fall
// back to Noop explicitly.
func Open(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("parse state file: %w", err)
		}
	}
	return s, nil
}

// Get returns the value for key and whether it exists.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores key=value and flushes to disk.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flushLocked()
}

// Delete removes key and flushes to disk. Deleting an absent key is a no-op.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flushLocked()
}

func (s *FileStore) flushLocked() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Noop is the fallback store when no backing path is usable. Reads report
// absence and writes succeed silently.
type Noop struct{}

// Get always reports absence.
func (Noop) Get(string) (string, bool) { return "", false }

// Set discards the value.
func (Noop) Set(string, string) error { return nil }

// Delete does nothing.
func (Noop) Delete(string) error { return nil }
