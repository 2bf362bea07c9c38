package localstate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_MissingFileIsEmptyStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := s.Get("anything"); ok {
		t.Error("Expected an empty store")
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := s.Set("welcome_seen", "true"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	v, ok := reopened.Get("welcome_seen")
	if !ok || v != "true" {
		t.Errorf("Expected value to survive reopen, got %q (%v)", v, ok)
	}
}

func TestFileStore_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := s.Get("k"); ok {
		t.Error("Expected key to be gone")
	}

	if err := s.Delete("absent"); err != nil {
		t.Errorf("Deleting an absent key should be a no-op, got %v", err)
	}
}

func TestOpen_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to seed corrupt file: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Error("Expected an error for a corrupt state file")
	}
}

func TestFileStore_CreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set should create parent directories: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected state file on disk: %v", err)
	}
}

func TestNoop(t *testing.T) {
	var s Store = Noop{}
	if err := s.Set("k", "v"); err != nil {
		t.Errorf("Noop Set should succeed silently, got %v", err)
	}
	if _, ok := s.Get("k"); ok {
		t.Error("Noop Get must always report absence")
	}
	if err := s.Delete("k"); err != nil {
		t.Errorf("Noop Delete should succeed silently, got %v", err)
	}
}
