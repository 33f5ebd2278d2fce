package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_InMemory(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, ok := s.Lookup("/a.png", 1, 1); ok {
		t.Error("Expected miss on empty cache")
	}
}

func TestStore_SaveLookup(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	entry := Entry{
		Path:          "/cards/Aria.png",
		Size:          2048,
		ModTime:       1700000000,
		ContentHash:   "abcd",
		Perceptual:    int64(-1),
		HasPerceptual: true,
	}
	if err := s.Save(entry); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, ok := s.Lookup(entry.Path, entry.Size, entry.ModTime)
	if !ok {
		t.Fatal("Expected hit after Save")
	}
	if got.ContentHash != "abcd" || !got.HasPerceptual || got.PerceptualBits() != ^uint64(0) {
		t.Errorf("Lookup() = %+v", got)
	}

	if _, ok := s.Lookup(entry.Path, entry.Size, entry.ModTime+1); ok {
		t.Error("Expected miss when mod time changed")
	}

	entry.ContentHash = "ef01"
	entry.ModTime++
	if err := s.Save(entry); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	got, ok = s.Lookup(entry.Path, entry.Size, entry.ModTime)
	if !ok || got.ContentHash != "ef01" {
		t.Errorf("Lookup() after overwrite = %+v, %v", got, ok)
	}

	hits, misses := s.Stats()
	if hits != 2 || misses != 1 {
		t.Errorf("Stats() = %d/%d, want 2/1", hits, misses)
	}
}

func TestOpen_File(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "fp.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Save(Entry{Path: "/x.png", Size: 1, ModTime: 2, ContentHash: "ff"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("Expected cache file to be created")
	}

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if _, ok := s.Lookup("/x.png", 1, 2); !ok {
		t.Error("Expected entry to survive reopen")
	}
}
