package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shadow53/save-hoarder/internal/hoard"
)

func TestFileStore_LoadMissingIsEmpty(t *testing.T) {
	t.Parallel()
	store := NewFileStore(t.TempDir())

	state, err := store.Load("dotfiles")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if state.Pile != "dotfiles" || len(state.Entries) != 0 {
		t.Errorf("state = %+v, want empty state for dotfiles", state)
	}
}

func TestFileStore_SaveThenLoad(t *testing.T) {
	t.Parallel()
	store := NewFileStore(t.TempDir())

	saved := hoard.NewLastKnownState("dotfiles")
	saved.SyncedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	saved.Entries["config/app.toml"] = hoard.StateEntry{
		Hash:    "abc123",
		Size:    42,
		ModTime: time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC),
	}

	if err := store.Save("dotfiles", saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load("dotfiles")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.SyncedAt.Equal(saved.SyncedAt) {
		t.Errorf("SyncedAt = %v, want %v", loaded.SyncedAt, saved.SyncedAt)
	}
	entry, ok := loaded.Entries["config/app.toml"]
	if !ok {
		t.Fatal("entry missing after round trip")
	}
	if entry.Hash != "abc123" || entry.Size != 42 {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.ModTime.Equal(saved.Entries["config/app.toml"].ModTime) {
		t.Errorf("ModTime = %v", entry.ModTime)
	}
}

func TestFileStore_SaveReplacesAtomically(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewFileStore(dir)

	first := hoard.NewLastKnownState("dotfiles")
	first.Entries["old.txt"] = hoard.StateEntry{Hash: "h1"}
	if err := store.Save("dotfiles", first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := hoard.NewLastKnownState("dotfiles")
	second.Entries["new.txt"] = hoard.StateEntry{Hash: "h2"}
	if err := store.Save("dotfiles", second); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	loaded, err := store.Load("dotfiles")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := loaded.Entries["old.txt"]; ok {
		t.Error("old entry survived replacement")
	}
	if _, ok := loaded.Entries["new.txt"]; !ok {
		t.Error("new entry missing")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "last_paths"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "dotfiles.json" {
			t.Errorf("unexpected file in state dir: %s", e.Name())
		}
	}
}

func TestFileStore_NestedPileNames(t *testing.T) {
	t.Parallel()
	store := NewFileStore(t.TempDir())

	state := hoard.NewLastKnownState("game/saves")
	state.Entries["slot1.dat"] = hoard.StateEntry{Hash: "h1"}
	if err := store.Save("game/saves", state); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load("game/saves")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := loaded.Entries["slot1.dat"]; !ok {
		t.Error("nested pile entry missing after round trip")
	}
}

func TestFileStore_CorruptRecordIsError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store := NewFileStore(dir)

	path := filepath.Join(dir, "last_paths", "dotfiles.json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := store.Load("dotfiles"); err == nil {
		t.Fatal("expected error loading corrupt state record")
	}
}
