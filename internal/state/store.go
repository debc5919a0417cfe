// Package state persists per-pile last-known state records and enforces
// the single-writer lock discipline.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Shadow53/save-hoarder/internal/hoard"
)

// FileStore keeps one JSON state record per pile under
// <dir>/last_paths/<pile>.json. Pile names may contain slashes (nested
// piles); those map to subdirectories.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads the last-known state for a pile. A missing record means the
// pile has never been synchronized and yields an empty state, not an error.
// A record that exists but cannot be parsed is an error: treating it as
// empty would let the next sync mistake unsynced files for deletions.
func (s *FileStore) Load(pileName string) (*hoard.LastKnownState, error) {
	data, err := os.ReadFile(s.statePath(pileName))
	if err != nil {
		if os.IsNotExist(err) {
			return hoard.NewLastKnownState(pileName), nil
		}
		return nil, fmt.Errorf("reading state for %s: %w", pileName, err)
	}

	var state hoard.LastKnownState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupt state record for %s: %w", pileName, err)
	}
	if state.Entries == nil {
		state.Entries = make(map[string]hoard.StateEntry)
	}
	return &state, nil
}

// Save replaces the pile's state record atomically: the JSON is written to
// a temp file in the same directory and renamed into place, so a crash
// never leaves a partial record behind.
func (s *FileStore) Save(pileName string, state *hoard.LastKnownState) error {
	path := s.statePath(pileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state for %s: %w", pileName, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming state into place: %w", err)
	}
	success = true
	return nil
}

func (s *FileStore) statePath(pileName string) string {
	return filepath.Join(s.dir, "last_paths", filepath.FromSlash(pileName)+".json")
}

// Compile-time check that FileStore implements hoard.StateStore.
var _ hoard.StateStore = (*FileStore)(nil)
