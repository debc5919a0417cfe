package testutil

import (
	"context"
	"fmt"

	"github.com/Shadow53/save-hoarder/internal/hoard"
	"github.com/Shadow53/save-hoarder/internal/match"
)

// MemoryStateStore is an in-memory StateStore.
type MemoryStateStore struct {
	States  map[string]*hoard.LastKnownState
	SaveErr error // returned by Save when set
	Saves   int
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{States: make(map[string]*hoard.LastKnownState)}
}

func (s *MemoryStateStore) Load(pileName string) (*hoard.LastKnownState, error) {
	if state, ok := s.States[pileName]; ok {
		return state, nil
	}
	return hoard.NewLastKnownState(pileName), nil
}

func (s *MemoryStateStore) Save(pileName string, state *hoard.LastKnownState) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.States[pileName] = state
	s.Saves++
	return nil
}

// MemoryHistory records sync runs in a slice.
type MemoryHistory struct {
	Runs []hoard.SyncRun
}

func (h *MemoryHistory) RecordRun(run hoard.SyncRun) error {
	h.Runs = append(h.Runs, run)
	return nil
}

// NopLocker hands out locks unconditionally.
type NopLocker struct{}

func (NopLocker) Lock(string) (func(), error) { return func() {}, nil }

// MapScanner serves pre-built scan results keyed by root path.
// Scans of the same root return fresh results when Next holds a newer scan
// for that root (used to model post-execution rescans).
type MapScanner struct {
	Results map[string]*hoard.ScanResult
	Next    map[string]*hoard.ScanResult
	Errs    map[string]error
	scans   map[string]int
}

func NewMapScanner() *MapScanner {
	return &MapScanner{
		Results: make(map[string]*hoard.ScanResult),
		Next:    make(map[string]*hoard.ScanResult),
		Errs:    make(map[string]error),
		scans:   make(map[string]int),
	}
}

func (m *MapScanner) Scan(_ context.Context, root string, _ *match.PatternSet) (*hoard.ScanResult, error) {
	if err := m.Errs[root]; err != nil {
		return nil, err
	}
	m.scans[root]++
	if m.scans[root] > 1 {
		if next, ok := m.Next[root]; ok {
			return next, nil
		}
	}
	if result, ok := m.Results[root]; ok {
		return result, nil
	}
	return nil, fmt.Errorf("no scan result for root %s", root)
}

// ScanCount returns how many times a root was scanned.
func (m *MapScanner) ScanCount(root string) int { return m.scans[root] }
