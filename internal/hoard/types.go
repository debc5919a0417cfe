package hoard

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shadow53/save-hoarder/internal/match"
)

// Pile is a named logical unit of files to synchronize between a source root
// and a destination root. Piles are built by the config layer and are
// immutable during a run.
type Pile struct {
	Name            string
	SourceRoot      string
	DestinationRoot string
	Patterns        *match.PatternSet
}

// EntryKind classifies a path discovered during a scan.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
	KindSymlink
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// PathEntry is one file, directory, or symlink discovered during a scan.
// Entries are owned by the scan that produced them and never mutated.
// Content hashes are not stored here; they are computed on demand through
// ScanResult.Hash so unchanged files are never read.
type PathEntry struct {
	RelPath string
	Kind    EntryKind
	Size    int64
	ModTime time.Time
}

// HashFunc computes the content hash for a relative path within a scan root.
type HashFunc func(relPath string) (string, error)

// ScanResult is the normalized tree for one side of one pile at one point in
// time: a mapping from relative path to PathEntry plus a lazy, memoized
// content hasher. Directory entries are present only as containers and have
// no content hash.
type ScanResult struct {
	root    string
	entries map[string]PathEntry

	hashFn HashFunc
	mu     sync.Mutex
	hashes map[string]string
}

// NewScanResult builds a ScanResult from discovered entries.
// hashFn may be nil when hashes are preset via SetHash (tests).
func NewScanResult(root string, entries []PathEntry, hashFn HashFunc) *ScanResult {
	m := make(map[string]PathEntry, len(entries))
	for _, e := range entries {
		m[e.RelPath] = e
	}
	return &ScanResult{
		root:    root,
		entries: m,
		hashFn:  hashFn,
		hashes:  make(map[string]string),
	}
}

// Root returns the absolute root path this scan was taken from.
func (r *ScanResult) Root() string { return r.root }

// Len returns the number of entries in the scan.
func (r *ScanResult) Len() int { return len(r.entries) }

// Entry returns the entry for a relative path, if present.
func (r *ScanResult) Entry(relPath string) (PathEntry, bool) {
	e, ok := r.entries[relPath]
	return e, ok
}

// Paths returns all relative paths in the scan, sorted lexicographically.
func (r *ScanResult) Paths() []string {
	paths := make([]string, 0, len(r.entries))
	for p := range r.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Hash returns the content hash for a relative path, computing it on first
// use and caching the result for the lifetime of the scan.
func (r *ScanResult) Hash(relPath string) (string, error) {
	e, ok := r.entries[relPath]
	if !ok {
		return "", fmt.Errorf("path not in scan: %s", relPath)
	}
	if e.Kind == KindDir {
		return "", fmt.Errorf("directories have no content hash: %s", relPath)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hashes[relPath]; ok {
		return h, nil
	}
	if r.hashFn == nil {
		return "", fmt.Errorf("no hasher available for scan of %s", r.root)
	}
	h, err := r.hashFn(relPath)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", relPath, err)
	}
	r.hashes[relPath] = h
	return h, nil
}

// SetHash presets the content hash for a relative path.
// Intended for in-memory scans in tests.
func (r *ScanResult) SetHash(relPath, hash string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes[relPath] = hash
}

// StateEntry records what was known about one path at the end of the last
// successful synchronization. Size and ModTime are an optimization hint for
// skipping unchanged files; equality decisions always use the hash.
type StateEntry struct {
	Hash    string    `json:"hash"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// LastKnownState is the persisted record of the most recent successful
// synchronization of a pile. It is created on the first successful sync,
// read at the start of every subsequent sync, and replaced atomically —
// never partially updated.
type LastKnownState struct {
	Pile     string                `json:"pile"`
	SyncedAt time.Time             `json:"synced_at"`
	Entries  map[string]StateEntry `json:"entries"`
}

// NewLastKnownState returns an empty state for a pile that has never been
// successfully synchronized.
func NewLastKnownState(pile string) *LastKnownState {
	return &LastKnownState{
		Pile:    pile,
		Entries: make(map[string]StateEntry),
	}
}

// Empty reports whether the state records no paths (first run).
func (s *LastKnownState) Empty() bool { return len(s.Entries) == 0 }
