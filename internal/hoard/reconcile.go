package hoard

import (
	"fmt"
	"sort"
)

// ForceDirection optionally overrides conflict holds in favor of one side.
// The engine never assumes a direction by default.
type ForceDirection int

const (
	ForceNone ForceDirection = iota
	ForceSource
	ForceDestination
)

func (f ForceDirection) String() string {
	switch f {
	case ForceSource:
		return "source"
	case ForceDestination:
		return "destination"
	default:
		return "none"
	}
}

// ParseForceDirection parses a CLI/config force value.
func ParseForceDirection(s string) (ForceDirection, error) {
	switch s {
	case "", "none":
		return ForceNone, nil
	case "source":
		return ForceSource, nil
	case "destination":
		return ForceDestination, nil
	default:
		return ForceNone, fmt.Errorf("unknown force direction %q (want source, destination, or none)", s)
	}
}

// Reconcile classifies every path in the union of source, destination, and
// last-known state and returns the operations that converge destination
// toward source without losing data.
//
// The function is pure: identical inputs produce an identical operation
// list, ordered by relative path. Timestamps and sizes are used only as a
// fast pre-filter; every non-skip decision is made on content hashes, and a
// hash is always computed before any destructive action. A hashing failure
// aborts reconciliation — an incomplete comparison cannot be trusted.
func Reconcile(source, destination *ScanResult, last *LastKnownState, force ForceDirection) ([]Operation, error) {
	paths := unionPaths(source, destination, last)

	ops := make([]Operation, 0, len(paths))
	for _, p := range paths {
		op, ok, err := classify(p, source, destination, last, force)
		if err != nil {
			return nil, err
		}
		if ok {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// classify applies the decision table to a single path. The second return
// value is false for paths that need no operation at all (directories).
func classify(p string, source, destination *ScanResult, last *LastKnownState, force ForceDirection) (Operation, bool, error) {
	srcEntry, inSource := source.Entry(p)
	dstEntry, inDest := destination.Entry(p)
	lastEntry, inLast := last.Entries[p]

	// Directories are containers, never compared by content. A directory on
	// one side colliding with a file on the other is a conflict.
	srcIsDir := inSource && srcEntry.Kind == KindDir
	dstIsDir := inDest && dstEntry.Kind == KindDir
	switch {
	case srcIsDir && dstIsDir:
		return Operation{}, false, nil
	case srcIsDir && !inDest, dstIsDir && !inSource:
		return Operation{}, false, nil
	case srcIsDir != dstIsDir:
		return resolve(ConflictOp(p, "path is a directory on one side and not the other"),
			force, inSource, inDest), true, nil
	}

	switch {
	case inSource && !inDest:
		if !inLast {
			// New file on the source side.
			return CopyOp(p, ToDestination), true, nil
		}
		// Present at last sync, gone from destination: the deletion is not
		// mirrored back to the source automatically.
		return resolve(ConflictOp(p, "deleted on destination since last sync"),
			force, inSource, inDest), true, nil

	case !inSource && inDest:
		if !inLast {
			// No provenance: never delete an untracked destination file.
			return resolve(ConflictOp(p, "untracked file on destination"),
				force, inSource, inDest), true, nil
		}
		// Mirrors an intentional source deletion — but only when the
		// destination still holds what the last sync recorded.
		dstHash, err := destination.Hash(p)
		if err != nil {
			return Operation{}, false, err
		}
		if dstHash == lastEntry.Hash {
			return DeleteOp(p, OnDestination), true, nil
		}
		return resolve(ConflictOp(p, "modified on destination but deleted from source"),
			force, inSource, inDest), true, nil

	case inSource && inDest:
		op, err := classifyBoth(p, srcEntry, dstEntry, source, destination, lastEntry, inLast, force)
		if err != nil {
			return Operation{}, false, err
		}
		return op, true, nil

	default:
		// Only in last-known state: already gone from both sides. The entry
		// falls out of the record on the next successful sync.
		return Operation{}, false, nil
	}
}

// classifyBoth handles paths present on both sides.
func classifyBoth(p string, srcEntry, dstEntry PathEntry, source, destination *ScanResult,
	lastEntry StateEntry, inLast bool, force ForceDirection) (Operation, error) {

	// Fast pre-filter: when size and mtime on both sides still match the
	// last-known record exactly, nothing changed and no hashing is needed.
	if inLast && entryMatchesState(srcEntry, lastEntry) && entryMatchesState(dstEntry, lastEntry) {
		return SkipOp(p, "unchanged since last sync"), nil
	}

	srcHash, err := source.Hash(p)
	if err != nil {
		return Operation{}, err
	}
	dstHash, err := destination.Hash(p)
	if err != nil {
		return Operation{}, err
	}

	if srcHash == dstHash {
		return SkipOp(p, "already in sync"), nil
	}

	if !inLast {
		return resolve(ConflictOp(p, "created independently on both sides with different content"),
			force, true, true), nil
	}

	srcChanged := srcHash != lastEntry.Hash
	dstChanged := dstHash != lastEntry.Hash
	switch {
	case srcChanged && !dstChanged:
		return CopyOp(p, ToDestination), nil
	case !srcChanged && dstChanged:
		return CopyOp(p, ToSource), nil
	default:
		// Both changed and differ from each other: never auto-resolved.
		return resolve(ConflictOp(p, "divergent edit"), force, true, true), nil
	}
}

// resolve applies the optional force-direction override to a conflict hold.
// With ForceNone the hold is returned unchanged. Forcing a side copies that
// side over the other when it has the path, and deletes the other side's
// copy when it does not.
func resolve(hold Operation, force ForceDirection, inSource, inDest bool) Operation {
	switch force {
	case ForceSource:
		if inSource {
			return CopyOp(hold.RelPath, ToDestination)
		}
		return DeleteOp(hold.RelPath, OnDestination)
	case ForceDestination:
		if inDest {
			return CopyOp(hold.RelPath, ToSource)
		}
		return DeleteOp(hold.RelPath, OnSource)
	default:
		return hold
	}
}

func entryMatchesState(e PathEntry, s StateEntry) bool {
	return e.Size == s.Size && e.ModTime.Equal(s.ModTime)
}

func unionPaths(source, destination *ScanResult, last *LastKnownState) []string {
	seen := make(map[string]struct{}, source.Len()+destination.Len()+len(last.Entries))
	for _, p := range source.Paths() {
		seen[p] = struct{}{}
	}
	for _, p := range destination.Paths() {
		seen[p] = struct{}{}
	}
	for p := range last.Entries {
		seen[p] = struct{}{}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
