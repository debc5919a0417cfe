package hoard

import (
	"testing"
	"time"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// scanWith builds an in-memory scan result with preset hashes.
// files maps relative path → hash; every file gets size 10 and a fixed mtime
// unless overridden via entries.
func scanWith(root string, files map[string]string) *ScanResult {
	entries := make([]PathEntry, 0, len(files))
	for p := range files {
		entries = append(entries, PathEntry{RelPath: p, Kind: KindFile, Size: 10, ModTime: baseTime})
	}
	result := NewScanResult(root, entries, nil)
	for p, h := range files {
		result.SetHash(p, h)
	}
	return result
}

func stateWith(pile string, hashes map[string]string) *LastKnownState {
	state := NewLastKnownState(pile)
	for p, h := range hashes {
		// Deliberately different size/mtime than scanWith produces, so the
		// metadata fast path never short-circuits these tests.
		state.Entries[p] = StateEntry{Hash: h, Size: 99, ModTime: baseTime.Add(-time.Hour)}
	}
	return state
}

func TestReconcile_DecisionTable(t *testing.T) {
	tests := []struct {
		name       string
		source     map[string]string
		dest       map[string]string
		last       map[string]string
		wantKind   OperationKind
		wantDir    CopyDirection
		wantSide   Side
		wantReason string
	}{
		{
			name:     "new source file is copied forward",
			source:   map[string]string{"a.txt": "h1"},
			dest:     map[string]string{},
			last:     map[string]string{},
			wantKind: OpCopy,
			wantDir:  ToDestination,
		},
		{
			name:       "deleted on destination is held",
			source:     map[string]string{"a.txt": "h1"},
			dest:       map[string]string{},
			last:       map[string]string{"a.txt": "h1"},
			wantKind:   OpConflictHold,
			wantReason: "deleted on destination since last sync",
		},
		{
			name:     "identical content is skipped",
			source:   map[string]string{"a.txt": "h1"},
			dest:     map[string]string{"a.txt": "h1"},
			last:     map[string]string{},
			wantKind: OpSkip,
		},
		{
			name:     "clean forward update",
			source:   map[string]string{"a.txt": "h2"},
			dest:     map[string]string{"a.txt": "h1"},
			last:     map[string]string{"a.txt": "h1"},
			wantKind: OpCopy,
			wantDir:  ToDestination,
		},
		{
			name:     "clean backward update",
			source:   map[string]string{"a.txt": "h1"},
			dest:     map[string]string{"a.txt": "h3"},
			last:     map[string]string{"a.txt": "h1"},
			wantKind: OpCopy,
			wantDir:  ToSource,
		},
		{
			name:       "divergent edit is held",
			source:     map[string]string{"a.txt": "h2"},
			dest:       map[string]string{"a.txt": "h3"},
			last:       map[string]string{"a.txt": "h1"},
			wantKind:   OpConflictHold,
			wantReason: "divergent edit",
		},
		{
			name:       "created independently on both sides is held",
			source:     map[string]string{"a.txt": "h1"},
			dest:       map[string]string{"a.txt": "h2"},
			last:       map[string]string{},
			wantKind:   OpConflictHold,
			wantReason: "created independently on both sides with different content",
		},
		{
			name:     "tracked deletion is mirrored",
			source:   map[string]string{},
			dest:     map[string]string{"a.txt": "h1"},
			last:     map[string]string{"a.txt": "h1"},
			wantKind: OpDelete,
			wantSide: OnDestination,
		},
		{
			name:       "deleted from source but modified on destination is held",
			source:     map[string]string{},
			dest:       map[string]string{"a.txt": "h2"},
			last:       map[string]string{"a.txt": "h1"},
			wantKind:   OpConflictHold,
			wantReason: "modified on destination but deleted from source",
		},
		{
			name:       "untracked destination file is never deleted",
			source:     map[string]string{},
			dest:       map[string]string{"a.txt": "h1"},
			last:       map[string]string{},
			wantKind:   OpConflictHold,
			wantReason: "untracked file on destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ops, err := Reconcile(
				scanWith("/src", tt.source),
				scanWith("/dst", tt.dest),
				stateWith("test", tt.last),
				ForceNone,
			)
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if len(ops) != 1 {
				t.Fatalf("expected 1 operation, got %d: %v", len(ops), ops)
			}
			op := ops[0]
			if op.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", op.Kind, tt.wantKind)
			}
			if op.RelPath != "a.txt" {
				t.Errorf("path = %s, want a.txt", op.RelPath)
			}
			if op.Kind == OpCopy && op.Direction != tt.wantDir {
				t.Errorf("direction = %s, want %s", op.Direction, tt.wantDir)
			}
			if op.Kind == OpDelete && op.Side != tt.wantSide {
				t.Errorf("side = %s, want %s", op.Side, tt.wantSide)
			}
			if tt.wantReason != "" && op.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", op.Reason, tt.wantReason)
			}
		})
	}
}

func TestReconcile_PathOnlyInLastState(t *testing.T) {
	t.Parallel()
	ops, err := Reconcile(
		scanWith("/src", nil),
		scanWith("/dst", nil),
		stateWith("test", map[string]string{"gone.txt": "h1"}),
		ForceNone,
	)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("expected no operations for a path gone from both sides, got %v", ops)
	}
}

func TestReconcile_DirectoriesAreContainers(t *testing.T) {
	t.Parallel()
	src := NewScanResult("/src", []PathEntry{
		{RelPath: "sub", Kind: KindDir, ModTime: baseTime},
		{RelPath: "sub/a.txt", Kind: KindFile, Size: 10, ModTime: baseTime},
	}, nil)
	src.SetHash("sub/a.txt", "h1")
	dst := NewScanResult("/dst", []PathEntry{
		{RelPath: "sub", Kind: KindDir, ModTime: baseTime},
	}, nil)

	ops, err := Reconcile(src, dst, NewLastKnownState("test"), ForceNone)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("expected 1 operation, got %d: %v", len(ops), ops)
	}
	if ops[0].Kind != OpCopy || ops[0].RelPath != "sub/a.txt" {
		t.Errorf("expected copy of sub/a.txt, got %v", ops[0])
	}
}

func TestReconcile_KindMismatchIsHeld(t *testing.T) {
	t.Parallel()
	src := NewScanResult("/src", []PathEntry{
		{RelPath: "thing", Kind: KindDir, ModTime: baseTime},
	}, nil)
	dst := NewScanResult("/dst", []PathEntry{
		{RelPath: "thing", Kind: KindFile, Size: 4, ModTime: baseTime},
	}, nil)

	ops, err := Reconcile(src, dst, NewLastKnownState("test"), ForceNone)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != OpConflictHold {
		t.Fatalf("expected a single conflict hold, got %v", ops)
	}
}

func TestReconcile_MetadataFastPathSkipsHashing(t *testing.T) {
	t.Parallel()
	entry := PathEntry{RelPath: "a.txt", Kind: KindFile, Size: 10, ModTime: baseTime}
	// No hasher and no preset hash: any hash request would fail the test.
	src := NewScanResult("/src", []PathEntry{entry}, nil)
	dst := NewScanResult("/dst", []PathEntry{entry}, nil)
	last := NewLastKnownState("test")
	last.Entries["a.txt"] = StateEntry{Hash: "h1", Size: 10, ModTime: baseTime}

	ops, err := Reconcile(src, dst, last, ForceNone)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != OpSkip {
		t.Fatalf("expected a single skip, got %v", ops)
	}
}

func TestReconcile_HashErrorAborts(t *testing.T) {
	t.Parallel()
	// Both sides have the file, metadata differs, and no hash is available:
	// reconciliation must fail rather than guess.
	src := NewScanResult("/src", []PathEntry{
		{RelPath: "a.txt", Kind: KindFile, Size: 10, ModTime: baseTime},
	}, nil)
	dst := NewScanResult("/dst", []PathEntry{
		{RelPath: "a.txt", Kind: KindFile, Size: 20, ModTime: baseTime},
	}, nil)

	if _, err := Reconcile(src, dst, NewLastKnownState("test"), ForceNone); err == nil {
		t.Fatal("expected error when hashing is unavailable")
	}
}

func TestReconcile_OrderStable(t *testing.T) {
	t.Parallel()
	files := map[string]string{"c.txt": "h1", "a.txt": "h2", "b/d.txt": "h3"}
	src := scanWith("/src", files)
	dst := scanWith("/dst", map[string]string{})

	ops, err := Reconcile(src, dst, NewLastKnownState("test"), ForceNone)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	want := []string{"a.txt", "b/d.txt", "c.txt"}
	if len(ops) != len(want) {
		t.Fatalf("expected %d operations, got %d", len(want), len(ops))
	}
	for i, p := range want {
		if ops[i].RelPath != p {
			t.Errorf("ops[%d].RelPath = %s, want %s", i, ops[i].RelPath, p)
		}
	}
}

func TestReconcile_ForceOverrides(t *testing.T) {
	tests := []struct {
		name     string
		source   map[string]string
		dest     map[string]string
		last     map[string]string
		force    ForceDirection
		wantKind OperationKind
		wantDir  CopyDirection
		wantSide Side
	}{
		{
			name:     "force source resolves divergent edit forward",
			source:   map[string]string{"a.txt": "h2"},
			dest:     map[string]string{"a.txt": "h3"},
			last:     map[string]string{"a.txt": "h1"},
			force:    ForceSource,
			wantKind: OpCopy,
			wantDir:  ToDestination,
		},
		{
			name:     "force destination resolves divergent edit backward",
			source:   map[string]string{"a.txt": "h2"},
			dest:     map[string]string{"a.txt": "h3"},
			last:     map[string]string{"a.txt": "h1"},
			force:    ForceDestination,
			wantKind: OpCopy,
			wantDir:  ToSource,
		},
		{
			name:     "force source deletes untracked destination file",
			source:   map[string]string{},
			dest:     map[string]string{"a.txt": "h1"},
			last:     map[string]string{},
			force:    ForceSource,
			wantKind: OpDelete,
			wantSide: OnDestination,
		},
		{
			name:     "force destination mirrors destination deletion to source",
			source:   map[string]string{"a.txt": "h1"},
			dest:     map[string]string{},
			last:     map[string]string{"a.txt": "h1"},
			force:    ForceDestination,
			wantKind: OpDelete,
			wantSide: OnSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ops, err := Reconcile(
				scanWith("/src", tt.source),
				scanWith("/dst", tt.dest),
				stateWith("test", tt.last),
				tt.force,
			)
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if len(ops) != 1 {
				t.Fatalf("expected 1 operation, got %d: %v", len(ops), ops)
			}
			op := ops[0]
			if op.Kind != tt.wantKind {
				t.Fatalf("kind = %s, want %s", op.Kind, tt.wantKind)
			}
			if op.Kind == OpCopy && op.Direction != tt.wantDir {
				t.Errorf("direction = %s, want %s", op.Direction, tt.wantDir)
			}
			if op.Kind == OpDelete && op.Side != tt.wantSide {
				t.Errorf("side = %s, want %s", op.Side, tt.wantSide)
			}
		})
	}
}

func TestReconcile_ForceNeverTouchesSkips(t *testing.T) {
	t.Parallel()
	ops, err := Reconcile(
		scanWith("/src", map[string]string{"a.txt": "h1"}),
		scanWith("/dst", map[string]string{"a.txt": "h1"}),
		NewLastKnownState("test"),
		ForceSource,
	)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != OpSkip {
		t.Fatalf("expected skip to survive forcing, got %v", ops)
	}
}

func TestParseForceDirection(t *testing.T) {
	t.Parallel()
	for input, want := range map[string]ForceDirection{
		"":            ForceNone,
		"none":        ForceNone,
		"source":      ForceSource,
		"destination": ForceDestination,
	} {
		got, err := ParseForceDirection(input)
		if err != nil {
			t.Fatalf("ParseForceDirection(%q) error = %v", input, err)
		}
		if got != want {
			t.Errorf("ParseForceDirection(%q) = %v, want %v", input, got, want)
		}
	}
	if _, err := ParseForceDirection("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
}
