package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shadow53/save-hoarder/internal/hoard"
)

func TestOps_CopyCreatesParents(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "payload")

	ops := NewOps(RetryPolicy{}, hoard.NewNopLogger())
	target := filepath.Join(dst, "deep", "nested", "a.txt")
	if err := ops.Copy(context.Background(), filepath.Join(src, "a.txt"), target); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("reading copy: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("content = %q, want %q", got, "payload")
	}
}

func TestOps_CopyPreservesMetadata(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	dst := t.TempDir()
	srcPath := filepath.Join(src, "a.txt")
	writeFile(t, srcPath, "payload")

	mtime := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC)
	if err := os.Chmod(srcPath, 0600); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := os.Chtimes(srcPath, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	ops := NewOps(RetryPolicy{}, hoard.NewNopLogger())
	target := filepath.Join(dst, "a.txt")
	if err := ops.Copy(context.Background(), srcPath, target); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat copy: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
}

func TestOps_CopyReplacesExisting(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "new content")
	writeFile(t, filepath.Join(dst, "a.txt"), "old content")

	ops := NewOps(RetryPolicy{}, hoard.NewNopLogger())
	if err := ops.Copy(context.Background(), filepath.Join(src, "a.txt"), filepath.Join(dst, "a.txt")); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	if err != nil {
		t.Fatalf("reading copy: %v", err)
	}
	if string(got) != "new content" {
		t.Errorf("content = %q, want %q", got, "new content")
	}
}

func TestOps_CopyLeavesNoTempFileOnMissingSource(t *testing.T) {
	t.Parallel()
	dst := t.TempDir()

	ops := NewOps(RetryPolicy{}, hoard.NewNopLogger())
	err := ops.Copy(context.Background(), filepath.Join(t.TempDir(), "gone.txt"), filepath.Join(dst, "gone.txt"))
	if err == nil {
		t.Fatal("expected error copying a missing source")
	}

	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("destination not clean after failed copy: %v", entries)
	}
}

func TestOps_CopySymlink(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	dst := t.TempDir()
	if err := os.Symlink("/some/target", filepath.Join(src, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	ops := NewOps(RetryPolicy{}, hoard.NewNopLogger())
	if err := ops.Copy(context.Background(), filepath.Join(src, "link"), filepath.Join(dst, "link")); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	target, err := os.Readlink(filepath.Join(dst, "link"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != "/some/target" {
		t.Errorf("target = %q, want /some/target", target)
	}

	// Copying again over the existing link replaces it.
	if err := ops.Copy(context.Background(), filepath.Join(src, "link"), filepath.Join(dst, "link")); err != nil {
		t.Fatalf("second Copy() error = %v", err)
	}
}

func TestOps_RemoveIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "bye")

	ops := NewOps(RetryPolicy{}, hoard.NewNopLogger())
	if err := ops.Remove(context.Background(), path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Fatalf("file still present after remove")
	}
	if err := ops.Remove(context.Background(), path); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
}
