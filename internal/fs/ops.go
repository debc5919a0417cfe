package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Shadow53/save-hoarder/internal/hoard"
)

// Ops applies copy and delete operations to the real filesystem.
// Copies are atomic: content is written to a temp file in the target
// directory and renamed into place, so a crash mid-copy never leaves a
// truncated destination file.
type Ops struct {
	retry  RetryPolicy
	logger hoard.Logger
}

// NewOps creates file operations with the given retry policy.
func NewOps(retry RetryPolicy, logger hoard.Logger) *Ops {
	return &Ops{retry: retry, logger: logger}
}

// Copy copies srcPath to dstPath, creating parent directories as needed.
// Symlinks are recreated (pointing at the same target), never followed.
// Mode and modification time are preserved so the metadata fast path stays
// effective on subsequent scans.
func (o *Ops) Copy(ctx context.Context, srcPath, dstPath string) error {
	return o.retry.Do(ctx, func(context.Context) error {
		info, err := os.Lstat(srcPath)
		if err != nil {
			return fmt.Errorf("stat source: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return fmt.Errorf("creating parent directory: %w", err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return copySymlink(srcPath, dstPath)
		}
		return copyFile(srcPath, dstPath, info)
	})
}

// Remove deletes a single file or symlink. A path that is already gone is
// not an error — the operation is idempotent on re-entry.
func (o *Ops) Remove(ctx context.Context, path string) error {
	return o.retry.Do(ctx, func(context.Context) error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
		return nil
	})
}

func copySymlink(srcPath, dstPath string) error {
	target, err := os.Readlink(srcPath)
	if err != nil {
		return fmt.Errorf("reading link: %w", err)
	}
	// os.Symlink fails on an existing path; replace in place.
	if err := os.Remove(dstPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replacing existing path: %w", err)
	}
	if err := os.Symlink(target, dstPath); err != nil {
		return fmt.Errorf("creating link: %w", err)
	}
	return nil
}

func copyFile(srcPath, dstPath string, info os.FileInfo) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer src.Close()

	dir := filepath.Dir(dstPath)
	tmp, err := os.CreateTemp(dir, ".hoard-tmp-*")
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

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("writing data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dstPath); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	success = true

	if err := os.Chtimes(dstPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserving mtime: %w", err)
	}
	return nil
}

// Compile-time check that Ops implements hoard.FileOps.
var _ hoard.FileOps = (*Ops)(nil)
