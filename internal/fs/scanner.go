// Package fs implements the real-filesystem scanner and file operations
// used by the synchronization core.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Shadow53/save-hoarder/internal/hoard"
	"github.com/Shadow53/save-hoarder/internal/match"
)

// Scanner walks a pile root into a normalized hoard.ScanResult.
//
// Symlinks are recorded as their own entry kind and never followed, which
// prevents cycles and unbounded traversal. Content hashes are SHA-256,
// computed only when the reconciliation engine asks for them.
type Scanner struct {
	retry  RetryPolicy
	logger hoard.Logger
}

// NewScanner creates a Scanner with the given retry policy.
func NewScanner(retry RetryPolicy, logger hoard.Logger) *Scanner {
	return &Scanner{retry: retry, logger: logger}
}

// Scan resolves root into a ScanResult. A missing root yields an empty scan
// (the destination side may not exist before the first synchronization);
// any other read failure aborts the scan. A root pointing at a regular file
// is recorded as the single entry ".".
func (s *Scanner) Scan(ctx context.Context, root string, patterns *match.PatternSet) (*hoard.ScanResult, error) {
	var entries []hoard.PathEntry

	err := s.retry.Do(ctx, func(ctx context.Context) error {
		entries = entries[:0]
		return s.walk(ctx, root, patterns, &entries)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}

	return hoard.NewScanResult(root, entries, hashFunc(root)), nil
}

func (s *Scanner) walk(ctx context.Context, root string, patterns *match.PatternSet, entries *[]hoard.PathEntry) error {
	if _, err := os.Lstat(root); err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug("scan root does not exist, treating as empty", "root", root)
			return nil
		}
		return err
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if rel == "." && d.IsDir() {
			return nil
		}

		if patterns != nil && patterns.Ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		kind := hoard.KindFile
		switch {
		case d.IsDir():
			kind = hoard.KindDir
		case d.Type()&fs.ModeSymlink != 0:
			kind = hoard.KindSymlink
		case !d.Type().IsRegular():
			// Devices, sockets, pipes: not synchronizable content.
			s.logger.Warn("skipping special file", "path", path)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		*entries = append(*entries, hoard.PathEntry{
			RelPath: rel,
			Kind:    kind,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
}

// hashFunc returns the lazy hasher for a scan root. Regular files hash
// their content; symlinks hash their target path, so two links are equal
// exactly when they point at the same place.
func hashFunc(root string) hoard.HashFunc {
	return func(relPath string) (string, error) {
		path := filepath.Join(root, filepath.FromSlash(relPath))

		info, err := os.Lstat(path)
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return "", err
			}
			sum := sha256.Sum256([]byte("symlink\x00" + target))
			return hex.EncodeToString(sum[:]), nil
		}

		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()

		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return "", err
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}
}

// Compile-time check that Scanner implements hoard.Scanner.
var _ hoard.Scanner = (*Scanner)(nil)
