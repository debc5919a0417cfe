package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Shadow53/save-hoarder/internal/hoard"
)

// DefaultStaleTimeout is how old a lock file may be before it is presumed
// abandoned by a dead process and reclaimed.
const DefaultStaleTimeout = 3 * time.Minute

type lockContent struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// FileLocker serializes pile writers across processes with lock files under
// <dir>/locks/<pile>.lock. Acquisition is atomic via O_CREATE|O_EXCL; a lock
// older than the stale timeout is reclaimed, on the assumption that its
// holder died without releasing.
type FileLocker struct {
	dir          string
	staleTimeout time.Duration
	logger       hoard.Logger
}

// NewFileLocker creates a locker rooted at dir.
func NewFileLocker(dir string, staleTimeout time.Duration, logger hoard.Logger) *FileLocker {
	if staleTimeout <= 0 {
		staleTimeout = DefaultStaleTimeout
	}
	return &FileLocker{dir: dir, staleTimeout: staleTimeout, logger: logger}
}

// Lock acquires the pile's lock and returns its release function. When
// another live process holds the lock, the error wraps hoard.ErrPileLocked.
func (l *FileLocker) Lock(pileName string) (func(), error) {
	path := l.lockPath(pileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	// One reclaim attempt at most: create, inspect, maybe remove, create.
	for attempt := 0; attempt < 2; attempt++ {
		release, err := l.tryLock(path)
		if err == nil {
			return release, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		content, readErr := readLock(path)
		if readErr != nil {
			if os.IsNotExist(readErr) {
				// Holder released between our attempts; try again.
				continue
			}
			return nil, fmt.Errorf("%w: unreadable lock file %s", hoard.ErrPileLocked, path)
		}

		age := time.Since(content.AcquiredAt)
		if age < l.staleTimeout {
			return nil, fmt.Errorf("%w: held by pid %d for %s",
				hoard.ErrPileLocked, content.PID, age.Truncate(time.Second))
		}

		l.logger.Warn("reclaiming stale pile lock", "pile", pileName, "pid", content.PID, "age", age.String())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale lock: %w", err)
		}
	}

	return nil, fmt.Errorf("%w: lock contention on %s", hoard.ErrPileLocked, pileName)
}

func (l *FileLocker) tryLock(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(lockContent{PID: os.Getpid(), AcquiredAt: time.Now()})
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}

	return func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			l.logger.Warn("releasing pile lock failed", "path", path, "error", err)
		}
	}, nil
}

func (l *FileLocker) lockPath(pileName string) string {
	return filepath.Join(l.dir, "locks", filepath.FromSlash(pileName)+".lock")
}

func readLock(path string) (lockContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockContent{}, err
	}
	var content lockContent
	if err := json.Unmarshal(data, &content); err != nil {
		return lockContent{}, err
	}
	return content, nil
}

// Compile-time check that FileLocker implements hoard.PileLocker.
var _ hoard.PileLocker = (*FileLocker)(nil)
