package hoard

import (
	"context"
	"fmt"

	"github.com/Shadow53/save-hoarder/internal/match"
)

// Scanner walks one side of a pile into a normalized ScanResult.
type Scanner interface {
	Scan(ctx context.Context, root string, patterns *match.PatternSet) (*ScanResult, error)
}

// StateStore persists the last-known state per pile. Load returns an empty
// state when none exists (first run). Save must replace atomically.
type StateStore interface {
	Load(pileName string) (*LastKnownState, error)
	Save(pileName string, state *LastKnownState) error
}

// PileLocker enforces the single-writer discipline per pile name.
// Lock returns a release function, or ErrPileLocked when another process
// holds the lock.
type PileLocker interface {
	Lock(pileName string) (release func(), err error)
}

// HistoryLog records completed sync runs. Recording failures are logged but
// never fail the synchronization itself.
type HistoryLog interface {
	RecordRun(run SyncRun) error
}

// Synchronizer orchestrates one pile end-to-end: scan both sides, load the
// last-known state, reconcile, execute, and persist the new state only when
// the run was fully successful.
type Synchronizer struct {
	scanner  Scanner
	store    StateStore
	locker   PileLocker
	executor *Executor
	history  HistoryLog
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	force    ForceDirection
}

// NewSynchronizer creates a Synchronizer with the provided collaborators.
func NewSynchronizer(scanner Scanner, store StateStore, locker PileLocker, executor *Executor,
	history HistoryLog, logger Logger, clock Clock, idgen IDGenerator, force ForceDirection) *Synchronizer {
	return &Synchronizer{
		scanner:  scanner,
		store:    store,
		locker:   locker,
		executor: executor,
		history:  history,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		force:    force,
	}
}

// SyncPile synchronizes a single pile and returns its report.
//
// The new last-known state is computed from a fresh destination scan taken
// after execution, so the record reflects true on-disk reality. If any
// operation failed or any conflict was held, the old state is left
// untouched and the report says so. A scan failure aborts the pile — an
// incomplete scan cannot be trusted for reconciliation.
func (s *Synchronizer) SyncPile(ctx context.Context, pile Pile) (*SyncReport, error) {
	release, err := s.locker.Lock(pile.Name)
	if err != nil {
		return nil, fmt.Errorf("locking pile %s: %w", pile.Name, err)
	}
	defer release()

	run := SyncRun{
		ID:        s.idgen.New(),
		Pile:      pile.Name,
		Force:     s.force.String(),
		StartedAt: s.clock.Now(),
	}
	s.logger.Info("sync started", "pile", pile.Name, "run", run.ID)

	last, err := s.store.Load(pile.Name)
	if err != nil {
		return nil, fmt.Errorf("loading last-known state for %s: %w", pile.Name, err)
	}

	source, err := s.scanner.Scan(ctx, pile.SourceRoot, pile.Patterns)
	if err != nil {
		s.recordRun(run, RunScanFailed, nil)
		return nil, fmt.Errorf("scanning source of %s: %w", pile.Name, err)
	}
	destination, err := s.scanner.Scan(ctx, pile.DestinationRoot, pile.Patterns)
	if err != nil {
		s.recordRun(run, RunScanFailed, nil)
		return nil, fmt.Errorf("scanning destination of %s: %w", pile.Name, err)
	}

	operations, err := Reconcile(source, destination, last, s.force)
	if err != nil {
		s.recordRun(run, RunFailed, nil)
		return nil, fmt.Errorf("reconciling %s: %w", pile.Name, err)
	}

	report := s.executor.Execute(ctx, pile, operations)

	status := RunSynchronized
	switch {
	case ctx.Err() != nil:
		status = RunCanceled
	case report.Failed > 0:
		status = RunFailed
	case report.Conflicts > 0:
		status = RunConflicts
	}

	if report.FullySynchronized() && ctx.Err() == nil {
		if err := s.updateState(ctx, pile); err != nil {
			// The filesystem converged but the record didn't; the next run
			// re-reconciles cleanly from the old state.
			s.logger.Error("state update failed", "pile", pile.Name, "error", err)
			status = RunFailed
			report.Failed++
		} else {
			report.StateUpdated = true
		}
	}

	s.recordRun(run, status, report)
	s.logger.Info("sync finished", "pile", pile.Name, "run", run.ID, "status", status,
		"applied", report.Applied, "skipped", report.Skipped,
		"conflicts", report.Conflicts, "failed", report.Failed)

	return report, nil
}

// Status computes the operations a sync would perform, without executing
// anything or touching the last-known state.
func (s *Synchronizer) Status(ctx context.Context, pile Pile) ([]Operation, error) {
	last, err := s.store.Load(pile.Name)
	if err != nil {
		return nil, fmt.Errorf("loading last-known state for %s: %w", pile.Name, err)
	}
	source, err := s.scanner.Scan(ctx, pile.SourceRoot, pile.Patterns)
	if err != nil {
		return nil, fmt.Errorf("scanning source of %s: %w", pile.Name, err)
	}
	destination, err := s.scanner.Scan(ctx, pile.DestinationRoot, pile.Patterns)
	if err != nil {
		return nil, fmt.Errorf("scanning destination of %s: %w", pile.Name, err)
	}
	return Reconcile(source, destination, last, s.force)
}

// updateState rescans the destination after execution and atomically
// replaces the pile's last-known state with what is actually on disk.
func (s *Synchronizer) updateState(ctx context.Context, pile Pile) error {
	post, err := s.scanner.Scan(ctx, pile.DestinationRoot, pile.Patterns)
	if err != nil {
		return fmt.Errorf("post-execution scan: %w", err)
	}

	state := NewLastKnownState(pile.Name)
	state.SyncedAt = s.clock.Now()
	for _, p := range post.Paths() {
		entry, _ := post.Entry(p)
		if entry.Kind == KindDir {
			continue
		}
		hash, err := post.Hash(p)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", p, err)
		}
		state.Entries[p] = StateEntry{
			Hash:    hash,
			Size:    entry.Size,
			ModTime: entry.ModTime,
		}
	}

	if err := s.store.Save(pile.Name, state); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

func (s *Synchronizer) recordRun(run SyncRun, status string, report *SyncReport) {
	run.Status = status
	run.FinishedAt = s.clock.Now()
	if report != nil {
		run.Applied = report.Applied
		run.Skipped = report.Skipped
		run.Conflicts = report.Conflicts
		run.Failed = report.Failed
	}
	if err := s.history.RecordRun(run); err != nil {
		s.logger.Warn("recording sync run failed", "pile", run.Pile, "error", err)
	}
}
