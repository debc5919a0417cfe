// Package app wires configuration, filesystem, state, and history into a
// ready-to-run application for the CLI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/Shadow53/save-hoarder/internal/config"
	"github.com/Shadow53/save-hoarder/internal/fs"
	"github.com/Shadow53/save-hoarder/internal/history"
	"github.com/Shadow53/save-hoarder/internal/hoard"
	"github.com/Shadow53/save-hoarder/internal/state"
)

// HoardApp is the application layer between the CLI and the synchronizer.
// It constructs all collaborators from config and manages the history DB
// and log file lifecycle on Close.
type HoardApp struct {
	cfg     *config.Config
	piles   []hoard.Pile
	sync    *hoard.Synchronizer
	history *history.SQLiteLog
	logFile *os.File
	logger  hoard.Logger

	parallel int
}

// PileResult pairs one pile with the outcome of its synchronization.
type PileResult struct {
	Pile   string
	Report *hoard.SyncReport
	Err    error
}

// NewHoardApp creates a fully wired HoardApp from the given config.
// force applies to every pile synchronized through this app.
// The caller must call Close when done.
func NewHoardApp(cfg *config.Config, force hoard.ForceDirection) (*HoardApp, error) {
	settings := resolveSettings(cfg.Settings)

	piles, err := cfg.ResolvePiles()
	if err != nil {
		return nil, fmt.Errorf("resolving piles: %w", err)
	}

	runID := uuid.New().String()
	slogger, logFile, err := newLogger(settings.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	if err := os.MkdirAll(filepath.Dir(settings.HistoryDB), 0755); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	hist, err := history.Open(settings.HistoryDB)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	retry := fs.RetryPolicy{
		Attempts: cfg.Settings.Retry.Attempts,
		Wait:     cfg.Settings.Retry.Wait(),
		Timeout:  cfg.Settings.Retry.Timeout(),
	}
	if retry.Attempts == 0 && retry.Wait == 0 && retry.Timeout == 0 {
		retry = fs.DefaultRetryPolicy()
	}

	scanner := fs.NewScanner(retry, logger)
	ops := fs.NewOps(retry, logger)
	store := state.NewFileStore(settings.StateDir)
	locker := state.NewFileLocker(settings.StateDir, 0, logger)
	executor := hoard.NewExecutor(ops, logger)

	sync := hoard.NewSynchronizer(scanner, store, locker, executor, hist, logger,
		hoard.RealClock{}, hoard.UUIDGenerator{}, force)

	return &HoardApp{
		cfg:      cfg,
		piles:    piles,
		sync:     sync,
		history:  hist,
		logFile:  logFile,
		logger:   logger,
		parallel: settings.Parallel,
	}, nil
}

// Piles returns the resolved piles in configuration order.
func (a *HoardApp) Piles() []hoard.Pile {
	return a.piles
}

// SyncPiles synchronizes the named piles (all configured piles when names
// is empty), running up to the configured parallel count at once. Piles are
// independent: one pile failing never stops the others.
//
// The returned error is nil only when every pile is fully synchronized;
// a run that completed but left conflicts or failures behind reports
// hoard.ErrNotFullySynchronized.
func (a *HoardApp) SyncPiles(ctx context.Context, names []string) ([]PileResult, error) {
	selected, err := a.selectPiles(names)
	if err != nil {
		return nil, err
	}

	results := make([]PileResult, len(selected))
	g := new(errgroup.Group)
	g.SetLimit(a.parallel)
	for i, pile := range selected {
		g.Go(func() error {
			report, err := a.sync.SyncPile(ctx, pile)
			results[i] = PileResult{Pile: pile.Name, Report: report, Err: err}
			return nil
		})
	}
	g.Wait()

	var errs *multierror.Error
	clean := true
	for _, r := range results {
		if r.Err != nil {
			errs = multierror.Append(errs, fmt.Errorf("pile %s: %w", r.Pile, r.Err))
			continue
		}
		if !r.Report.FullySynchronized() {
			clean = false
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return results, err
	}
	if !clean {
		return results, hoard.ErrNotFullySynchronized
	}
	return results, nil
}

// Status computes pending operations for the named piles without executing
// anything.
func (a *HoardApp) Status(ctx context.Context, names []string) (map[string][]hoard.Operation, error) {
	selected, err := a.selectPiles(names)
	if err != nil {
		return nil, err
	}

	pending := make(map[string][]hoard.Operation, len(selected))
	for _, pile := range selected {
		ops, err := a.sync.Status(ctx, pile)
		if err != nil {
			return nil, fmt.Errorf("pile %s: %w", pile.Name, err)
		}
		pending[pile.Name] = ops
	}
	return pending, nil
}

// History lists recent sync runs, newest first. pile of "" means all piles.
func (a *HoardApp) History(pile string, limit int) ([]hoard.SyncRun, error) {
	return a.history.ListRuns(pile, limit)
}

// Close releases the history database and log file.
func (a *HoardApp) Close() error {
	var firstErr error
	if err := a.history.Close(); err != nil {
		firstErr = fmt.Errorf("closing history database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

func (a *HoardApp) selectPiles(names []string) ([]hoard.Pile, error) {
	if len(names) == 0 {
		return a.piles, nil
	}

	byName := make(map[string]hoard.Pile, len(a.piles))
	for _, p := range a.piles {
		byName[p.Name] = p
	}

	selected := make([]hoard.Pile, 0, len(names))
	for _, name := range names {
		pile, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown pile %q", name)
		}
		selected = append(selected, pile)
	}
	return selected, nil
}

// resolveSettings fills unset settings with their defaults.
func resolveSettings(s config.Settings) config.Settings {
	if s.StateDir == "" {
		if base, err := getBaseDir(); err == nil {
			s.StateDir = base
		}
	}
	if expanded, err := config.ExpandPath(s.StateDir); err == nil {
		s.StateDir = expanded
	}
	if s.HistoryDB == "" {
		s.HistoryDB = filepath.Join(s.StateDir, "history.db")
	} else if expanded, err := config.ExpandPath(s.HistoryDB); err == nil {
		s.HistoryDB = expanded
	}
	if s.LogDir == "" {
		s.LogDir = filepath.Join(s.StateDir, "log")
	} else if expanded, err := config.ExpandPath(s.LogDir); err == nil {
		s.LogDir = expanded
	}
	if s.Parallel <= 0 {
		s.Parallel = 4
	}
	return s
}
