package hoard

import "time"

// OutcomeStatus is the per-operation result recorded by the executor.
type OutcomeStatus int

const (
	// OutcomeApplied means the copy or delete was performed.
	OutcomeApplied OutcomeStatus = iota
	// OutcomeSkipped means no filesystem action was needed or the
	// operation was never attempted (e.g. cancellation).
	OutcomeSkipped
	// OutcomeHeld means the operation is a ConflictHold awaiting a human
	// decision.
	OutcomeHeld
	// OutcomeFailed means the operation was attempted and failed.
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeHeld:
		return "held"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OperationResult pairs a planned operation with its individual outcome.
type OperationResult struct {
	Operation Operation
	Status    OutcomeStatus
	Err       string // populated when Status == OutcomeFailed
}

// SyncReport is the aggregate outcome of one pile's synchronization.
// It is returned to the caller and never persisted.
type SyncReport struct {
	Pile    string
	Results []OperationResult

	Applied   int
	Skipped   int
	Conflicts int
	Failed    int

	// StateUpdated is set by the synchronizer when the last-known state
	// was replaced after a fully successful run.
	StateUpdated bool
}

// NewSyncReport returns an empty report for a pile.
func NewSyncReport(pile string) *SyncReport {
	return &SyncReport{Pile: pile}
}

func (r *SyncReport) add(result OperationResult) {
	r.Results = append(r.Results, result)
	switch result.Status {
	case OutcomeApplied:
		r.Applied++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeHeld:
		r.Conflicts++
	case OutcomeFailed:
		r.Failed++
	}
}

// FullySynchronized reports whether the run completed with no failures and
// no unresolved conflicts. Only then may the last-known state be replaced.
func (r *SyncReport) FullySynchronized() bool {
	return r.Failed == 0 && r.Conflicts == 0
}

// SyncRun is the history record of one pile synchronization, persisted by
// the history log.
type SyncRun struct {
	ID         string
	Pile       string
	Force      string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Applied    int
	Skipped    int
	Conflicts  int
	Failed     int
}

// Run statuses recorded in the history log.
const (
	RunSynchronized = "synchronized"
	RunConflicts    = "conflicts"
	RunFailed       = "failed"
	RunCanceled     = "canceled"
	RunScanFailed   = "scan-failed"
)
