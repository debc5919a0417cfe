package hoard

import (
	"context"
	"path/filepath"
)

// FileOps performs the real filesystem actions for the executor.
// Implementations create parent directories as needed and write copies
// atomically (temp file + rename).
type FileOps interface {
	Copy(ctx context.Context, srcPath, dstPath string) error
	Remove(ctx context.Context, path string) error
}

// Executor applies planned operations to the filesystem, one at a time.
// Each operation's outcome is independent: a failure is recorded against
// that operation and does not abort the rest.
type Executor struct {
	ops    FileOps
	logger Logger
}

// NewExecutor creates an Executor using the given file operations.
func NewExecutor(ops FileOps, logger Logger) *Executor {
	return &Executor{ops: ops, logger: logger}
}

// Execute applies the operations for a pile sequentially, in the order the
// reconciliation engine produced them. Skip and ConflictHold require no
// filesystem action and are recorded as-is. Cancellation stops execution;
// operations not attempted are recorded as skipped, and the report is
// marked failed so the last-known state is not updated.
func (e *Executor) Execute(ctx context.Context, pile Pile, operations []Operation) *SyncReport {
	report := NewSyncReport(pile.Name)

	for i, op := range operations {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("execution canceled", "pile", pile.Name, "remaining", len(operations)-i)
			report.add(OperationResult{Operation: op, Status: OutcomeFailed, Err: err.Error()})
			for _, rest := range operations[i+1:] {
				report.add(OperationResult{Operation: rest, Status: OutcomeSkipped, Err: "canceled"})
			}
			break
		}
		report.add(e.apply(ctx, pile, op))
	}

	return report
}

func (e *Executor) apply(ctx context.Context, pile Pile, op Operation) OperationResult {
	switch op.Kind {
	case OpSkip:
		return OperationResult{Operation: op, Status: OutcomeSkipped}

	case OpConflictHold:
		e.logger.Warn("conflict held", "pile", pile.Name, "path", op.RelPath, "reason", op.Reason)
		return OperationResult{Operation: op, Status: OutcomeHeld}

	case OpCopy:
		src := filepath.Join(pile.SourceRoot, op.RelPath)
		dst := filepath.Join(pile.DestinationRoot, op.RelPath)
		if op.Direction == ToSource {
			src, dst = dst, src
		}
		if err := e.ops.Copy(ctx, src, dst); err != nil {
			e.logger.Error("copy failed", "pile", pile.Name, "path", op.RelPath, "error", err)
			return OperationResult{Operation: op, Status: OutcomeFailed, Err: err.Error()}
		}
		e.logger.Debug("copied", "pile", pile.Name, "path", op.RelPath, "direction", op.Direction.String())
		return OperationResult{Operation: op, Status: OutcomeApplied}

	case OpDelete:
		target := filepath.Join(pile.DestinationRoot, op.RelPath)
		if op.Side == OnSource {
			target = filepath.Join(pile.SourceRoot, op.RelPath)
		}
		if err := e.ops.Remove(ctx, target); err != nil {
			e.logger.Error("delete failed", "pile", pile.Name, "path", op.RelPath, "error", err)
			return OperationResult{Operation: op, Status: OutcomeFailed, Err: err.Error()}
		}
		e.logger.Debug("deleted", "pile", pile.Name, "path", op.RelPath, "side", op.Side.String())
		return OperationResult{Operation: op, Status: OutcomeApplied}

	default:
		return OperationResult{Operation: op, Status: OutcomeFailed, Err: "unknown operation kind"}
	}
}
