package hoard

import "fmt"

// OperationKind is the closed set of planned filesystem actions.
type OperationKind int

const (
	OpCopy OperationKind = iota
	OpDelete
	OpSkip
	OpConflictHold
)

func (k OperationKind) String() string {
	switch k {
	case OpCopy:
		return "copy"
	case OpDelete:
		return "delete"
	case OpSkip:
		return "skip"
	case OpConflictHold:
		return "conflict"
	default:
		return fmt.Sprintf("OperationKind(%d)", int(k))
	}
}

// CopyDirection says which way a copy flows.
type CopyDirection int

const (
	// ToDestination copies source → destination (forward update).
	ToDestination CopyDirection = iota
	// ToSource copies destination → source (backward update, the
	// destination was edited locally).
	ToSource
)

func (d CopyDirection) String() string {
	if d == ToSource {
		return "destination→source"
	}
	return "source→destination"
}

// Side identifies which side of a pile a delete applies to.
type Side int

const (
	OnDestination Side = iota
	OnSource
)

func (s Side) String() string {
	if s == OnSource {
		return "source"
	}
	return "destination"
}

// Operation is one planned filesystem action, produced by the reconciliation
// engine and consumed by the executor. Immutable once created.
//
// Direction is meaningful only for OpCopy, Side only for OpDelete, and
// Reason only for OpSkip and OpConflictHold.
type Operation struct {
	Kind      OperationKind
	RelPath   string
	Direction CopyDirection
	Side      Side
	Reason    string
}

// CopyOp plans a copy of relPath in the given direction.
func CopyOp(relPath string, direction CopyDirection) Operation {
	return Operation{Kind: OpCopy, RelPath: relPath, Direction: direction}
}

// DeleteOp plans a delete of relPath on the given side.
func DeleteOp(relPath string, side Side) Operation {
	return Operation{Kind: OpDelete, RelPath: relPath, Side: side}
}

// SkipOp records that relPath needs no action.
func SkipOp(relPath, reason string) Operation {
	return Operation{Kind: OpSkip, RelPath: relPath, Reason: reason}
}

// ConflictOp records that relPath cannot be resolved automatically.
func ConflictOp(relPath, reason string) Operation {
	return Operation{Kind: OpConflictHold, RelPath: relPath, Reason: reason}
}

func (o Operation) String() string {
	switch o.Kind {
	case OpCopy:
		return fmt.Sprintf("copy %s (%s)", o.RelPath, o.Direction)
	case OpDelete:
		return fmt.Sprintf("delete %s (on %s)", o.RelPath, o.Side)
	case OpSkip:
		return fmt.Sprintf("skip %s: %s", o.RelPath, o.Reason)
	case OpConflictHold:
		return fmt.Sprintf("conflict %s: %s", o.RelPath, o.Reason)
	default:
		return fmt.Sprintf("%s %s", o.Kind, o.RelPath)
	}
}
