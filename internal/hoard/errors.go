package hoard

import "errors"

// ErrNotFullySynchronized marks a pile whose run completed but left
// conflicts or failed operations behind. The old last-known state is kept.
var ErrNotFullySynchronized = errors.New("pile not fully synchronized")

// ErrPileLocked means another process holds the pile's lock.
var ErrPileLocked = errors.New("pile is locked by another process")
