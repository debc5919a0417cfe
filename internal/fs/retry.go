package fs

import (
	"context"
	"errors"
	"io/fs"
	"time"
)

// RetryPolicy bounds how filesystem operations behave on slow or flaky
// mounts: each attempt runs under Timeout (when positive), failures are
// retried up to Attempts times with Wait between attempts.
type RetryPolicy struct {
	Attempts int
	Wait     time.Duration
	Timeout  time.Duration
}

// DefaultRetryPolicy is suitable for local disks and healthy mounts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Wait: 500 * time.Millisecond, Timeout: 30 * time.Second}
}

// Do runs op under the policy. Not-exist and permission errors are never
// retried; they will not heal on their own. Cancellation of ctx stops
// everything immediately.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attemptCtx := ctx
		cancel := func() {}
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err = op(attemptCtx)
		cancel()

		if err == nil || !retryable(err) {
			return err
		}
		if i < attempts-1 && p.Wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Wait):
			}
		}
	}
	return err
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return false
	default:
		return true
	}
}
