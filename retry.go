package blazedb

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry runs task with Fibonacci backoff, retrying up to 5 times after the
// first attempt (6 attempts in all), invoking gaveUpTask (if non-nil) and
// returning the final error if the task fails with a non-retryable error
// or every attempt fails. Used by the safe-write harness's backup copy and
// restore, which can hit transient filesystem errors under load.
func Retry(ctx context.Context, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.NewFibonacci(50 * time.Millisecond)
	if err := retry.Do(ctx, retry.WithMaxRetries(5, b), func(ctx context.Context) error {
		err := task(ctx)
		if err != nil && !ShouldRetry(err) {
			return err
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		slog.Warn("blazedb: retry exhausted", "error", err)
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether err looks transient rather than a permanent
// filesystem or cancellation failure.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) ||
		errors.Is(err, os.ErrClosed) || errors.Is(err, os.ErrExist) {
		return false
	}
	switch {
	case errors.Is(err, syscall.EROFS),
		errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.ENAMETOOLONG),
		errors.Is(err, syscall.ENOTDIR),
		errors.Is(err, syscall.EISDIR),
		errors.Is(err, syscall.EEXIST),
		errors.Is(err, syscall.EINVAL):
		return false
	}
	return true
}
