// File: internal/orchestrator/retry.go
package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type attemptResult[T any] struct {
	val T
	err error
}

// callWithRetry races fn against a timer of timeout. If fn wins, its result
// is returned. If the timer wins, or fn returns an error, and retry is true,
// fn is invoked exactly once more without a timeout race (bounded only by
// the caller's context). fn is never invoked more than twice.
//
// The first attempt runs under a context that is cancelled when the timer
// fires, so a cooperative fn is actually aborted rather than left running.
func callWithRetry[T any](ctx context.Context, timeout time.Duration, retry bool, logger *zap.Logger, fn func(context.Context) (T, error)) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the attempt goroutine can always complete its send and
	// exit, even after the race has been decided.
	done := make(chan attemptResult[T], 1)
	go func() {
		val, err := fn(attemptCtx)
		done <- attemptResult[T]{val: val, err: err}
	}()

	var firstErr error
	select {
	case out := <-done:
		if out.err == nil {
			return out.val, nil
		}
		firstErr = out.err
	case <-attemptCtx.Done():
		firstErr = attemptCtx.Err()
	}

	if !retry {
		var zero T
		return zero, firstErr
	}

	logger.Debug("First attempt failed, retrying without timeout", zap.Error(firstErr))

	val, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return val, nil
}
