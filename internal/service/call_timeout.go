package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/target/marketlens/internal/errors"
)

type callOutcome[T any] struct {
	value T
	err   error
}

// callWithTimeout bounds fn by d. The caller gets control back when the deadline passes even
// if fn ignores its context; fn keeps running in the background until it returns.
func callWithTimeout[T any](ctx context.Context, name string, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}

	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan callOutcome[T], 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- callOutcome[T]{err: apperrors.Internalf("%s panicked: %v", name, p)}
			}
		}()
		v, err := fn(cctx)
		done <- callOutcome[T]{value: v, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, timeoutError(name, d, out.err)
		}
		return out.value, out.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return zero, apperrors.Wrapf(ctx.Err(), apperrors.ErrCodeCanceled, "%s canceled", name)
		}
		return zero, timeoutError(name, d, cctx.Err())
	}
}

func timeoutError(name string, d time.Duration, cause error) error {
	return apperrors.Wrap(cause, apperrors.ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", name, d))
}
