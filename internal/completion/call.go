package completion

import (
	"context"
	"errors"
	"fmt"

	"clausewise/internal/domain"
	"clausewise/internal/port"
)

type callResult struct {
	resp *port.CompletionResponse
	err  error
}

// Call invokes client with req.Timeout enforced by cancellation. The call
// returns when the deadline passes even if the provider ignores its context;
// an expired deadline is reported as a KindTimeout error.
func Call(ctx context.Context, client port.CompletionClient, req port.CompletionRequest) (*port.CompletionResponse, error) {
	if client == nil {
		return nil, NewError(KindFatal, "none", domain.ErrCompletionUnconfigured)
	}

	callCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: NewError(KindFatal, "unknown", fmt.Errorf("completion client panicked: %v", r))}
			}
		}()
		resp, err := client.Complete(callCtx, req)
		done <- callResult{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, deadlineError(ctx, callCtx, r.err, req)
		}
		if r.resp == nil {
			return nil, NewError(KindTransient, "unknown", errors.New("empty completion response"))
		}
		return r.resp, nil
	case <-callCtx.Done():
		return nil, deadlineError(ctx, callCtx, callCtx.Err(), req)
	}
}

// deadlineError converts the per-call deadline into a timeout while leaving
// cancellation of the parent context untouched.
func deadlineError(parent, callCtx context.Context, err error, req port.CompletionRequest) error {
	if parent.Err() != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return err
		}
		return fmt.Errorf("completion aborted: %w", parent.Err())
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		var ce *Error
		if errors.As(err, &ce) && ce.Kind != KindTransient {
			return err
		}
		return NewError(KindTimeout, "deadline", fmt.Errorf("no response within %s: %w", req.Timeout, context.DeadlineExceeded))
	}
	return err
}
