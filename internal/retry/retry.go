// Package retry runs fallible provider calls with bounded attempts,
// exponential backoff for transient failures and a fixed cool-down after
// rate limits.
package retry

import (
	"context"
	"fmt"
	"time"

	"clausewise/internal/completion"
	"clausewise/internal/logger"
)

// Policy bounds retries for one operation.
type Policy struct {
	// MaxAttempts counts every attempt, including the first and rate-limited ones.
	MaxAttempts int
	// BaseDelay is multiplied by 2^k, where k is the number of transient failures so far.
	BaseDelay time.Duration
	// RateLimitCooldown is slept after every rate-limited attempt.
	RateLimitCooldown time.Duration
}

// DefaultPolicy returns 3 attempts, 1s base delay and a 10s rate-limit cool-down.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		RateLimitCooldown: 10 * time.Second,
	}
}

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Controller applies a Policy. It holds no per-call state and may be shared.
type Controller struct {
	policy   Policy
	sleep    Sleeper
	classify func(error) completion.Kind
	log      *logger.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleeper replaces the sleep function.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleep = s }
}

// WithClassifier replaces completion.KindOf as the failure classifier.
func WithClassifier(fn func(error) completion.Kind) Option {
	return func(c *Controller) { c.classify = fn }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New creates a Controller. Zero policy fields fall back to DefaultPolicy values.
func New(p Policy, opts ...Option) *Controller {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.RateLimitCooldown <= 0 {
		p.RateLimitCooldown = def.RateLimitCooldown
	}
	c := &Controller{
		policy:   p,
		sleep:    ContextSleep,
		classify: completion.KindOf,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the effective policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Sleep waits through the controller's Sleeper. Used for pacing between calls.
func (c *Controller) Sleep(ctx context.Context, d time.Duration) error {
	return c.sleep(ctx, d)
}

// Backoff returns the delay before the next attempt after a failure of kind,
// given how many transient failures happened before this one.
func (c *Controller) Backoff(kind completion.Kind, transientFailures int) time.Duration {
	if kind == completion.KindRateLimited {
		return c.policy.RateLimitCooldown
	}
	return c.policy.BaseDelay << uint(transientFailures)
}

// Do runs fn until it succeeds, fails fatally, or MaxAttempts is reached.
// The returned error wraps the last failure so its classification survives.
func (c *Controller) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	transient := 0
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		kind := c.classify(err)
		if kind == completion.KindFatal {
			return fmt.Errorf("%s: %w", op, err)
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.Backoff(kind, transient)
		if kind != completion.KindRateLimited {
			transient++
		}
		c.log.Warn("retrying after failure",
			"op", op,
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts,
			"kind", string(kind),
			"delay", delay.String(),
			"error", err,
		)
		if serr := c.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%s: aborted during backoff: %w", op, serr)
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, c.policy.MaxAttempts, lastErr)
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, c *Controller, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
