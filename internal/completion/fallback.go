package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clausewise/internal/logger"
	"clausewise/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackClient tries providers in order, skipping those whose circuit is
// open after a rate limit. It implements port.CompletionClient.
type FallbackClient struct {
	clients  []port.CompletionClient
	circuits []*circuitState
	names    []string
	log      *logger.Logger
	now      func() time.Time
}

// NewFallbackClient creates a FallbackClient from an ordered list of clients and their names.
func NewFallbackClient(clients []port.CompletionClient, names []string, log *logger.Logger) *FallbackClient {
	circuits := make([]*circuitState, len(clients))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FallbackClient{
		clients:  clients,
		circuits: circuits,
		names:    names,
		log:      log,
		now:      time.Now,
	}
}

func (f *FallbackClient) Complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	now := f.now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, c := range f.clients {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			f.log.Debug("completion fallback: skipping provider", "provider", f.names[i], "circuit_open_until", resetAt.Format(time.RFC3339))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		resp, err := c.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		f.log.Warn("completion fallback: provider failed", "provider", f.names[i], "error", err)
		lastErr = err

		var ce *Error
		if errors.As(err, &ce) && ce.Kind == KindRateLimited {
			resetAt := now.Add(ce.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}
		allRateLimited = false
		if ctx.Err() != nil {
			// Caller is gone.
			return nil, err
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", fmt.Errorf("all completion providers rate limited"), int(retryAfter.Seconds()))
	}

	return nil, fmt.Errorf("all completion providers failed: %w", lastErr)
}
