// Package completion classifies text-generation failures and provides the
// provider registry, deadline enforcement and multi-provider fallback shared by
// every completion adapter.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Kind classifies a completion failure for retry decisions.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindTimeout     Kind = "timeout"
	KindTransient   Kind = "transient"
	KindFatal       Kind = "fatal"
)

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k Kind) Retryable() bool {
	return k != KindFatal
}

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
	// RetryAfter is the provider's hint for rate limits; zero when absent.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Kind == KindRateLimited && e.RetryAfter > 0 {
		return fmt.Sprintf("%s %s (retry after %s): %v", e.Provider, e.Kind, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a classification.
func NewError(kind Kind, provider string, err error) *Error {
	return &Error{Kind: kind, Provider: provider, Err: err}
}

// NewRateLimitError creates a rate-limit error. A non-positive retryAfterSecs defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *Error {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &Error{
		Kind:       KindRateLimited,
		Provider:   provider,
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
	}
}

// KindOf classifies any error. Unclassified errors are transient, except that an
// expired deadline is a timeout and an explicit cancellation is fatal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindFatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransient
}

// KindForStatus maps an HTTP status returned by a provider to a failure kind.
func KindForStatus(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 408:
		return KindTimeout
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindFatal
	default:
		return KindTransient
	}
}

// FromStatus classifies a provider HTTP failure. retryAfter is the raw Retry-After header.
func FromStatus(provider string, status int, retryAfter string, err error) *Error {
	kind := KindForStatus(status)
	if kind == KindRateLimited {
		return NewRateLimitError(provider, err, ParseRetryAfterHeader(retryAfter))
	}
	return NewError(kind, provider, err)
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}
