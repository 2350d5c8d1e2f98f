// Package retry implements the adapter retry policy from spec §4.1:
// exponential backoff with jitter, capped at 3 attempts, retried only for
// Transient/Timeout/Unavailable errors.
package retry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/feustey/mcp/internal/mcperr"
)

// MaxAttempts is the default retry budget for adapter calls (spec §4.1).
const MaxAttempts = 3

// Do runs fn, retrying on retriable mcperr.Kind values with exponential
// backoff and jitter. target labels the error for metrics; op describes the
// call for error messages. When a returned error carries a RetryAfter hint
// (the node-data adapter's Retry-After contract, spec §6), that delay
// overrides the computed backoff for the very next attempt.
func Do[T any](ctx context.Context, target, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = 5 * time.Second
	wrapped := &retryAfterAware{rest: b}

	operation := func() (T, error) {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		kind := mcperr.Of(err)
		if !kind.Retriable() {
			return result, backoff.Permanent(err)
		}
		wrapped.next = mcperr.RetryAfterOf(err)
		return result, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(wrapped),
		backoff.WithMaxTries(MaxAttempts),
	}

	result, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return result, perm.Unwrap()
		}
		return result, mcperr.New(mcperr.Transient, target, op+": retry budget exhausted", err)
	}
	return result, nil
}

// retryAfterAware delegates to the wrapped backoff, except that when the
// last failed attempt set `next` (a provider Retry-After hint), that value
// is served once in its place.
type retryAfterAware struct {
	rest backoff.BackOff
	next time.Duration
}

func (r *retryAfterAware) NextBackOff() time.Duration {
	if r.next > 0 {
		d := r.next
		r.next = 0
		return d
	}
	return r.rest.NextBackOff()
}

func (r *retryAfterAware) Reset() {
	r.next = 0
	r.rest.Reset()
}

// ParseRetryAfter parses an HTTP Retry-After header value (either a number
// of seconds or an HTTP-date) into a duration. Returns 0 if unparsable.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0
		}
		return d
	}
	return 0
}
