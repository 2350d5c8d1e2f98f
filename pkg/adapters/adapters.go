// Package adapters provides the shared call wrapper every C1 external
// adapter uses: per-call timeout, circuit breaker, retry with backoff,
// tracing, and request/error/latency metrics (spec §4.1).
package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/feustey/mcp/internal/breaker"
	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/internal/retry"
	"github.com/feustey/mcp/internal/telemetry"
)

// Client is embedded by every concrete adapter. It owns the breaker
// registry entry for its target and the configured per-call timeout.
type Client struct {
	Target  string
	Timeout time.Duration
	Breaker *breaker.Breaker
}

// NewClient builds a Client for target, pulling its breaker from reg.
func NewClient(target string, timeout time.Duration, reg *breaker.Registry) Client {
	return Client{Target: target, Timeout: timeout, Breaker: reg.Get(target)}
}

// Call runs fn under the client's timeout, breaker, retry, and telemetry
// policy. A returned error carrying a RetryAfter hint (mcperr.NewRateLimited)
// overrides the next retry delay; see internal/retry.
func Call[T any](ctx context.Context, c Client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if !c.Breaker.Allow() {
		err := mcperr.New(mcperr.Unavailable, c.Target, op+": circuit open", nil)
		telemetry.ExternalCallErrorsTotal.WithLabelValues(c.Target, string(mcperr.Unavailable)).Inc()
		return zero, err
	}

	ctx, span := telemetry.Tracer("mcp/adapters").Start(ctx, c.Target+"."+op)
	defer span.End()
	span.SetAttributes(attribute.String("mcp.adapter.target", c.Target), attribute.String("mcp.adapter.op", op))

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	result, err := retry.Do(ctx, c.Target, op, fn)
	telemetry.ExternalCallDuration.WithLabelValues(c.Target).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := mcperr.Of(err)
		if ctx.Err() == context.DeadlineExceeded && kind != mcperr.Unavailable {
			kind = mcperr.Timeout
			err = mcperr.New(mcperr.Timeout, c.Target, op+": deadline exceeded", err)
		}
		telemetry.ExternalCallErrorsTotal.WithLabelValues(c.Target, string(kind)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind == mcperr.Permanent || kind == mcperr.Invalid || kind == mcperr.NotFound || kind == mcperr.Conflict {
			c.Breaker.RecordSuccess() // not a breaker-relevant failure
		} else {
			c.Breaker.RecordFailure()
		}
		return zero, err
	}

	c.Breaker.RecordSuccess()
	return result, nil
}
