// Package scheduler implements the daily report scheduler (spec §4.8, C8):
// a once-daily wall-clock trigger that fans out to a bounded worker pool,
// retries per-user failures with exponential backoff, and tolerates
// cancellation without corrupting in-flight report state.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/internal/store"
	"github.com/feustey/mcp/internal/telemetry"
	"github.com/feustey/mcp/pkg/domain"
	"github.com/feustey/mcp/pkg/report"
)

// Defaults from spec §4.8.
const (
	DefaultMaxConcurrent     = 10
	DefaultMaxRetries        = 3
	DefaultGracefulTimeout   = 60 * time.Second
	DefaultRetryInitial      = 30 * time.Second
	DefaultMaxAttemptsPerDay = 3
)

// Scheduler fires Generate once per day at a configured UTC wall-clock
// time.
type Scheduler struct {
	Store     *store.Store
	Generator *report.Generator
	Logger    *slog.Logger

	Hour, Minute    int
	MaxConcurrent   int
	MaxRetries      int
	GracefulTimeout time.Duration
}

// New builds a Scheduler, applying spec §4.8 defaults for zero values.
func New(st *store.Store, gen *report.Generator, hour, minute, maxConcurrent, maxRetries int, gracefulTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if gracefulTimeout <= 0 {
		gracefulTimeout = DefaultGracefulTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Store: st, Generator: gen, Logger: logger,
		Hour: hour, Minute: minute,
		MaxConcurrent: maxConcurrent, MaxRetries: maxRetries, GracefulTimeout: gracefulTimeout,
	}
}

// Run blocks, firing Trigger once per day at (Hour, Minute) UTC until ctx is
// cancelled. A missed fire (process downtime) is never backfilled — the
// next day's trigger simply applies (spec §4.8 "single-trigger semantics").
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait := time.Until(nextFireTime(time.Now().UTC(), s.Hour, s.Minute))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Trigger(ctx)
		}
	}
}

// nextFireTime returns the next occurrence of hour:minute UTC strictly
// after now.
func nextFireTime(now time.Time, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// Trigger runs one scheduling pass: enumerate enrolled users, dispatch to a
// bounded worker pool, retry per-user failures, and emit a summary metric
// (spec §4.8).
func (s *Scheduler) Trigger(ctx context.Context) {
	users, err := s.Store.UsersWithDailyReportEnabled(ctx)
	if err != nil {
		s.Logger.Error("enumerate enrolled users", "error", err)
		telemetry.SchedulerRunsTotal.WithLabelValues("error").Inc()
		return
	}

	// in-flight work runs on a context detached from ctx's cancellation so
	// the graceful window below can let it finish; cancel ends it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	sem := semaphore.NewWeighted(int64(s.MaxConcurrent))
	done := make(chan struct{})
	reportDate := time.Now().UTC().Truncate(24 * time.Hour)

	go func() {
		var wg sync.WaitGroup
		for _, u := range users {
			if u.LightningPubkey == "" {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			if err := sem.Acquire(runCtx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(u domain.UserProfile) {
				defer wg.Done()
				defer sem.Release(1)
				s.runUserWithRetry(runCtx, u, reportDate)
			}(u)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		telemetry.SchedulerRunsTotal.WithLabelValues("completed").Inc()
	case <-ctx.Done():
		// allow in-flight reports graceful_timeout to finish before giving
		// up; their rows are left "running" and picked up next day if not.
		select {
		case <-done:
			telemetry.SchedulerRunsTotal.WithLabelValues("completed").Inc()
		case <-time.After(s.GracefulTimeout):
			cancel()
			telemetry.SchedulerRunsTotal.WithLabelValues("cancelled").Inc()
		}
	}
}

// runUserWithRetry calls Generate for one user, retrying non-permanent
// failures with exponential backoff 30s * 2^(k-1) up to MaxRetries (spec
// §4.8).
func (s *Scheduler) runUserWithRetry(ctx context.Context, user domain.UserProfile, reportDate time.Time) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultRetryInitial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(1<<uint(s.MaxRetries)) * DefaultRetryInitial

	operation := func() (domain.DailyReport, error) {
		r, err := s.Generator.Generate(ctx, user, reportDate)
		if err != nil && !mcperr.Of(err).Retriable() {
			return r, backoff.Permanent(err)
		}
		return r, err
	}

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.MaxRetries+1)))
	if err != nil {
		s.Logger.Error("daily report generation failed", "user_id", user.UserID, "error", err)
	}
}
