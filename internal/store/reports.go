package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/pkg/domain"
)

// ReportRetention is how long a DailyReport is kept before purge eligibility
// (spec §6 document store contract: TTL on report_date + 90 days).
const ReportRetention = 90 * 24 * time.Hour

// UpsertUserProfile inserts or replaces an enrolled operator's profile.
func (s *Store) UpsertUserProfile(ctx context.Context, u domain.UserProfile) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO user_profiles (user_id, tenant_id, lightning_pubkey, daily_report_enabled, timezone, notification_channels, apply_decisions)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (user_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			lightning_pubkey = EXCLUDED.lightning_pubkey,
			daily_report_enabled = EXCLUDED.daily_report_enabled,
			timezone = EXCLUDED.timezone,
			notification_channels = EXCLUDED.notification_channels,
			apply_decisions = EXCLUDED.apply_decisions`,
		u.UserID, u.TenantID, u.LightningPubkey, u.DailyReportEnabled, u.Timezone, u.NotificationChannels, u.ApplyDecisions)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.users", "upsert user profile", err)
	}
	return nil
}

// UsersWithDailyReportEnabled returns every profile the scheduler should
// enqueue a report for (spec §4.8).
func (s *Store) UsersWithDailyReportEnabled(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT user_id, tenant_id, lightning_pubkey, daily_report_enabled, timezone, notification_channels, apply_decisions
		FROM user_profiles WHERE daily_report_enabled = true`)
	if err != nil {
		return nil, mcperr.New(mcperr.Transient, "store.users", "query enrolled users", err)
	}
	defer rows.Close()

	var out []domain.UserProfile
	for rows.Next() {
		var u domain.UserProfile
		if err := rows.Scan(&u.UserID, &u.TenantID, &u.LightningPubkey, &u.DailyReportEnabled, &u.Timezone, &u.NotificationChannels, &u.ApplyDecisions); err != nil {
			return nil, mcperr.New(mcperr.Transient, "store.users", "scan user profile", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// GetUserProfile fetches a single profile.
func (s *Store) GetUserProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	var u domain.UserProfile
	err := s.Pool.QueryRow(ctx, `
		SELECT user_id, tenant_id, lightning_pubkey, daily_report_enabled, timezone, notification_channels, apply_decisions
		FROM user_profiles WHERE user_id = $1`, userID).
		Scan(&u.UserID, &u.TenantID, &u.LightningPubkey, &u.DailyReportEnabled, &u.Timezone, &u.NotificationChannels, &u.ApplyDecisions)
	if err == pgx.ErrNoRows {
		return domain.UserProfile{}, mcperr.New(mcperr.NotFound, "store.users", "user "+userID+" not found", nil)
	}
	if err != nil {
		return domain.UserProfile{}, mcperr.New(mcperr.Transient, "store.users", "get user profile", err)
	}
	return u, nil
}

// ClaimReportAttempt inserts a DailyReport row in "pending" with
// attempt_count 0 if none exists for (user, date), then locks the row. If
// the report already succeeded or attempt_count has reached maxAttempts it
// returns the row and false; otherwise it bumps attempt_count, sets the
// status to "running", and returns the resulting row and true. The uniqueness
// constraint on (user_id, report_date) is what makes a scheduler re-run for
// the same day idempotent (spec §4.8).
func (s *Store) ClaimReportAttempt(ctx context.Context, reportID, userID, tenantID, nodePubkey string, reportDate time.Time, maxAttempts int) (domain.DailyReport, bool, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return domain.DailyReport{}, false, mcperr.New(mcperr.Transient, "store.reports", "begin claim", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO daily_reports (report_id, user_id, tenant_id, node_pubkey, report_date, generation_status, attempt_count, sections, decisions_summary, failure_reason)
		VALUES ($1,$2,$3,$4,$5,'pending',0,'[]','','')
		ON CONFLICT (user_id, report_date) DO NOTHING`,
		reportID, userID, tenantID, nodePubkey, reportDate)
	if err != nil {
		return domain.DailyReport{}, false, mcperr.New(mcperr.Transient, "store.reports", "insert report row", err)
	}

	var r domain.DailyReport
	var sections []byte
	var generatedAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT report_id, user_id, tenant_id, node_pubkey, report_date, generation_status, attempt_count, sections, decisions_summary, failure_reason, generated_at
		FROM daily_reports WHERE user_id = $1 AND report_date = $2 FOR UPDATE`, userID, reportDate).
		Scan(&r.ReportID, &r.UserID, &r.TenantID, &r.NodePubkey, &r.ReportDate, &r.GenerationStatus, &r.AttemptCount, &sections, &r.DecisionsSummary, &r.FailureReason, &generatedAt)
	if err != nil {
		return domain.DailyReport{}, false, mcperr.New(mcperr.Transient, "store.reports", "lock report row", err)
	}

	if r.GenerationStatus == domain.ReportSucceeded {
		if err := tx.Commit(ctx); err != nil {
			return domain.DailyReport{}, false, mcperr.New(mcperr.Transient, "store.reports", "commit claim", err)
		}
		_ = json.Unmarshal(sections, &r.Sections)
		return r, false, nil
	}
	if r.AttemptCount >= maxAttempts {
		if err := tx.Commit(ctx); err != nil {
			return domain.DailyReport{}, false, mcperr.New(mcperr.Transient, "store.reports", "commit claim", err)
		}
		_ = json.Unmarshal(sections, &r.Sections)
		return r, false, nil
	}

	r.AttemptCount++
	r.GenerationStatus = domain.ReportRunning
	if _, err := tx.Exec(ctx, `UPDATE daily_reports SET attempt_count = $2, generation_status = 'running' WHERE report_id = $1`,
		r.ReportID, r.AttemptCount); err != nil {
		return domain.DailyReport{}, false, mcperr.New(mcperr.Transient, "store.reports", "bump attempt count", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.DailyReport{}, false, mcperr.New(mcperr.Transient, "store.reports", "commit claim", err)
	}
	return r, true, nil
}

// FinishReport records the terminal (succeeded or failed) outcome of a
// generation attempt.
func (s *Store) FinishReport(ctx context.Context, r domain.DailyReport) error {
	sections, err := json.Marshal(r.Sections)
	if err != nil {
		return mcperr.New(mcperr.Invalid, "store.reports", "marshal sections", err)
	}
	_, err = s.Pool.Exec(ctx, `
		UPDATE daily_reports SET
			generation_status = $2, sections = $3, decisions_summary = $4, failure_reason = $5, generated_at = $6
		WHERE report_id = $1`,
		r.ReportID, r.GenerationStatus, sections, r.DecisionsSummary, r.FailureReason, r.GeneratedAt)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.reports", "finish report", err)
	}
	return nil
}

// GetReport fetches a single report by id.
func (s *Store) GetReport(ctx context.Context, reportID string) (domain.DailyReport, error) {
	var r domain.DailyReport
	var sections []byte
	var generatedAt *time.Time
	err := s.Pool.QueryRow(ctx, `
		SELECT report_id, user_id, tenant_id, node_pubkey, report_date, generation_status, attempt_count, sections, decisions_summary, failure_reason, generated_at
		FROM daily_reports WHERE report_id = $1`, reportID).
		Scan(&r.ReportID, &r.UserID, &r.TenantID, &r.NodePubkey, &r.ReportDate, &r.GenerationStatus, &r.AttemptCount, &sections, &r.DecisionsSummary, &r.FailureReason, &generatedAt)
	if err == pgx.ErrNoRows {
		return domain.DailyReport{}, mcperr.New(mcperr.NotFound, "store.reports", "report "+reportID+" not found", nil)
	}
	if err != nil {
		return domain.DailyReport{}, mcperr.New(mcperr.Transient, "store.reports", "get report", err)
	}
	if generatedAt != nil {
		r.GeneratedAt = *generatedAt
	}
	_ = json.Unmarshal(sections, &r.Sections)
	return r, nil
}

// LatestReportForUser returns a user's most recent report, the read path
// for the §6 "GET daily report" contract.
func (s *Store) LatestReportForUser(ctx context.Context, userID string) (domain.DailyReport, error) {
	var reportID string
	err := s.Pool.QueryRow(ctx, `
		SELECT report_id FROM daily_reports WHERE user_id = $1 ORDER BY report_date DESC LIMIT 1`, userID).
		Scan(&reportID)
	if err == pgx.ErrNoRows {
		return domain.DailyReport{}, mcperr.New(mcperr.NotFound, "store.reports", "no reports for "+userID, nil)
	}
	if err != nil {
		return domain.DailyReport{}, mcperr.New(mcperr.Transient, "store.reports", "find latest report", err)
	}
	return s.GetReport(ctx, reportID)
}

// PurgeExpiredReports deletes reports past the retention window, run by the
// worker process's daily housekeeping loop in internal/app.
func (s *Store) PurgeExpiredReports(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM daily_reports WHERE report_date < $1`, now.Add(-ReportRetention))
	if err != nil {
		return 0, mcperr.New(mcperr.Transient, "store.reports", "purge expired reports", err)
	}
	return tag.RowsAffected(), nil
}
