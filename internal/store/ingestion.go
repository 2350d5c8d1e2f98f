package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/feustey/mcp/internal/mcperr"
)

// ItemOutcome is the per-item detail SPEC_FULL.md supplements onto job
// status (spec §4.2 only specifies an aggregate job status).
type ItemOutcome struct {
	URI   string `json:"uri"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// JobStatus is an ingestion job's persisted state (spec §4.2 status
// machine: queued/running/succeeded/failed/partial).
type JobStatus struct {
	JobID        string        `json:"job_id"`
	SourceURI    string        `json:"source_uri"`
	Status       string        `json:"status"`
	TotalItems   int           `json:"total_items"`
	FailedItems  int           `json:"failed_items"`
	ItemOutcomes []ItemOutcome `json:"item_outcomes"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// CreateJob registers a new ingestion job in "queued" state.
func (s *Store) CreateJob(ctx context.Context, jobID, sourceURI string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO ingestion_jobs (job_id, source_uri, status) VALUES ($1,$2,'queued')`,
		jobID, sourceURI)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.ingestion", "create job", err)
	}
	return nil
}

// UpdateJobStatus sets a job's coarse status (running/succeeded/failed/partial).
func (s *Store) UpdateJobStatus(ctx context.Context, jobID, status string) error {
	_, err := s.Pool.Exec(ctx, `UPDATE ingestion_jobs SET status = $2 WHERE job_id = $1`, jobID, status)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.ingestion", "update job status", err)
	}
	return nil
}

// RecordItemOutcome appends one item's ingest outcome, keeping only the most
// recent maxItemOutcomes entries, and, on failure, bumps the job's
// failed_items counter. pkg/ingestion counts failures for its
// item-failure-ratio check itself and does not read these back.
func (s *Store) RecordItemOutcome(ctx context.Context, jobID string, outcome ItemOutcome) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.ingestion", "begin record outcome", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	if err := tx.QueryRow(ctx, `SELECT item_outcomes FROM ingestion_jobs WHERE job_id = $1 FOR UPDATE`, jobID).Scan(&raw); err != nil {
		if err == pgx.ErrNoRows {
			return mcperr.New(mcperr.NotFound, "store.ingestion", "job "+jobID+" not found", nil)
		}
		return mcperr.New(mcperr.Transient, "store.ingestion", "lock job", err)
	}
	var outcomes []ItemOutcome
	_ = json.Unmarshal(raw, &outcomes)
	outcomes = append(outcomes, outcome)
	const maxItemOutcomes = 500
	if len(outcomes) > maxItemOutcomes {
		outcomes = outcomes[len(outcomes)-maxItemOutcomes:]
	}

	encoded, err := json.Marshal(outcomes)
	if err != nil {
		return mcperr.New(mcperr.Invalid, "store.ingestion", "marshal item outcomes", err)
	}

	failedDelta := 0
	if !outcome.OK {
		failedDelta = 1
	}
	if _, err := tx.Exec(ctx, `
		UPDATE ingestion_jobs SET item_outcomes = $2, total_items = total_items + 1, failed_items = failed_items + $3
		WHERE job_id = $1`, jobID, encoded, failedDelta); err != nil {
		return mcperr.New(mcperr.Transient, "store.ingestion", "update item outcomes", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mcperr.New(mcperr.Transient, "store.ingestion", "commit record outcome", err)
	}
	return nil
}

// CompleteJob finalizes a job's terminal status and completed_at timestamp.
func (s *Store) CompleteJob(ctx context.Context, jobID, status string, completedAt time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE ingestion_jobs SET status = $2, completed_at = $3 WHERE job_id = $1`, jobID, status, completedAt)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.ingestion", "complete job", err)
	}
	return nil
}

// GetJobStatus fetches a job's full status, the read side of the §6 ingest
// status contract.
func (s *Store) GetJobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	var j JobStatus
	var raw []byte
	var completedAt *time.Time
	err := s.Pool.QueryRow(ctx, `
		SELECT job_id, source_uri, status, total_items, failed_items, item_outcomes, created_at, completed_at
		FROM ingestion_jobs WHERE job_id = $1`, jobID).
		Scan(&j.JobID, &j.SourceURI, &j.Status, &j.TotalItems, &j.FailedItems, &raw, &j.CreatedAt, &completedAt)
	if err == pgx.ErrNoRows {
		return JobStatus{}, mcperr.New(mcperr.NotFound, "store.ingestion", "job "+jobID+" not found", nil)
	}
	if err != nil {
		return JobStatus{}, mcperr.New(mcperr.Transient, "store.ingestion", "get job status", err)
	}
	_ = json.Unmarshal(raw, &j.ItemOutcomes)
	j.CompletedAt = completedAt
	return j, nil
}
