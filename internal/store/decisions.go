package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/pkg/domain"
)

// InsertDecision persists a new decision in its initial status. DecisionID
// is caller-supplied and deterministic (spec §4.6), so this call is
// idempotent under retries.
func (s *Store) InsertDecision(ctx context.Context, d domain.Decision) error {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return mcperr.New(mcperr.Invalid, "store.decisions", "marshal payload", err)
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO decisions (decision_id, node_pubkey, channel_id, type, payload, rationale_text, score, created_at, status, status_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (decision_id) DO NOTHING`,
		d.DecisionID, d.NodePubkey, d.ChannelID, d.Type, payload, d.RationaleText, d.Score, d.CreatedAt, d.Status, d.StatusReason)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.decisions", "insert decision", err)
	}
	return nil
}

// UpdateDecisionStatus transitions a decision's status and records the
// transition in decision_events, the audit trail SPEC_FULL.md supplements
// onto the C6 decision engine.
func (s *Store) UpdateDecisionStatus(ctx context.Context, decisionID string, to domain.DecisionStatus, reason string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.decisions", "begin status update", err)
	}
	defer tx.Rollback(ctx)

	var from domain.DecisionStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM decisions WHERE decision_id = $1 FOR UPDATE`, decisionID).Scan(&from); err != nil {
		if err == pgx.ErrNoRows {
			return mcperr.New(mcperr.NotFound, "store.decisions", "decision "+decisionID+" not found", nil)
		}
		return mcperr.New(mcperr.Transient, "store.decisions", "lock decision", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE decisions SET status = $2, status_reason = $3 WHERE decision_id = $1`,
		decisionID, to, reason); err != nil {
		return mcperr.New(mcperr.Transient, "store.decisions", "update status", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO decision_events (decision_id, from_status, to_status, reason) VALUES ($1,$2,$3,$4)`,
		decisionID, from, to, reason); err != nil {
		return mcperr.New(mcperr.Transient, "store.decisions", "insert decision event", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mcperr.New(mcperr.Transient, "store.decisions", "commit status update", err)
	}
	return nil
}

// GetDecision fetches a decision by id.
func (s *Store) GetDecision(ctx context.Context, decisionID string) (domain.Decision, error) {
	var d domain.Decision
	var payload []byte
	err := s.Pool.QueryRow(ctx, `
		SELECT decision_id, node_pubkey, channel_id, type, payload, rationale_text, score, created_at, status, status_reason
		FROM decisions WHERE decision_id = $1`, decisionID).
		Scan(&d.DecisionID, &d.NodePubkey, &d.ChannelID, &d.Type, &payload, &d.RationaleText, &d.Score, &d.CreatedAt, &d.Status, &d.StatusReason)
	if err == pgx.ErrNoRows {
		return domain.Decision{}, mcperr.New(mcperr.NotFound, "store.decisions", "decision "+decisionID+" not found", nil)
	}
	if err != nil {
		return domain.Decision{}, mcperr.New(mcperr.Transient, "store.decisions", "get decision", err)
	}
	if err := json.Unmarshal(payload, &d.Payload); err != nil {
		return domain.Decision{}, mcperr.New(mcperr.Invalid, "store.decisions", "unmarshal payload", err)
	}
	return d, nil
}

// RecentDecisionsForChannel returns at most limit decisions for channelID,
// ordered newest first.
func (s *Store) RecentDecisionsForChannel(ctx context.Context, channelID string, limit int) ([]domain.Decision, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT decision_id, node_pubkey, channel_id, type, payload, rationale_text, score, created_at, status, status_reason
		FROM decisions WHERE channel_id = $1 ORDER BY created_at DESC LIMIT $2`, channelID, limit)
	if err != nil {
		return nil, mcperr.New(mcperr.Transient, "store.decisions", "query channel decisions", err)
	}
	defer rows.Close()

	var out []domain.Decision
	for rows.Next() {
		var d domain.Decision
		var payload []byte
		if err := rows.Scan(&d.DecisionID, &d.NodePubkey, &d.ChannelID, &d.Type, &payload, &d.RationaleText, &d.Score, &d.CreatedAt, &d.Status, &d.StatusReason); err != nil {
			return nil, mcperr.New(mcperr.Transient, "store.decisions", "scan channel decision", err)
		}
		_ = json.Unmarshal(payload, &d.Payload)
		out = append(out, d)
	}
	return out, rows.Err()
}

// InsertRollback records the prior state and reversal payload for an
// applied decision (spec §4.6 rollback ledger).
func (s *Store) InsertRollback(ctx context.Context, r domain.RollbackEntry) error {
	prior, err := json.Marshal(r.PriorState)
	if err != nil {
		return mcperr.New(mcperr.Invalid, "store.decisions", "marshal prior state", err)
	}
	reversal, err := json.Marshal(r.ReversalPayload)
	if err != nil {
		return mcperr.New(mcperr.Invalid, "store.decisions", "marshal reversal payload", err)
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO rollback_entries (decision_id, prior_state, reversal_payload, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (decision_id) DO NOTHING`, r.DecisionID, prior, reversal, r.CreatedAt)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.decisions", "insert rollback entry", err)
	}
	return nil
}

// GetRollback fetches the rollback entry for a decision.
func (s *Store) GetRollback(ctx context.Context, decisionID string) (domain.RollbackEntry, error) {
	var r domain.RollbackEntry
	var prior, reversal []byte
	err := s.Pool.QueryRow(ctx, `
		SELECT decision_id, prior_state, reversal_payload, created_at
		FROM rollback_entries WHERE decision_id = $1`, decisionID).
		Scan(&r.DecisionID, &prior, &reversal, &r.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.RollbackEntry{}, mcperr.New(mcperr.NotFound, "store.decisions", "no rollback entry for "+decisionID, nil)
	}
	if err != nil {
		return domain.RollbackEntry{}, mcperr.New(mcperr.Transient, "store.decisions", "get rollback entry", err)
	}
	if err := json.Unmarshal(prior, &r.PriorState); err != nil {
		return domain.RollbackEntry{}, mcperr.New(mcperr.Invalid, "store.decisions", "unmarshal prior state", err)
	}
	if err := json.Unmarshal(reversal, &r.ReversalPayload); err != nil {
		return domain.RollbackEntry{}, mcperr.New(mcperr.Invalid, "store.decisions", "unmarshal reversal payload", err)
	}
	return r, nil
}
