package decision

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/feustey/mcp/internal/config"
	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/internal/store"
	"github.com/feustey/mcp/internal/telemetry"
	"github.com/feustey/mcp/pkg/adapters/nodectl"
	"github.com/feustey/mcp/pkg/domain"
	"github.com/feustey/mcp/pkg/reasoning"
)

// ReasonDryRun is the status_reason recorded when a decision is rejected
// because the engine is running in dry-run mode (spec §4.6).
const ReasonDryRun = "dry_run"

// decisionIDNamespace scopes the deterministic decision ids this engine
// mints so they never collide with ids from an unrelated UUID producer.
var decisionIDNamespace = uuid.MustParse("6f6e8f2e-2f0a-4f9a-8a9b-6c1d9a6e6b2a")

// Engine is the Scoring & Decision Engine (C6).
type Engine struct {
	Store   *store.Store
	NodeCtl *nodectl.Client
	Weights config.HeuristicWeights
	Limits  config.LimitsConfig
	Logger  *slog.Logger
}

// New builds an Engine.
func New(st *store.Store, nc *nodectl.Client, weights config.HeuristicWeights, limits config.LimitsConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Store: st, NodeCtl: nc, Weights: weights, Limits: limits, Logger: logger}
}

// Decide scores snapshot and channels, produces Decisions for fee updates
// and new channel opens, persists them, and — unless dryRun — dispatches
// each via the node-control daemon up to the per-node concurrency cap
// (spec §4.6). runID scopes the deterministic decision ids so a retried
// report run produces the same decisions instead of duplicates.
func (e *Engine) Decide(ctx context.Context, runID string, snapshot domain.NodeSnapshot, channels []domain.ChannelState, cohortCapacities []int64, reasoningOut reasoning.Output, dryRun bool, now time.Time) ([]domain.Decision, error) {
	decisions := e.propose(runID, snapshot, channels, cohortCapacities, reasoningOut, now)

	sem := semaphore.NewWeighted(int64(e.Limits.PerNodeConcurrency))
	var wg sync.WaitGroup

	for _, d := range decisions {
		if err := e.Store.InsertDecision(ctx, d); err != nil {
			return nil, err
		}
		if d.Type == domain.DecisionNoop {
			telemetry.DecisionsTotal.WithLabelValues(string(d.Type), string(domain.DecisionPending)).Inc()
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		wg.Add(1)
		go func(d domain.Decision) {
			defer wg.Done()
			defer sem.Release(1)
			if err := e.apply(ctx, d, dryRun); err != nil {
				e.Logger.Error("decision apply failed", "decision_id", d.DecisionID, "error", err)
			}
		}(d)
	}
	wg.Wait()

	final := make([]domain.Decision, len(decisions))
	for i, d := range decisions {
		got, err := e.Store.GetDecision(ctx, d.DecisionID)
		if err != nil {
			return nil, err
		}
		final[i] = got
	}
	return final, nil
}

// propose is the pure scoring/thresholding half of Decide, factored out so
// it can be exercised without a store or node-control daemon.
func (e *Engine) propose(runID string, snapshot domain.NodeSnapshot, channels []domain.ChannelState, cohortCapacities []int64, reasoningOut reasoning.Output, now time.Time) []domain.Decision {
	nodeScore := NodeScore(snapshot, cohortCapacities, e.Weights)

	connected := make(map[string]bool, len(channels))
	for _, ch := range channels {
		connected[ch.PeerPubkey] = true
	}

	var decisions []domain.Decision

	for _, ch := range channels {
		if !ch.Active {
			continue
		}
		rec := RecommendFee(ch, snapshot)
		if !ShouldUpdateFee(rec, ch.Policy.FeeRatePPM, e.Limits.ConfidenceThreshold) {
			continue
		}
		decisions = append(decisions, domain.Decision{
			DecisionID: deterministicID(runID, snapshot.NodePubkey, ch.ChannelID, string(domain.DecisionUpdateFee)),
			NodePubkey: snapshot.NodePubkey,
			ChannelID:  ch.ChannelID,
			Type:       domain.DecisionUpdateFee,
			Payload: map[string]any{
				"current_fee_rate_ppm": ch.Policy.FeeRatePPM,
				"new_fee_rate_ppm":     rec.FeeRatePPM,
				"confidence":           rec.Confidence,
			},
			RationaleText: fmt.Sprintf("routing_success_rate=%.2f centrality=%.2f confidence=%.2f",
				snapshot.RoutingSuccessRate, snapshot.CentralityScore, rec.Confidence),
			Score:     nodeScore,
			CreatedAt: now,
			Status:    domain.DecisionPending,
		})
	}

	for _, peer := range RecommendChannels(reasoningOut.CandidatePeers, connected, e.Limits.PeerScoreThreshold, e.Limits.MaxOpenPerRun) {
		decisions = append(decisions, domain.Decision{
			DecisionID: deterministicID(runID, snapshot.NodePubkey, peer.Pubkey, string(domain.DecisionOpenChannel)),
			NodePubkey: snapshot.NodePubkey,
			Type:       domain.DecisionOpenChannel,
			Payload: map[string]any{
				"peer_pubkey":  peer.Pubkey,
				"capacity_sat": DefaultOpenCapacitySat,
			},
			RationaleText: fmt.Sprintf("score_peer=%.2f", peer.Score),
			Score:         peer.Score,
			CreatedAt:     now,
			Status:        domain.DecisionPending,
		})
	}

	if len(decisions) == 0 {
		decisions = append(decisions, domain.Decision{
			DecisionID:    deterministicID(runID, snapshot.NodePubkey, "", string(domain.DecisionNoop)),
			NodePubkey:    snapshot.NodePubkey,
			Type:          domain.DecisionNoop,
			Payload:       map[string]any{},
			RationaleText: "no action met thresholds",
			Score:         nodeScore,
			CreatedAt:     now,
			Status:        domain.DecisionPending,
		})
	}

	return decisions
}

// apply dispatches (or, in dry-run, rejects) one decision and records the
// resulting status transition (spec §4.6 "application semantics").
func (e *Engine) apply(ctx context.Context, d domain.Decision, dryRun bool) error {
	if dryRun {
		telemetry.DecisionsTotal.WithLabelValues(string(d.Type), string(domain.DecisionRejected)).Inc()
		return e.Store.UpdateDecisionStatus(ctx, d.DecisionID, domain.DecisionRejected, ReasonDryRun)
	}

	priorState, reversal, err := e.dispatch(ctx, d)
	if err != nil {
		if mcperr.Of(err) == mcperr.Conflict {
			// another writer already applied this decision_id; treat as
			// success per spec §6 "Conflict on idempotent writes".
			telemetry.DecisionsTotal.WithLabelValues(string(d.Type), string(domain.DecisionApplied)).Inc()
			return e.Store.UpdateDecisionStatus(ctx, d.DecisionID, domain.DecisionApplied, "")
		}
		telemetry.DecisionsTotal.WithLabelValues(string(d.Type), string(domain.DecisionFailed)).Inc()
		return e.Store.UpdateDecisionStatus(ctx, d.DecisionID, domain.DecisionFailed, err.Error())
	}

	if err := e.Store.InsertRollback(ctx, domain.RollbackEntry{
		DecisionID:      d.DecisionID,
		PriorState:      priorState,
		ReversalPayload: reversal,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		return err
	}
	telemetry.DecisionsTotal.WithLabelValues(string(d.Type), string(domain.DecisionApplied)).Inc()
	return e.Store.UpdateDecisionStatus(ctx, d.DecisionID, domain.DecisionApplied, "")
}

// dispatch sends d to the node-control daemon and returns the prior state
// plus a reversal payload sufficient for rollback.
func (e *Engine) dispatch(ctx context.Context, d domain.Decision) (priorState, reversal map[string]any, err error) {
	switch d.Type {
	case domain.DecisionUpdateFee:
		current, _ := d.Payload["current_fee_rate_ppm"].(int64)
		newRate, _ := d.Payload["new_fee_rate_ppm"].(int64)
		req := nodectl.UpdatePolicyRequest{
			DecisionID: d.DecisionID,
			ChannelID:  d.ChannelID,
			Policy:     domain.FeePolicy{FeeRatePPM: newRate},
		}
		if err := e.NodeCtl.UpdatePolicy(ctx, req); err != nil {
			return nil, nil, err
		}
		priorState = map[string]any{"fee_rate_ppm": current}
		reversal = map[string]any{"fee_rate_ppm": current}
		return priorState, reversal, nil

	case domain.DecisionOpenChannel:
		peer, _ := d.Payload["peer_pubkey"].(string)
		capacitySat, _ := d.Payload["capacity_sat"].(int)
		result, err := e.NodeCtl.OpenChannel(ctx, nodectl.OpenChannelRequest{
			DecisionID:  d.DecisionID,
			PeerPubkey:  peer,
			CapacitySat: int64(capacitySat),
		})
		if err != nil {
			return nil, nil, err
		}
		priorState = map[string]any{"existed": false}
		reversal = map[string]any{"channel_id": result.ChannelID, "force": true}
		return priorState, reversal, nil

	case domain.DecisionCloseChannel:
		req := nodectl.CloseChannelRequest{DecisionID: d.DecisionID, ChannelID: d.ChannelID, Force: false}
		if err := e.NodeCtl.CloseChannel(ctx, req); err != nil {
			return nil, nil, err
		}
		return map[string]any{"existed": true}, map[string]any{}, nil

	default:
		return map[string]any{}, map[string]any{}, nil
	}
}

// Rollback replays a decision's reversal payload; it only succeeds for
// decisions currently applied (spec §4.6).
func (e *Engine) Rollback(ctx context.Context, decisionID string) (domain.Decision, error) {
	d, err := e.Store.GetDecision(ctx, decisionID)
	if err != nil {
		return domain.Decision{}, err
	}
	if d.Status != domain.DecisionApplied {
		return domain.Decision{}, mcperr.New(mcperr.Conflict, "decision.rollback", "decision "+decisionID+" is not applied", nil)
	}

	entry, err := e.Store.GetRollback(ctx, decisionID)
	if err != nil {
		return domain.Decision{}, err
	}

	switch d.Type {
	case domain.DecisionUpdateFee:
		priorRate, _ := entry.ReversalPayload["fee_rate_ppm"].(float64)
		req := nodectl.UpdatePolicyRequest{
			DecisionID: d.DecisionID,
			ChannelID:  d.ChannelID,
			Policy:     domain.FeePolicy{FeeRatePPM: int64(priorRate)},
		}
		if err := e.NodeCtl.UpdatePolicy(ctx, req); err != nil {
			return domain.Decision{}, err
		}
	case domain.DecisionOpenChannel:
		channelID, _ := entry.ReversalPayload["channel_id"].(string)
		force, _ := entry.ReversalPayload["force"].(bool)
		req := nodectl.CloseChannelRequest{DecisionID: d.DecisionID, ChannelID: channelID, Force: force}
		if err := e.NodeCtl.CloseChannel(ctx, req); err != nil {
			return domain.Decision{}, err
		}
	}

	if err := e.Store.UpdateDecisionStatus(ctx, decisionID, domain.DecisionRolledBack, ""); err != nil {
		return domain.Decision{}, err
	}
	return e.Store.GetDecision(ctx, decisionID)
}

// deterministicID mints a stable decision id from its producing context so
// a retried report run is idempotent (spec §4.6, §9).
func deterministicID(runID, nodePubkey, subject, decisionType string) string {
	name := runID + "\x00" + nodePubkey + "\x00" + subject + "\x00" + decisionType
	return uuid.NewSHA1(decisionIDNamespace, []byte(name)).String()
}
