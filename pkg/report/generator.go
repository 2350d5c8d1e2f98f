// Package report implements the Daily Report Generator (spec §4.7, C7):
// assembles one user's daily report from the retrieval, reasoning, and
// decision engine outputs over their node's live state.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/internal/store"
	"github.com/feustey/mcp/internal/telemetry"
	"github.com/feustey/mcp/pkg/adapters/nodedata"
	"github.com/feustey/mcp/pkg/decision"
	"github.com/feustey/mcp/pkg/domain"
	"github.com/feustey/mcp/pkg/reasoning"
	"github.com/feustey/mcp/pkg/retrieval"
)

// DefaultTimeout bounds a single generation attempt (spec §4.7).
const DefaultTimeout = 300 * time.Second

// Generator is the Daily Report Generator.
type Generator struct {
	Store             *store.Store
	NodeData          *nodedata.Client
	Retrieval         *retrieval.Service
	Reasoning         *reasoning.Service
	Decision          *decision.Engine
	Timeout           time.Duration
	MaxAttemptsPerDay int
}

// New builds a Generator.
func New(st *store.Store, nd *nodedata.Client, rs *retrieval.Service, rz *reasoning.Service, de *decision.Engine, timeout time.Duration, maxAttemptsPerDay int) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{Store: st, NodeData: nd, Retrieval: rs, Reasoning: rz, Decision: de, Timeout: timeout, MaxAttemptsPerDay: maxAttemptsPerDay}
}

// Generate runs generate(user_id, report_date) per spec §4.7.
func (g *Generator) Generate(ctx context.Context, user domain.UserProfile, reportDate time.Time) (domain.DailyReport, error) {
	reportDate = reportDate.Truncate(24 * time.Hour)
	reportID := uuid.NewString()

	claimed, shouldRun, err := g.Store.ClaimReportAttempt(ctx, reportID, user.UserID, user.TenantID, user.LightningPubkey, reportDate, g.MaxAttemptsPerDay)
	if err != nil {
		return domain.DailyReport{}, err
	}
	if !shouldRun {
		return claimed, nil
	}

	genCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	result, genErr := g.run(genCtx, claimed, user)
	// persistence happens on a context stripped of the generation deadline:
	// a timed-out run must still be able to write its failed status.
	finishCtx := context.WithoutCancel(ctx)
	if genErr != nil {
		reason := "error"
		if genCtx.Err() == context.DeadlineExceeded {
			reason = "timeout"
		}
		result.GenerationStatus = domain.ReportFailed
		result.FailureReason = reason
		result.GeneratedAt = time.Now().UTC()
		if err := g.Store.FinishReport(finishCtx, result); err != nil {
			return domain.DailyReport{}, err
		}
		telemetry.ReportsGeneratedTotal.WithLabelValues("failed").Inc()
		return result, genErr
	}

	result.GenerationStatus = domain.ReportSucceeded
	result.GeneratedAt = time.Now().UTC()
	if err := g.Store.FinishReport(finishCtx, result); err != nil {
		return domain.DailyReport{}, err
	}
	telemetry.ReportsGeneratedTotal.WithLabelValues("succeeded").Inc()
	return result, nil
}

// run performs steps 3-6 of generate(): fetch live state, run RAG +
// reasoning per task, feed the decision engine, and assemble sections.
func (g *Generator) run(ctx context.Context, claim domain.DailyReport, user domain.UserProfile) (domain.DailyReport, error) {
	report := claim
	report.UserID = user.UserID
	report.TenantID = user.TenantID
	report.NodePubkey = user.LightningPubkey

	snapshot, err := g.NodeData.FetchNodeSnapshot(ctx, user.LightningPubkey)
	if err != nil {
		return report, err
	}
	if !snapshot.Valid() {
		return report, mcperr.New(mcperr.Invalid, "report.generator", "node snapshot violates invariants", nil)
	}
	channels, err := g.NodeData.FetchChannels(ctx, user.LightningPubkey)
	if err != nil {
		return report, err
	}

	cohort, err := g.Store.CohortCapacities(ctx)
	if err != nil {
		return report, err
	}

	outputs := make(map[reasoning.Task]reasoning.Output, 3)
	for _, task := range []reasoning.Task{reasoning.TaskDailyReport, reasoning.TaskFeeRecommendation, reasoning.TaskChannelRecommendation} {
		hits, err := g.Retrieval.Retrieve(ctx, taskQuery(task, snapshot), retrieval.Filters{RelatedNode: user.LightningPubkey}, 10)
		if err != nil {
			return report, err
		}
		out, err := g.Reasoning.Reason(ctx, snapshot, hits, task)
		if err != nil {
			return report, err
		}
		outputs[task] = out
	}

	runID := report.ReportID
	dryRun := !user.ApplyDecisions
	decisions, err := g.Decision.Decide(ctx, runID, snapshot, channels, cohort, outputs[reasoning.TaskFeeRecommendation], dryRun, time.Now().UTC())
	if err != nil {
		return report, err
	}
	// channel recommendations are produced from a separate reasoning call
	// keyed on a different task prompt, so fold its candidate peers in as
	// a second decision pass whose run id is the report's run id with a
	// ":channels" suffix.
	if len(outputs[reasoning.TaskChannelRecommendation].CandidatePeers) > 0 {
		more, err := g.Decision.Decide(ctx, runID+":channels", snapshot, channels, cohort, outputs[reasoning.TaskChannelRecommendation], dryRun, time.Now().UTC())
		if err != nil {
			return report, err
		}
		decisions = append(decisions, more...)
	}

	report.Sections = assembleSections(snapshot, channels, outputs[reasoning.TaskDailyReport], outputs[reasoning.TaskFeeRecommendation])
	report.DecisionsSummary = summarizeDecisions(decisions)
	return report, nil
}

func taskQuery(task reasoning.Task, snapshot domain.NodeSnapshot) string {
	switch task {
	case reasoning.TaskFeeRecommendation:
		return fmt.Sprintf("routing fee strategy for a Lightning node with success rate %.2f", snapshot.RoutingSuccessRate)
	case reasoning.TaskChannelRecommendation:
		return "candidate peers for new Lightning channel liquidity"
	default:
		return "daily Lightning node health and liquidity summary"
	}
}

func assembleSections(snapshot domain.NodeSnapshot, channels []domain.ChannelState, dailyOut, feeOut reasoning.Output) []domain.ReportSection {
	activeChannels := 0
	var localSat, remoteSat int64
	for _, ch := range channels {
		if ch.Active {
			activeChannels++
		}
		localSat += ch.LocalBalanceSat
		remoteSat += ch.CapacitySat - ch.LocalBalanceSat
	}

	return []domain.ReportSection{
		{Title: "health_summary", Body: dailyOut.Summary},
		{Title: "liquidity", Body: fmt.Sprintf("local=%d sat remote=%d sat across %d active channels", localSat, remoteSat, activeChannels)},
		{Title: "routing_performance", Body: fmt.Sprintf("success_rate=%.2f centrality=%.2f uptime=%.2f", snapshot.RoutingSuccessRate, snapshot.CentralityScore, snapshot.UptimeRatio)},
		{Title: "fee_strategy", Body: feeOut.Summary},
		{Title: "recommendations", Body: fmt.Sprintf("recommended_fee_rate_ppm=%d confidence=%.2f", feeOut.RecommendedFeeRatePPM, feeOut.Confidence)},
	}
}

func summarizeDecisions(decisions []domain.Decision) string {
	counts := make(map[domain.DecisionType]int)
	for _, d := range decisions {
		counts[d.Type]++
	}
	return fmt.Sprintf("open_channel=%d close_channel=%d update_fee=%d noop=%d",
		counts[domain.DecisionOpenChannel], counts[domain.DecisionCloseChannel], counts[domain.DecisionUpdateFee], counts[domain.DecisionNoop])
}
