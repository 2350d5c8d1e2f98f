// Package decision implements the Scoring & Decision Engine (spec §4.6,
// C6): weighted multi-criteria node/peer scoring, fee and channel-open
// recommendations, dry-run gating, and the rollback ledger.
package decision

import (
	"math"

	"github.com/feustey/mcp/internal/config"
	"github.com/feustey/mcp/pkg/domain"
)

// maxFeePenaltyRatePPM is the fee rate at which fee_penalty saturates to 1
// (spec §4.6 "fee_penalty is min(1, fee_rate_ppm / 2500)").
const maxFeePenaltyRatePPM = 2500.0

// NodeScore computes score_node from a snapshot and the cohort of recent
// capacity observations it is min-max normalized against (spec §4.6).
func NodeScore(snapshot domain.NodeSnapshot, cohortCapacities []int64, weights config.HeuristicWeights) float64 {
	capacityNorm := normalizeCapacity(snapshot.CapacitySat, cohortCapacities)
	feePenalty := math.Min(1, snapshot.FeeStats.AvgFeeRatePPM/maxFeePenaltyRatePPM)

	return weights.Centrality*snapshot.CentralityScore +
		weights.Capacity*capacityNorm +
		weights.Reputation*snapshot.ReputationScore +
		weights.Fees*(1-feePenalty) +
		weights.Uptime*snapshot.UptimeRatio
}

// normalizeCapacity min-max normalizes capacitySat against cohort, folding
// capacitySat itself into the range so a node at either extreme of its own
// cohort still scores within [0,1]. An empty or degenerate cohort (all
// equal) returns the neutral midpoint, since there is nothing to normalize
// against yet.
func normalizeCapacity(capacitySat int64, cohort []int64) float64 {
	min, max := capacitySat, capacitySat
	for _, c := range cohort {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	if max == min {
		return 0.5
	}
	return float64(capacitySat-min) / float64(max-min)
}
