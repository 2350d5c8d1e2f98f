package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feustey/mcp/internal/config"
	"github.com/feustey/mcp/pkg/domain"
)

func defaultWeights() config.HeuristicWeights {
	return config.HeuristicWeights{Centrality: 0.4, Capacity: 0.2, Reputation: 0.2, Fees: 0.1, Uptime: 0.1}
}

func TestNodeScore_MonotoneInCentrality(t *testing.T) {
	weights := defaultWeights()
	cohort := []int64{1_000_000, 2_000_000, 3_000_000}

	lo := domain.NodeSnapshot{CapacitySat: 2_000_000, CentralityScore: 0.3, ReputationScore: 0.5, UptimeRatio: 0.9}
	hi := lo
	hi.CentralityScore = 0.9

	assert.Less(t, NodeScore(lo, cohort, weights), NodeScore(hi, cohort, weights))
}

func TestNodeScore_FeePenaltySaturatesAtOne(t *testing.T) {
	weights := defaultWeights()
	snapshot := domain.NodeSnapshot{CapacitySat: 1_000_000, FeeStats: domain.FeeStats{AvgFeeRatePPM: 10_000}}
	score := NodeScore(snapshot, nil, weights)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestNormalizeCapacity_DegenerateCohortReturnsMidpoint(t *testing.T) {
	assert.Equal(t, 0.5, normalizeCapacity(5_000_000, nil))
	assert.Equal(t, 0.5, normalizeCapacity(5_000_000, []int64{5_000_000, 5_000_000}))
}

func TestNormalizeCapacity_MinMaxWithinCohort(t *testing.T) {
	cohort := []int64{1_000_000, 2_000_000, 3_000_000}
	assert.Equal(t, 0.0, normalizeCapacity(1_000_000, cohort))
	assert.Equal(t, 1.0, normalizeCapacity(3_000_000, cohort))
	assert.InDelta(t, 0.5, normalizeCapacity(2_000_000, cohort), 0.0001)
}
