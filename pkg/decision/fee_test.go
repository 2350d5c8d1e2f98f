package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feustey/mcp/pkg/domain"
)

func TestRecommendFee_RespectsBounds(t *testing.T) {
	channel := domain.ChannelState{
		CapacitySat:     1_000_000,
		LocalBalanceSat: 999_000,
		Policy:          domain.FeePolicy{FeeRatePPM: 100000},
	}
	snapshot := domain.NodeSnapshot{RoutingSuccessRate: 0.1, CentralityScore: 0.1}

	rec := RecommendFee(channel, snapshot)
	assert.GreaterOrEqual(t, rec.FeeRatePPM, int64(minFeeRatePPM))
	assert.LessOrEqual(t, rec.FeeRatePPM, int64(maxFeeRatePPM))
}

func TestRecommendFee_OversuppliedLocalBalanceLowersFee(t *testing.T) {
	snapshot := domain.NodeSnapshot{RoutingSuccessRate: 0.95, CentralityScore: 0.5}
	oversupplied := domain.ChannelState{CapacitySat: 1_000_000, LocalBalanceSat: 950_000, Policy: domain.FeePolicy{FeeRatePPM: 1000}}
	balanced := domain.ChannelState{CapacitySat: 1_000_000, LocalBalanceSat: 500_000, Policy: domain.FeePolicy{FeeRatePPM: 1000}}

	assert.Less(t, RecommendFee(oversupplied, snapshot).FeeRatePPM, RecommendFee(balanced, snapshot).FeeRatePPM)
}

func TestShouldUpdateFee_RequiresDeltaAndConfidence(t *testing.T) {
	rec := FeeRecommendation{FeeRatePPM: 600, Confidence: 0.9}
	assert.True(t, ShouldUpdateFee(rec, 1000, 0.6))   // 40% delta
	assert.False(t, ShouldUpdateFee(rec, 620, 0.6))   // <10% delta
	assert.False(t, ShouldUpdateFee(rec, 1000, 0.95)) // confidence below threshold
}
