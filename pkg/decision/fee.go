package decision

import "github.com/feustey/mcp/pkg/domain"

// minFeeRatePPM and maxFeeRatePPM bound every fee recommendation (spec
// §4.6).
const (
	minFeeRatePPM = 50.0
	maxFeeRatePPM = 2500.0
)

// FeeRecommendation is the target fee rate for one channel and the
// engine's confidence in it.
type FeeRecommendation struct {
	FeeRatePPM int64
	Confidence float64
}

// RecommendFee computes a target fee_rate_ppm as a function of observed
// routing success rate, local/remote balance ratio, the node's own
// centrality (snapshot.CentralityScore; the peer's centrality is not
// used), and historical revenue (spec §4.6). The exact weighting is this
// implementation's choice where the spec leaves the function
// unspecified; see the Open Question decisions in DESIGN.md.
func RecommendFee(channel domain.ChannelState, snapshot domain.NodeSnapshot) FeeRecommendation {
	current := float64(channel.Policy.FeeRatePPM)
	if current <= 0 {
		current = minFeeRatePPM
	}

	capacity := float64(channel.CapacitySat)
	if capacity <= 0 {
		capacity = 1
	}
	localRatio := float64(channel.LocalBalanceSat) / capacity

	// Negative when the channel is starved of local liquidity (raise the
	// fee to slow outbound drain); positive when oversupplied (lower the
	// fee to attract more outbound routing).
	imbalance := localRatio - 0.5
	friction := 1 - snapshot.RoutingSuccessRate
	centralityPremium := snapshot.CentralityScore - 0.5
	revenueSignal := 0.0
	if snapshot.FeeStats.RevenueSatDaily > 0 {
		revenueSignal = 0.1
	}

	multiplier := 1.0 - 0.6*imbalance - 0.4*friction + 0.3*centralityPremium + revenueSignal
	target := current * multiplier
	if target < minFeeRatePPM {
		target = minFeeRatePPM
	}
	if target > maxFeeRatePPM {
		target = maxFeeRatePPM
	}

	confidence := clamp(0.5+0.3*absf(imbalance)+0.2*(1-friction), 0, 1)

	return FeeRecommendation{FeeRatePPM: int64(target + 0.5), Confidence: confidence}
}

// ShouldUpdateFee reports whether rec differs enough from the channel's
// current policy, and with enough confidence, to produce an update_fee
// decision (spec §4.6 "|fee_rate_ppm' - current| / max(current,1) > 0.1
// AND confidence >= confidence_threshold").
func ShouldUpdateFee(rec FeeRecommendation, currentFeeRatePPM int64, confidenceThreshold float64) bool {
	denom := float64(currentFeeRatePPM)
	if denom < 1 {
		denom = 1
	}
	delta := absf(float64(rec.FeeRatePPM-currentFeeRatePPM)) / denom
	return delta > 0.1 && rec.Confidence >= confidenceThreshold
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
