package decision

import (
	"sort"

	"github.com/feustey/mcp/pkg/reasoning"
)

// DefaultOpenCapacitySat is the channel size proposed for a new peer when
// the reasoning output doesn't suggest one; a fuller implementation would
// size this from the peer's own capacity_sat (not modeled here).
const DefaultOpenCapacitySat = 2_000_000

// RecommendChannels keeps candidate peers scoring at or above
// peerScoreThreshold that aren't already connected, ranks them by
// score_peer descending, and caps the result at maxOpenPerRun (spec
// §4.6).
func RecommendChannels(candidates []reasoning.CandidatePeer, connectedPeers map[string]bool, peerScoreThreshold float64, maxOpenPerRun int) []reasoning.CandidatePeer {
	eligible := make([]reasoning.CandidatePeer, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < peerScoreThreshold {
			continue
		}
		if connectedPeers[c.Pubkey] {
			continue
		}
		eligible = append(eligible, c)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Score > eligible[j].Score
	})

	if maxOpenPerRun >= 0 && len(eligible) > maxOpenPerRun {
		eligible = eligible[:maxOpenPerRun]
	}
	return eligible
}
