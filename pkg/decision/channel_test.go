package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feustey/mcp/pkg/reasoning"
)

func TestRecommendChannels_FiltersBelowThresholdAndConnected(t *testing.T) {
	candidates := []reasoning.CandidatePeer{
		{Pubkey: "a", Score: 0.9},
		{Pubkey: "b", Score: 0.4},
		{Pubkey: "c", Score: 0.6},
	}
	connected := map[string]bool{"a": true}

	out := RecommendChannels(candidates, connected, 0.5, 3)
	assert.Len(t, out, 1)
	assert.Equal(t, "c", out[0].Pubkey)
}

func TestRecommendChannels_RanksByScoreDescendingAndCaps(t *testing.T) {
	candidates := []reasoning.CandidatePeer{
		{Pubkey: "a", Score: 0.6},
		{Pubkey: "b", Score: 0.9},
		{Pubkey: "c", Score: 0.7},
	}
	out := RecommendChannels(candidates, nil, 0.5, 2)
	assert.Equal(t, []string{"b", "c"}, []string{out[0].Pubkey, out[1].Pubkey})
}
