package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feustey/mcp/internal/config"
	"github.com/feustey/mcp/pkg/domain"
	"github.com/feustey/mcp/pkg/reasoning"
)

func testEngine() *Engine {
	return &Engine{
		Weights: defaultWeights(),
		Limits: config.LimitsConfig{
			MaxOpenPerRun:       3,
			PerNodeConcurrency:  4,
			ConfidenceThreshold: 0.6,
			PeerScoreThreshold:  0.5,
		},
	}
}

func TestPropose_EmptyInputsProducesNoop(t *testing.T) {
	e := testEngine()
	snapshot := domain.NodeSnapshot{NodePubkey: "node1"}

	decisions := e.propose("run1", snapshot, nil, nil, reasoning.Output{}, time.Unix(0, 0))
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.DecisionNoop, decisions[0].Type)
}

func TestPropose_ProducesFeeUpdateWhenThresholdCrossed(t *testing.T) {
	e := testEngine()
	snapshot := domain.NodeSnapshot{NodePubkey: "node1", RoutingSuccessRate: 0.2, CentralityScore: 0.1}
	channels := []domain.ChannelState{{
		ChannelID:       "ch1",
		NodePubkey:      "node1",
		PeerPubkey:      "peerA",
		Active:          true,
		CapacitySat:     1_000_000,
		LocalBalanceSat: 950_000,
		Policy:          domain.FeePolicy{FeeRatePPM: 1000},
	}}

	decisions := e.propose("run1", snapshot, channels, nil, reasoning.Output{}, time.Unix(0, 0))
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.DecisionUpdateFee, decisions[0].Type)
	assert.Equal(t, "ch1", decisions[0].ChannelID)
}

func TestPropose_ProducesOpenChannelForEligiblePeers(t *testing.T) {
	e := testEngine()
	snapshot := domain.NodeSnapshot{NodePubkey: "node1"}
	reasoningOut := reasoning.Output{CandidatePeers: []reasoning.CandidatePeer{{Pubkey: "peerX", Score: 0.8}}}

	decisions := e.propose("run1", snapshot, nil, nil, reasoningOut, time.Unix(0, 0))
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.DecisionOpenChannel, decisions[0].Type)
	assert.Equal(t, "peerX", decisions[0].Payload["peer_pubkey"])
}

func TestDeterministicID_StableAndTypeSensitive(t *testing.T) {
	id1 := deterministicID("run1", "node1", "ch1", string(domain.DecisionUpdateFee))
	id2 := deterministicID("run1", "node1", "ch1", string(domain.DecisionUpdateFee))
	id3 := deterministicID("run1", "node1", "ch1", string(domain.DecisionCloseChannel))

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}
