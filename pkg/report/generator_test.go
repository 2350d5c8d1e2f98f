package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feustey/mcp/pkg/domain"
	"github.com/feustey/mcp/pkg/reasoning"
)

func TestTaskQuery_VariesByTask(t *testing.T) {
	snapshot := domain.NodeSnapshot{RoutingSuccessRate: 0.75}

	daily := taskQuery(reasoning.TaskDailyReport, snapshot)
	fee := taskQuery(reasoning.TaskFeeRecommendation, snapshot)
	channel := taskQuery(reasoning.TaskChannelRecommendation, snapshot)

	assert.NotEqual(t, daily, fee)
	assert.NotEqual(t, fee, channel)
	assert.Contains(t, fee, "0.75")
}

func TestAssembleSections_CountsActiveChannelsAndBalances(t *testing.T) {
	snapshot := domain.NodeSnapshot{RoutingSuccessRate: 0.9, CentralityScore: 0.5, UptimeRatio: 0.99}
	channels := []domain.ChannelState{
		{Active: true, CapacitySat: 1000, LocalBalanceSat: 600},
		{Active: false, CapacitySat: 500, LocalBalanceSat: 100},
	}
	dailyOut := reasoning.Output{Summary: "all good"}
	feeOut := reasoning.Output{Summary: "hold fees steady", RecommendedFeeRatePPM: 250, Confidence: 0.7}

	sections := assembleSections(snapshot, channels, dailyOut, feeOut)
	require := func(cond bool) {
		if !cond {
			t.Fatal("expected condition")
		}
	}
	require(len(sections) == 5)
	assert.Equal(t, "health_summary", sections[0].Title)
	assert.Contains(t, sections[1].Body, "local=700")
	assert.Contains(t, sections[1].Body, "1 active channels")
}

func TestSummarizeDecisions_CountsByType(t *testing.T) {
	decisions := []domain.Decision{
		{Type: domain.DecisionUpdateFee},
		{Type: domain.DecisionUpdateFee},
		{Type: domain.DecisionOpenChannel},
		{Type: domain.DecisionNoop},
	}
	summary := summarizeDecisions(decisions)
	assert.Equal(t, "open_channel=1 close_channel=0 update_fee=2 noop=1", summary)
}
