package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feustey/mcp/pkg/domain"
	"github.com/feustey/mcp/pkg/retrieval"
)

func TestParseOutput_ParsesWellFormedJSON(t *testing.T) {
	text := `here is the result:
{"summary": "ok", "recommended_fee_rate_ppm": 120, "confidence": 0.8, "candidate_peers": [{"pubkey": "abc", "score": 0.9}]}
thanks`

	out, err := parseOutput(text)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Summary)
	assert.Equal(t, int64(120), out.RecommendedFeeRatePPM)
	assert.InDelta(t, 0.8, out.Confidence, 0.0001)
	require.Len(t, out.CandidatePeers, 1)
	assert.Equal(t, "abc", out.CandidatePeers[0].Pubkey)
}

func TestParseOutput_NoJSONObjectFails(t *testing.T) {
	_, err := parseOutput("no object here")
	assert.Error(t, err)
}

func TestBuildPrompt_IncludesSnapshotAndContext(t *testing.T) {
	snapshot := domain.NodeSnapshot{NodePubkey: "node1"}
	hits := []retrieval.Hit{{ChunkID: "c1", DocumentID: "d1", Ordinal: 0, Text: "routing fee context"}}

	prompt := buildPrompt(snapshot, hits, TaskFeeRecommendation)
	assert.Contains(t, prompt, "node1")
	assert.Contains(t, prompt, "routing fee context")
	assert.Contains(t, prompt, "recommended_fee_rate_ppm")
}

func TestBuildPrompt_NoHitsUsesPlaceholder(t *testing.T) {
	snapshot := domain.NodeSnapshot{NodePubkey: "node1"}
	prompt := buildPrompt(snapshot, nil, TaskDailyReport)
	assert.Contains(t, prompt, "no context retrieved")
}

func TestFingerprint_StableForSameInputsDiffersOnTask(t *testing.T) {
	snapshot := domain.NodeSnapshot{NodePubkey: "node1"}
	hits := []retrieval.Hit{{ChunkID: "c1"}, {ChunkID: "c2"}}

	fp1 := fingerprint(snapshot, hits, TaskDailyReport)
	fp2 := fingerprint(snapshot, hits, TaskDailyReport)
	fp3 := fingerprint(snapshot, hits, TaskFeeRecommendation)

	assert.Equal(t, fp1, fp2)
	assert.NotEqual(t, fp1, fp3)
}

func TestCacheKey_EmbedsModelAndPromptVersion(t *testing.T) {
	key := cacheKey("fp123", "model-x", "v1")
	assert.Equal(t, "reasoning:model=model-x:prompt_version=v1:fp=fp123", key)
}
