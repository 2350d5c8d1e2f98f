package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feustey/mcp/pkg/domain"
)

func TestBM25Rank_RanksMoreRelevantChunkHigher(t *testing.T) {
	corpus := []domain.Chunk{
		{ID: "c1", DocumentID: "d1", Ordinal: 0, Text: "lightning network routing fees and liquidity"},
		{ID: "c2", DocumentID: "d1", Ordinal: 1, Text: "a completely unrelated document about gardening"},
	}

	hits := bm25Rank("routing fees liquidity", corpus, 10)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c1", hits[0].chunk.ID)
}

func TestBM25Rank_EmptyQueryOrCorpus(t *testing.T) {
	assert.Empty(t, bm25Rank("", []domain.Chunk{{ID: "c1", Text: "text"}}, 10))
	assert.Empty(t, bm25Rank("query", nil, 10))
}

func TestBM25Rank_RespectsLimit(t *testing.T) {
	corpus := []domain.Chunk{
		{ID: "c1", Text: "alpha beta gamma"},
		{ID: "c2", Text: "alpha beta"},
		{ID: "c3", Text: "alpha"},
	}
	hits := bm25Rank("alpha beta gamma", corpus, 2)
	assert.Len(t, hits, 2)
}
