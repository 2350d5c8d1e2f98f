package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	assert.Empty(t, chunkText(""))
	assert.Empty(t, chunkText("   "))
}

func TestChunkText_SingleShortChunk(t *testing.T) {
	text := "a short document with few words."
	chunks := chunkText(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkText_OverlapBetweenWindows(t *testing.T) {
	words := make([]string, 0, 2000)
	for i := 0; i < 2000; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	chunks := chunkText(text)
	require.Greater(t, len(chunks), 1)

	total := 0
	for _, c := range chunks {
		n := approxTokenCount(c)
		assert.LessOrEqual(t, n, targetTokens)
		total += n
	}
	// overlapping windows repeat words, so the chunks hold more words in
	// total than the source text.
	assert.Greater(t, total, len(words))
}

func TestChunkText_PrefersSentenceBoundary(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 650; i++ {
		sb.WriteString("word ")
	}
	sb.WriteString("end.")
	for i := 0; i < 300; i++ {
		sb.WriteString(" word")
	}
	text := sb.String()

	chunks := chunkText(text)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(chunks[0]), "end."))
}

func TestApproxTokenCount(t *testing.T) {
	assert.Equal(t, 3, approxTokenCount("one two three"))
	assert.Equal(t, 0, approxTokenCount(""))
}
