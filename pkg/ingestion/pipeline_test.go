package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHashID_StableAcrossReingestion(t *testing.T) {
	id1 := contentHashID("file:///a.txt", "hello world")
	id2 := contentHashID("file:///a.txt", "hello world")
	assert.Equal(t, id1, id2)

	id3 := contentHashID("file:///a.txt", "hello world!")
	assert.NotEqual(t, id1, id3)
}

func TestChunkID_StablePerOrdinalAndVersion(t *testing.T) {
	a := chunkID("doc1", "v1", 0)
	b := chunkID("doc1", "v1", 0)
	assert.Equal(t, a, b)

	c := chunkID("doc1", "v1", 1)
	assert.NotEqual(t, a, c)

	d := chunkID("doc1", "v2", 0)
	assert.NotEqual(t, a, d)
}
