package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuse_CombinesRankedLists(t *testing.T) {
	resolve := func(id string) (string, int) {
		switch id {
		case "a":
			return "doc1", 0
		case "b":
			return "doc1", 1
		case "c":
			return "doc2", 0
		}
		return "", 0
	}

	fused := fuse([]rankedList{
		{chunkIDs: []string{"a", "b", "c"}, weight: 1},
		{chunkIDs: []string{"c", "a"}, weight: 1},
	}, 2, resolve)

	assert.Equal(t, []string{"a", "c"}, fused)
}

func TestFuse_TieBreaksByDocumentThenOrdinal(t *testing.T) {
	resolve := func(id string) (string, int) {
		switch id {
		case "x":
			return "docA", 1
		case "y":
			return "docA", 0
		}
		return "", 0
	}

	// each heads its own equally weighted list, so RRF scores tie and the
	// deterministic ordinal tie-break decides.
	fused := fuse([]rankedList{{chunkIDs: []string{"x"}, weight: 1}, {chunkIDs: []string{"y"}, weight: 1}}, 2, resolve)
	assert.Equal(t, []string{"y", "x"}, fused)
}

func TestFuse_RespectsK(t *testing.T) {
	resolve := func(id string) (string, int) { return id, 0 }
	fused := fuse([]rankedList{{chunkIDs: []string{"a", "b", "c", "d"}, weight: 1}}, 2, resolve)
	assert.Len(t, fused, 2)
}
