// Package retrieval implements the Retrieval Service (spec §4.4, C4):
// hybrid vector+lexical search fused by reciprocal rank fusion, with
// fingerprint-keyed caching over the current vector index alias.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/feustey/mcp/internal/store"
	"github.com/feustey/mcp/pkg/adapters/embedding"
	"github.com/feustey/mcp/pkg/adapters/kvcache"
	"github.com/feustey/mcp/pkg/adapters/vectorstore"
	"github.com/feustey/mcp/pkg/vectorindex"
)

const cacheName = "retrieval"

// DefaultCacheTTL is used when config doesn't override it (spec §4.4).
const DefaultCacheTTL = time.Hour

// Filters narrows candidate chunks (spec §4.4 "filters supports at minimum
// {type, related_node, language, created_after}").
type Filters = store.ChunkFilters

// Hit is one retrieved chunk with source metadata. Hits are ordered by
// fused rank; Score is the chunk's vector-search similarity and is 0 for a
// chunk found only by the lexical list.
type Hit struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// DefaultVectorWeight balances the vector and lexical result lists evenly
// when config doesn't override it (spec §4.4 is silent on the exact
// balance; an even split is this implementation's default).
const DefaultVectorWeight = 0.5

// Service is the Retrieval Service.
type Service struct {
	Store        *store.Store
	Embedding    *embedding.Client
	VectorStore  *vectorstore.Client
	KV           *kvcache.Client
	CacheTTL     time.Duration
	VectorWeight float64
}

// New builds a Service. vectorWeight in [0,1] controls how much the vector
// result list contributes to the fused ranking relative to the lexical
// (BM25) list; 0.5 weighs them evenly.
func New(st *store.Store, emb *embedding.Client, vs *vectorstore.Client, kv *kvcache.Client, cacheTTL time.Duration, vectorWeight float64) *Service {
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	if vectorWeight <= 0 {
		vectorWeight = DefaultVectorWeight
	}
	return &Service{Store: st, Embedding: emb, VectorStore: vs, KV: kv, CacheTTL: cacheTTL, VectorWeight: vectorWeight}
}

// Retrieve runs hybrid retrieval for query under filters, returning the top
// k fused hits (spec §4.4).
func (s *Service) Retrieve(ctx context.Context, query string, filters Filters, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}

	idx, err := s.Store.CurrentIndex(ctx, vectorindex.DefaultAlias)
	if err != nil {
		return nil, err
	}
	embedVersion := idx.EmbedVersion

	fp := fingerprint(query, embedVersion, filters, k)
	key := cacheKey(embedVersion, fp)
	if cached, hit, err := s.KV.Get(ctx, cacheName, key); err == nil && hit {
		var hits []Hit
		if jsonErr := json.Unmarshal([]byte(cached), &hits); jsonErr == nil {
			return hits, nil
		}
	}

	if strings.TrimSpace(query) == "" {
		return []Hit{}, nil
	}

	kVec := k * 3
	kLex := k * 3

	queryVectors, err := s.Embedding.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	vecHits, err := s.VectorStore.SearchVectors(ctx, idx.Name, queryVectors[0], kVec)
	if err != nil {
		return nil, err
	}
	vecIDs := make([]string, len(vecHits))
	for i, h := range vecHits {
		vecIDs[i] = h.ChunkID
	}

	candidates, err := s.Store.ChunksForLexicalCandidates(ctx, embedVersion, filters, 5000)
	if err != nil {
		return nil, err
	}
	lexHits := bm25Rank(query, candidates, kLex)
	lexIDs := make([]string, len(lexHits))
	byID := make(map[string]struct {
		DocumentID string
		Ordinal    int
		Text       string
	}, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = struct {
			DocumentID string
			Ordinal    int
			Text       string
		}{c.DocumentID, c.Ordinal, c.Text}
	}
	for i, h := range lexHits {
		lexIDs[i] = h.chunk.ID
		byID[h.chunk.ID] = struct {
			DocumentID string
			Ordinal    int
			Text       string
		}{h.chunk.DocumentID, h.chunk.Ordinal, h.chunk.Text}
	}

	missing := make([]string, 0)
	for _, id := range vecIDs {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		fetched, err := s.Store.GetChunksByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, c := range fetched {
			byID[c.ID] = struct {
				DocumentID string
				Ordinal    int
				Text       string
			}{c.DocumentID, c.Ordinal, c.Text}
		}
	}

	fusedIDs := fuse([]rankedList{
		{chunkIDs: vecIDs, weight: s.VectorWeight},
		{chunkIDs: lexIDs, weight: 1 - s.VectorWeight},
	}, k, func(chunkID string) (string, int) {
		meta := byID[chunkID]
		return meta.DocumentID, meta.Ordinal
	})

	vecScore := make(map[string]float64, len(vecHits))
	for _, h := range vecHits {
		vecScore[h.ChunkID] = h.Score
	}

	hits := make([]Hit, 0, len(fusedIDs))
	for _, id := range fusedIDs {
		meta, ok := byID[id]
		if !ok {
			continue
		}
		hits = append(hits, Hit{
			ChunkID:    id,
			DocumentID: meta.DocumentID,
			Ordinal:    meta.Ordinal,
			Text:       meta.Text,
			Score:      vecScore[id],
		})
	}

	if encoded, err := json.Marshal(hits); err == nil {
		_ = s.KV.Set(ctx, key, string(encoded), s.CacheTTL)
	}
	return hits, nil
}

func fingerprint(query, embedVersion string, filters Filters, k int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	payload := fmt.Sprintf("%s\x00%s\x00%s\x00%s\x00%s\x00%d\x00%d",
		normalized, embedVersion, filters.Type, filters.RelatedNode, filters.Language, filters.CreatedAfter.Unix(), k)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:16])
}

func cacheKey(embedVersion, fp string) string {
	return fmt.Sprintf("retrieval:embed_version=%s:fp=%s", embedVersion, fp)
}
