// Package ingestion implements the Ingestion Pipeline (spec §4.2, C2):
// resolve a source into raw items, normalize into Documents with
// content-hash ids, chunk, embed, and upsert into the building vector
// index, with per-item failure tracking.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feustey/mcp/internal/retry"
	"github.com/feustey/mcp/internal/store"
	"github.com/feustey/mcp/internal/telemetry"
	"github.com/feustey/mcp/pkg/adapters/embedding"
	"github.com/feustey/mcp/pkg/adapters/vectorstore"
	"github.com/feustey/mcp/pkg/domain"
	"github.com/feustey/mcp/pkg/ingestion/source"
)

// MaxItemFailureRatio is the default share of failed items past which a job
// is marked failed rather than succeeded/partial (spec §4.2, overridable
// via config.LimitsConfig.MaxItemFailureRatio).
const MaxItemFailureRatio = 0.05

// Pipeline is the Ingestion Pipeline.
type Pipeline struct {
	Store               *store.Store
	Embedding           *embedding.Client
	VectorStore         *vectorstore.Client
	MaxItemFailureRatio float64
}

// New builds a Pipeline.
func New(st *store.Store, emb *embedding.Client, vs *vectorstore.Client, maxItemFailureRatio float64) *Pipeline {
	if maxItemFailureRatio <= 0 {
		maxItemFailureRatio = MaxItemFailureRatio
	}
	return &Pipeline{Store: st, Embedding: emb, VectorStore: vs, MaxItemFailureRatio: maxItemFailureRatio}
}

// Ingest resolves sourceURI, normalizes/chunks/embeds every item, and
// upserts the result into the vector index identified by buildingIndex
// (the shadow index a concurrent reindex is populating, or the ready index
// for steady-state incremental ingestion). Returns the job id immediately
// tracked results; this call runs synchronously to completion, the
// "JobId" is then used purely for status lookups (spec §4.2 is silent on
// whether ingest is async; a synchronous call with a durable job record
// satisfies both callers that poll and callers that don't).
func (p *Pipeline) Ingest(ctx context.Context, sourceURI, embedVersion, buildingIndex string) (string, error) {
	jobID := uuid.NewString()
	if err := p.Store.CreateJob(ctx, jobID, sourceURI); err != nil {
		return "", err
	}
	if err := p.Store.UpdateJobStatus(ctx, jobID, "running"); err != nil {
		return jobID, err
	}

	items, err := source.Resolve(ctx, sourceURI)
	if err != nil {
		_ = p.Store.CompleteJob(ctx, jobID, "failed", time.Now())
		telemetry.IngestionJobsTotal.WithLabelValues("failed").Inc()
		return jobID, err
	}

	total := 0
	failed := 0
	for _, item := range items {
		total++
		// Retriable errors re-queue the whole item up to retry.MaxAttempts
		// times, separate from the per-adapter-call retry inside ingestItem.
		_, err := retry.Do(ctx, "ingestion", "ingest item "+item.URI, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.ingestItem(ctx, item, embedVersion, buildingIndex)
		})
		if err != nil {
			failed++
			_ = p.Store.RecordItemOutcome(ctx, jobID, store.ItemOutcome{URI: item.URI, OK: false, Error: err.Error()})
			continue
		}
		_ = p.Store.RecordItemOutcome(ctx, jobID, store.ItemOutcome{URI: item.URI, OK: true})
	}

	status := "succeeded"
	ratio := 0.0
	if total > 0 {
		ratio = float64(failed) / float64(total)
	}
	if ratio > p.MaxItemFailureRatio {
		status = "failed"
	} else if failed > 0 {
		status = "partial"
	}
	telemetry.IngestionJobsTotal.WithLabelValues(status).Inc()
	if err := p.Store.CompleteJob(ctx, jobID, status, time.Now()); err != nil {
		return jobID, err
	}
	return jobID, nil
}

func (p *Pipeline) ingestItem(ctx context.Context, item source.Item, embedVersion, buildingIndex string) error {
	docID := contentHashID(item.URI, item.Content)
	doc := domain.Document{
		ID:        docID,
		SourceURI: item.URI,
		Content:   item.Content,
		Metadata: domain.DocumentMetadata{
			Type:      item.ContentType,
			CreatedAt: time.Now().UTC(),
		},
	}
	if err := p.Store.UpsertDocument(ctx, doc); err != nil {
		return err
	}

	texts := chunkText(item.Content)
	if len(texts) == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:           chunkID(docID, embedVersion, i),
			DocumentID:   docID,
			Ordinal:      i,
			Text:         text,
			TokenCount:   approxTokenCount(text),
			EmbedVersion: embedVersion,
		}
	}

	vectors, err := p.Embedding.Embed(ctx, texts)
	if err != nil {
		return err
	}

	if err := p.Store.ReplaceChunks(ctx, docID, embedVersion, chunks); err != nil {
		return err
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		emb := domain.Embedding{ChunkID: c.ID, ModelID: p.Embedding.ModelID(), Version: embedVersion, Vector: vectors[i]}
		if err := p.Store.UpsertEmbedding(ctx, emb); err != nil {
			return err
		}
		points[i] = vectorstore.Point{ChunkID: c.ID, Vector: vectors[i]}
	}

	if err := p.VectorStore.UpsertVectors(ctx, buildingIndex, points); err != nil {
		return err
	}
	return nil
}

// Status returns a job's current status for the §6 ingest-status contract.
func (p *Pipeline) Status(ctx context.Context, jobID string) (store.JobStatus, error) {
	return p.Store.GetJobStatus(ctx, jobID)
}

func contentHashID(sourceURI, content string) string {
	sum := sha256.Sum256([]byte(sourceURI + "\x00" + content))
	return hex.EncodeToString(sum[:16])
}

func chunkID(documentID, embedVersion string, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d", documentID, embedVersion, ordinal)))
	return hex.EncodeToString(sum[:16])
}
