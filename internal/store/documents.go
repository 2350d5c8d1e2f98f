package store

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/pkg/domain"
)

// ChunkFilters narrows the lexical-candidate scan (spec §4.4 "filters
// supports at minimum {type, related_node, language, created_after}").
type ChunkFilters struct {
	Type         string    `json:"type,omitempty"`
	RelatedNode  string    `json:"related_node,omitempty"`
	Language     string    `json:"language,omitempty"`
	CreatedAfter time.Time `json:"created_after,omitempty"`
}

// UpsertDocument stores a document, keyed by its content-hash id (spec §3
// Document.id is deterministic, so this is idempotent).
func (s *Store) UpsertDocument(ctx context.Context, d domain.Document) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO documents (id, source_uri, content, doc_type, related_node, language, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			source_uri = EXCLUDED.source_uri,
			content = EXCLUDED.content`,
		d.ID, d.SourceURI, d.Content, d.Metadata.Type, d.Metadata.RelatedNode, d.Metadata.Language, d.Metadata.CreatedAt)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.documents", "upsert document", err)
	}
	return nil
}

// GetDocument fetches a document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	var d domain.Document
	err := s.Pool.QueryRow(ctx, `
		SELECT id, source_uri, content, doc_type, related_node, language, created_at
		FROM documents WHERE id = $1`, id).
		Scan(&d.ID, &d.SourceURI, &d.Content, &d.Metadata.Type, &d.Metadata.RelatedNode, &d.Metadata.Language, &d.Metadata.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.Document{}, mcperr.New(mcperr.NotFound, "store.documents", "document "+id+" not found", nil)
	}
	if err != nil {
		return domain.Document{}, mcperr.New(mcperr.Transient, "store.documents", "get document", err)
	}
	return d, nil
}

// ReplaceChunks deletes any existing chunks (and their embeddings) for
// documentID under embedVersion and inserts the new set in a transaction,
// so a re-ingest never leaves a mixed old/new chunk set visible.
func (s *Store) ReplaceChunks(ctx context.Context, documentID, embedVersion string, chunks []domain.Chunk) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.chunks", "begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM embeddings WHERE chunk_id IN (
			SELECT id FROM chunks WHERE document_id = $1 AND embed_version = $2)`,
		documentID, embedVersion); err != nil {
		return mcperr.New(mcperr.Transient, "store.chunks", "delete old embeddings", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1 AND embed_version = $2`,
		documentID, embedVersion); err != nil {
		return mcperr.New(mcperr.Transient, "store.chunks", "delete old chunks", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (id, document_id, ordinal, text, token_count, embed_version)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, token_count = EXCLUDED.token_count`,
			c.ID, c.DocumentID, c.Ordinal, c.Text, c.TokenCount, c.EmbedVersion)
	}
	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return mcperr.New(mcperr.Transient, "store.chunks", "insert chunk", err)
		}
	}
	if err := br.Close(); err != nil {
		return mcperr.New(mcperr.Transient, "store.chunks", "close batch", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mcperr.New(mcperr.Transient, "store.chunks", "commit tx", err)
	}
	return nil
}

// UpsertEmbedding stores a chunk's embedding vector.
func (s *Store) UpsertEmbedding(ctx context.Context, e domain.Embedding) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO embeddings (chunk_id, model_id, embed_version, vector)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chunk_id, embed_version) DO UPDATE SET vector = EXCLUDED.vector, model_id = EXCLUDED.model_id`,
		e.ChunkID, e.ModelID, e.Version, EncodeVector(e.Vector))
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.embeddings", "upsert embedding", err)
	}
	return nil
}

// ChunksByEmbedVersion returns every chunk/embedding pair stored for
// embedVersion.
func (s *Store) ChunksByEmbedVersion(ctx context.Context, embedVersion string) ([]domain.Chunk, []domain.Embedding, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT c.id, c.document_id, c.ordinal, c.text, c.token_count, c.embed_version, e.model_id, e.vector
		FROM chunks c
		JOIN embeddings e ON e.chunk_id = c.id AND e.embed_version = c.embed_version
		WHERE c.embed_version = $1
		ORDER BY c.document_id, c.ordinal`, embedVersion)
	if err != nil {
		return nil, nil, mcperr.New(mcperr.Transient, "store.chunks", "scan chunks by embed version", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	var embeddings []domain.Embedding
	for rows.Next() {
		var c domain.Chunk
		var e domain.Embedding
		var raw []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Text, &c.TokenCount, &c.EmbedVersion, &e.ModelID, &raw); err != nil {
			return nil, nil, mcperr.New(mcperr.Transient, "store.chunks", "scan row", err)
		}
		e.ChunkID = c.ID
		e.Version = c.EmbedVersion
		e.Vector = DecodeVector(raw)
		chunks = append(chunks, c)
		embeddings = append(embeddings, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, mcperr.New(mcperr.Transient, "store.chunks", "iterate rows", err)
	}
	return chunks, embeddings, nil
}

// ChunksForLexicalCandidates scans chunks under embedVersion joined to
// their document's metadata, applying filters, for the lexical half of
// hybrid retrieval (spec §4.4 step 5). This is a full scan bounded by
// limit; a production deployment would back this with the document
// store's own full-text index instead (spec §9 Open Question: lexical
// scoring function left to the implementer).
func (s *Store) ChunksForLexicalCandidates(ctx context.Context, embedVersion string, f ChunkFilters, limit int) ([]domain.Chunk, error) {
	query := `
		SELECT c.id, c.document_id, c.ordinal, c.text, c.token_count, c.embed_version
		FROM chunks c JOIN documents d ON d.id = c.document_id
		WHERE c.embed_version = $1
		  AND ($2 = '' OR d.doc_type = $2)
		  AND ($3 = '' OR d.related_node = $3)
		  AND ($4 = '' OR d.language = $4)
		  AND ($5::timestamptz IS NULL OR d.created_at > $5)
		ORDER BY c.document_id, c.ordinal
		LIMIT $6`
	var createdAfter *time.Time
	if !f.CreatedAfter.IsZero() {
		createdAfter = &f.CreatedAfter
	}
	rows, err := s.Pool.Query(ctx, query, embedVersion, f.Type, f.RelatedNode, f.Language, createdAfter, limit)
	if err != nil {
		return nil, mcperr.New(mcperr.Transient, "store.chunks", "scan lexical candidates", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Text, &c.TokenCount, &c.EmbedVersion); err != nil {
			return nil, mcperr.New(mcperr.Transient, "store.chunks", "scan lexical candidate row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChunksByIDs fetches chunks by id, in no particular order.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, document_id, ordinal, text, token_count, embed_version
		FROM chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, mcperr.New(mcperr.Transient, "store.chunks", "scan chunks by id", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Ordinal, &c.Text, &c.TokenCount, &c.EmbedVersion); err != nil {
			return nil, mcperr.New(mcperr.Transient, "store.chunks", "scan chunk by id row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// EncodeVector packs a float32 vector into big-endian bytes for BYTEA
// storage; pgvector isn't assumed to be installed (spec §9 Open Question:
// vector storage backend is pluggable).
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[i*4:]))
	}
	return v
}
