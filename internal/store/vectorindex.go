package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/pkg/domain"
)

// CreateIndex registers a new vector index row in the building state (spec
// §4.3 begin_reindex).
func (s *Store) CreateIndex(ctx context.Context, idx domain.VectorIndex) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO vector_indexes (name, embed_version, state, created_at)
		VALUES ($1, $2, $3, $4)`,
		idx.Name, idx.EmbedVersion, idx.State, idx.CreatedAt)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.vectorindex", "create index", err)
	}
	return nil
}

// SetIndexState transitions an index's lifecycle state (building/ready/retired).
func (s *Store) SetIndexState(ctx context.Context, name string, state domain.IndexState) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE vector_indexes SET state = $2 WHERE name = $1`, name, state)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.vectorindex", "set index state", err)
	}
	if tag.RowsAffected() == 0 {
		return mcperr.New(mcperr.NotFound, "store.vectorindex", "index "+name+" not found", nil)
	}
	return nil
}

// SwapAlias atomically repoints alias to index, making the cutover in a
// single transaction so readers never observe a missing alias (spec §4.3
// finalize's "atomic alias swap").
func (s *Store) SwapAlias(ctx context.Context, alias, index string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.vectorindex", "begin alias swap", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO vector_aliases (alias_name, index_name) VALUES ($1, $2)
		ON CONFLICT (alias_name) DO UPDATE SET index_name = EXCLUDED.index_name`, alias, index)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.vectorindex", "upsert alias", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mcperr.New(mcperr.Transient, "store.vectorindex", "commit alias swap", err)
	}
	return nil
}

// CurrentIndex resolves the index currently behind alias.
func (s *Store) CurrentIndex(ctx context.Context, alias string) (domain.VectorIndex, error) {
	var idx domain.VectorIndex
	err := s.Pool.QueryRow(ctx, `
		SELECT vi.name, vi.embed_version, vi.state, vi.created_at
		FROM vector_aliases va JOIN vector_indexes vi ON vi.name = va.index_name
		WHERE va.alias_name = $1`, alias).
		Scan(&idx.Name, &idx.EmbedVersion, &idx.State, &idx.CreatedAt)
	if err == pgx.ErrNoRows {
		return domain.VectorIndex{}, mcperr.New(mcperr.NotFound, "store.vectorindex", "alias "+alias+" has no index", nil)
	}
	if err != nil {
		return domain.VectorIndex{}, mcperr.New(mcperr.Transient, "store.vectorindex", "resolve alias", err)
	}
	return idx, nil
}
