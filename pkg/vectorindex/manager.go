// Package vectorindex implements the Vector Index Manager (spec §4.3, C3):
// two physical indexes behind one logical alias, atomic alias swap, and
// cache invalidation on swap.
package vectorindex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/internal/store"
	"github.com/feustey/mcp/pkg/adapters/kvcache"
	"github.com/feustey/mcp/pkg/adapters/vectorstore"
	"github.com/feustey/mcp/pkg/domain"
)

// DefaultAlias is the logical index name the rest of the system queries
// (spec §3 Alias). A real deployment may run more than one alias (e.g. per
// embedding model); MCP runs a single one.
const DefaultAlias = "docs"

// Manager is the Vector Index Manager.
type Manager struct {
	Store       *store.Store
	VectorStore *vectorstore.Client
	KV          *kvcache.Client
	Dim         int
}

// New builds a Manager.
func New(st *store.Store, vs *vectorstore.Client, kv *kvcache.Client, dim int) *Manager {
	return &Manager{Store: st, VectorStore: vs, KV: kv, Dim: dim}
}

// BeginReindex provisions a new building index for embedVersion (the
// "shadow index" ingestion populates while the alias still serves the
// previous one).
func (m *Manager) BeginReindex(ctx context.Context, embedVersion string) (string, error) {
	name := fmt.Sprintf("%s_%s_%s", DefaultAlias, embedVersion, uuid.NewString()[:8])

	if err := m.VectorStore.CreateCollection(ctx, name, m.Dim); err != nil {
		return "", err
	}
	idx := domain.VectorIndex{
		Name:         name,
		EmbedVersion: embedVersion,
		State:        domain.IndexBuilding,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.Store.CreateIndex(ctx, idx); err != nil {
		return "", err
	}
	return name, nil
}

// Finalize, in order, (a) marks indexName ready, (b) flips the alias
// pointer, (c) marks the previous index retired, (d) invalidates caches
// keyed by the previous embed_version (spec §4.3). Each alias flip is
// atomic on its own, but the steps are separate calls: a failure part-way
// returns the error and leaves the earlier steps applied.
func (m *Manager) Finalize(ctx context.Context, indexName string) error {
	var previous domain.VectorIndex
	prev, err := m.Store.CurrentIndex(ctx, DefaultAlias)
	if err != nil && mcperr.Of(err) != mcperr.NotFound {
		return err
	}
	if err == nil {
		previous = prev
	}

	if err := m.Store.SetIndexState(ctx, indexName, domain.IndexReady); err != nil {
		return err
	}
	if err := m.VectorStore.SwapAlias(ctx, DefaultAlias, indexName); err != nil {
		return err
	}
	if err := m.Store.SwapAlias(ctx, DefaultAlias, indexName); err != nil {
		return err
	}

	if previous.Name != "" && previous.Name != indexName {
		if err := m.Store.SetIndexState(ctx, previous.Name, domain.IndexRetired); err != nil {
			return err
		}
		pattern := fmt.Sprintf("*embed_version=%s*", previous.EmbedVersion)
		if _, err := m.KV.InvalidatePattern(ctx, pattern); err != nil {
			return err
		}
	}
	return nil
}

// Abort drops a building index without touching the alias.
func (m *Manager) Abort(ctx context.Context, indexName string) error {
	if err := m.VectorStore.DropCollection(ctx, indexName); err != nil {
		return err
	}
	return m.Store.SetIndexState(ctx, indexName, domain.IndexRetired)
}

// Current resolves the index currently behind alias.
func (m *Manager) Current(ctx context.Context, alias string) (string, error) {
	idx, err := m.Store.CurrentIndex(ctx, alias)
	if err != nil {
		return "", err
	}
	return idx.Name, nil
}
