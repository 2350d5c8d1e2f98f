// Package vectorstore is the C1 typed client to the external vector
// database: upsert_vectors, search_vectors, and the alias operations the
// vector index manager uses for zero-downtime reindex (spec §4.1, §4.3).
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/feustey/mcp/internal/breaker"
	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/pkg/adapters"
)

const target = "vectorstore"

// Config configures the vector store client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is the vector store adapter.
type Client struct {
	base    adapters.Client
	http    *http.Client
	baseURL string
}

// New builds a Client.
func New(cfg Config, breakers *breaker.Registry) *Client {
	return &Client{
		base:    adapters.NewClient(target, cfg.Timeout, breakers),
		http:    &http.Client{},
		baseURL: cfg.BaseURL,
	}
}

// Point is one vector plus its chunk id, as stored in the index.
type Point struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
}

// CreateCollection provisions a new physical index (spec §4.3 begin_reindex).
func (c *Client) CreateCollection(ctx context.Context, name string, dim int) error {
	_, err := adapters.Call(ctx, c.base, "create_collection", func(ctx context.Context) (struct{}, error) {
		var out struct{}
		return out, c.postJSON(ctx, "/collections/"+name, map[string]any{"dim": dim}, &out)
	})
	return err
}

// UpsertVectors writes points into collection, batched by the caller.
func (c *Client) UpsertVectors(ctx context.Context, collection string, points []Point) error {
	_, err := adapters.Call(ctx, c.base, "upsert_vectors", func(ctx context.Context) (struct{}, error) {
		var out struct{}
		return out, c.postJSON(ctx, "/collections/"+collection+"/points", map[string]any{"points": points}, &out)
	})
	return err
}

// Hit is a single search_vectors result.
type Hit struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}

// SearchVectors runs a k-NN search against collection.
func (c *Client) SearchVectors(ctx context.Context, collection string, query []float32, k int) ([]Hit, error) {
	return adapters.Call(ctx, c.base, "search_vectors", func(ctx context.Context) ([]Hit, error) {
		var out struct {
			Hits []Hit `json:"hits"`
		}
		err := c.postJSON(ctx, "/collections/"+collection+"/search", map[string]any{"vector": query, "k": k}, &out)
		return out.Hits, err
	})
}

// SwapAlias atomically repoints alias to collection at the vector store
// (spec §4.3 finalize). The store-side catalog in internal/store mirrors
// this for lookups that don't need to hit the vector store.
func (c *Client) SwapAlias(ctx context.Context, alias, collection string) error {
	_, err := adapters.Call(ctx, c.base, "swap_alias", func(ctx context.Context) (struct{}, error) {
		var out struct{}
		return out, c.postJSON(ctx, "/aliases/"+alias, map[string]any{"collection": collection}, &out)
	})
	return err
}

// DropCollection removes a retired index (spec §4.3 abort/garbage collection).
func (c *Client) DropCollection(ctx context.Context, name string) error {
	_, err := adapters.Call(ctx, c.base, "drop_collection", func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/collections/"+name, nil)
		if err != nil {
			return struct{}{}, mcperr.New(mcperr.Invalid, target, "build request", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, mcperr.New(mcperr.Transient, target, "do request", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return struct{}{}, mcperr.New(mcperr.Transient, target, fmt.Sprintf("server error %d", resp.StatusCode), nil)
		}
		if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
			return struct{}{}, mcperr.New(mcperr.Invalid, target, fmt.Sprintf("client error %d", resp.StatusCode), nil)
		}
		return struct{}{}, nil
	})
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return mcperr.New(mcperr.Invalid, target, "marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return mcperr.New(mcperr.Invalid, target, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return mcperr.New(mcperr.Transient, target, "do request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return mcperr.New(mcperr.Transient, target, fmt.Sprintf("server error %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return mcperr.New(mcperr.Invalid, target, fmt.Sprintf("client error %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return mcperr.New(mcperr.Transient, target, "read response body", err)
	}
	if len(raw) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return mcperr.New(mcperr.Invalid, target, "decode response body", err)
	}
	return nil
}
