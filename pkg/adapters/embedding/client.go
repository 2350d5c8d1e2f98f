// Package embedding is the C1 typed client to the external embedding
// provider's "embed" operation (spec §4.1, §4.2, §4.4). Embeddings are
// tagged with a model id and version that participate in chunk/cache keys.
package embedding

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

const target = "embedding"

// Config configures the embedding provider client.
type Config struct {
	BaseURL string
	APIKey  string
	ModelID string
	Version string
	Timeout time.Duration
}

// Client is the embedding provider adapter.
type Client struct {
	base    adapters.Client
	http    *http.Client
	baseURL string
	apiKey  string
	modelID string
	version string
}

// New builds a Client.
func New(cfg Config, breakers *breaker.Registry) *Client {
	return &Client{
		base:    adapters.NewClient(target, cfg.Timeout, breakers),
		http:    &http.Client{},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		modelID: cfg.ModelID,
		version: cfg.Version,
	}
}

// ModelID returns the configured embedding model id.
func (c *Client) ModelID() string { return c.modelID }

// Version returns the configured embedding version, used to key chunks and
// the vector index they belong to.
func (c *Client) Version() string { return c.version }

type embedRequestDTO struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponseDTO struct {
	Vectors [][]float32 `json:"vectors"`
}

// Embed returns one vector per input text, in the same order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return adapters.Call(ctx, c.base, "embed", func(ctx context.Context) ([][]float32, error) {
		body, err := json.Marshal(embedRequestDTO{Model: c.modelID, Input: texts})
		if err != nil {
			return nil, mcperr.New(mcperr.Invalid, target, "marshal request", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, mcperr.New(mcperr.Invalid, target, "build request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, mcperr.New(mcperr.Transient, target, "do request", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, mcperr.New(mcperr.Transient, target, fmt.Sprintf("provider error %d", resp.StatusCode), nil)
		}
		if resp.StatusCode >= 400 {
			return nil, mcperr.New(mcperr.Invalid, target, fmt.Sprintf("client error %d", resp.StatusCode), nil)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, mcperr.New(mcperr.Transient, target, "read response body", err)
		}
		var dto embedResponseDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			return nil, mcperr.New(mcperr.Invalid, target, "decode response body", err)
		}
		if len(dto.Vectors) != len(texts) {
			return nil, mcperr.New(mcperr.Invalid, target, "vector count mismatch", nil)
		}
		return dto.Vectors, nil
	})
}
