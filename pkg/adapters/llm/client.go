// Package llm is the C1 typed client to the external LLM provider used by
// the reasoning engine's "complete" operation (spec §4.1, §4.5).
package llm

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

const target = "llm"

// Config configures the LLM provider client.
type Config struct {
	BaseURL string
	APIKey  string
	ModelID string
	Timeout time.Duration
}

// Client is the LLM provider adapter.
type Client struct {
	base    adapters.Client
	http    *http.Client
	baseURL string
	apiKey  string
	modelID string
}

// New builds a Client.
func New(cfg Config, breakers *breaker.Registry) *Client {
	return &Client{
		base:    adapters.NewClient(target, cfg.Timeout, breakers),
		http:    &http.Client{},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		modelID: cfg.ModelID,
	}
}

// ModelID returns the configured model identifier; it participates in
// reasoning cache keys alongside the prompt template version (spec §4.5).
func (c *Client) ModelID() string {
	return c.modelID
}

// CompleteRequest is a single-turn completion request against a versioned
// prompt template (spec §4.5 "versioned prompt templates").
type CompleteRequest struct {
	TemplateVersion string  `json:"-"`
	Prompt          string  `json:"prompt"`
	MaxTokens       int     `json:"max_tokens"`
	Temperature     float64 `json:"temperature"`
}

type completionResponseDTO struct {
	Text string `json:"text"`
}

// Complete runs one completion call, returning the raw model output for the
// caller to schema-validate and parse.
func (c *Client) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	return adapters.Call(ctx, c.base, "complete", func(ctx context.Context) (string, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return "", mcperr.New(mcperr.Invalid, target, "marshal request", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completions", bytes.NewReader(body))
		if err != nil {
			return "", mcperr.New(mcperr.Invalid, target, "build request", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("X-Prompt-Template-Version", req.TemplateVersion)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return "", mcperr.New(mcperr.Transient, target, "do request", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", mcperr.New(mcperr.Transient, target, fmt.Sprintf("provider error %d", resp.StatusCode), nil)
		}
		if resp.StatusCode >= 400 {
			return "", mcperr.New(mcperr.Invalid, target, fmt.Sprintf("client error %d", resp.StatusCode), nil)
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", mcperr.New(mcperr.Transient, target, "read response body", err)
		}
		var dto completionResponseDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			return "", mcperr.New(mcperr.Invalid, target, "decode response body", err)
		}
		return dto.Text, nil
	})
}
