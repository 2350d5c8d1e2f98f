// Package nodectl is the C1 typed client to the node-control daemon: the
// operations that actually mutate channel state (open_channel,
// close_channel, update_policy, spec §4.1/§6). Every call is keyed by the
// owning Decision's id so a retried call is a no-op at the daemon, not a
// double action.
package nodectl

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
	"github.com/feustey/mcp/pkg/domain"
)

const target = "nodectl"

// Config configures the node-control daemon client.
type Config struct {
	Addr    string
	Timeout time.Duration
}

// Client is the node-control daemon adapter.
type Client struct {
	base adapters.Client
	http *http.Client
	addr string
}

// New builds a Client.
func New(cfg Config, breakers *breaker.Registry) *Client {
	return &Client{
		base: adapters.NewClient(target, cfg.Timeout, breakers),
		http: &http.Client{},
		addr: cfg.Addr,
	}
}

// OpenChannelRequest is the daemon's open_channel payload.
type OpenChannelRequest struct {
	DecisionID  string `json:"decision_id"`
	PeerPubkey  string `json:"peer_pubkey"`
	CapacitySat int64  `json:"capacity_sat"`
}

// OpenChannelResult is the daemon's open_channel response.
type OpenChannelResult struct {
	ChannelID string `json:"channel_id"`
	TxID      string `json:"tx_id"`
}

// OpenChannel opens a new channel. decisionID is the idempotency key: a
// retried call with the same decisionID returns the original result.
func (c *Client) OpenChannel(ctx context.Context, req OpenChannelRequest) (OpenChannelResult, error) {
	return adapters.Call(ctx, c.base, "open_channel", func(ctx context.Context) (OpenChannelResult, error) {
		var out OpenChannelResult
		err := c.postJSON(ctx, "/v1/channels/open", req, &out)
		return out, err
	})
}

// CloseChannelRequest is the daemon's close_channel payload.
type CloseChannelRequest struct {
	DecisionID string `json:"decision_id"`
	ChannelID  string `json:"channel_id"`
	Force      bool   `json:"force"`
}

// CloseChannelResult is the daemon's close_channel response.
type CloseChannelResult struct {
	ClosingTxID string `json:"closing_tx_id"`
}

// CloseChannel closes an existing channel, idempotent on decisionID.
func (c *Client) CloseChannel(ctx context.Context, req CloseChannelRequest) (CloseChannelResult, error) {
	return adapters.Call(ctx, c.base, "close_channel", func(ctx context.Context) (CloseChannelResult, error) {
		var out CloseChannelResult
		err := c.postJSON(ctx, "/v1/channels/close", req, &out)
		return out, err
	})
}

// UpdatePolicyRequest is the daemon's update_policy (apply_policy) payload.
type UpdatePolicyRequest struct {
	DecisionID string           `json:"decision_id"`
	ChannelID  string           `json:"channel_id"`
	Policy     domain.FeePolicy `json:"policy"`
}

// UpdatePolicy applies a new fee policy to a channel, idempotent on decisionID.
func (c *Client) UpdatePolicy(ctx context.Context, req UpdatePolicyRequest) error {
	_, err := adapters.Call(ctx, c.base, "update_policy", func(ctx context.Context) (struct{}, error) {
		var out struct{}
		return out, c.postJSON(ctx, "/v1/channels/policy", req, &out)
	})
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return mcperr.New(mcperr.Invalid, target, "marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.addr+path, bytes.NewReader(body))
	if err != nil {
		return mcperr.New(mcperr.Invalid, target, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return mcperr.New(mcperr.Transient, target, "do request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return mcperr.New(mcperr.Conflict, target, "conflicting channel state", nil)
	case resp.StatusCode == http.StatusNotFound:
		return mcperr.New(mcperr.NotFound, target, "channel not found", nil)
	case resp.StatusCode >= 500:
		return mcperr.New(mcperr.Transient, target, fmt.Sprintf("server error %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return mcperr.New(mcperr.Invalid, target, fmt.Sprintf("client error %d", resp.StatusCode), nil)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return mcperr.New(mcperr.Transient, target, "read response body", err)
	}
	if len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return mcperr.New(mcperr.Invalid, target, "decode response body", err)
	}
	return nil
}
