// Package nodedata is the C1 typed client to the external Lightning node
// data provider: fetch_node_snapshot and fetch_channels (spec §4.1, §6).
// The provider authenticates via OAuth2 client credentials and may respond
// 429 with a Retry-After header, which callers must honor (spec §6).
package nodedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/feustey/mcp/internal/breaker"
	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/internal/retry"
	"github.com/feustey/mcp/pkg/adapters"
	"github.com/feustey/mcp/pkg/domain"
)

const target = "nodedata"

// Config configures the node-data provider client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
}

// Client is the node-data provider adapter.
type Client struct {
	base    adapters.Client
	http    *http.Client
	baseURL string
}

// New builds a Client, wiring an OAuth2 client-credentials token source so
// every request carries a fresh bearer token.
func New(cfg Config, breakers *breaker.Registry) *Client {
	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	return &Client{
		base:    adapters.NewClient(target, cfg.Timeout, breakers),
		http:    oauthCfg.Client(context.Background()),
		baseURL: cfg.BaseURL,
	}
}

type nodeSnapshotDTO struct {
	NodePubkey         string    `json:"node_pubkey"`
	CapturedAt         time.Time `json:"captured_at"`
	CapacitySat        int64     `json:"capacity_sat"`
	NumChannelsActive  int       `json:"num_channels_active"`
	NumChannelsTotal   int       `json:"num_channels_total"`
	LocalBalanceSat    int64     `json:"local_balance_sat"`
	RemoteBalanceSat   int64     `json:"remote_balance_sat"`
	CentralityScore    float64   `json:"centrality_score"`
	RoutingSuccessRate float64   `json:"routing_success_rate"`
	ReputationScore    float64   `json:"reputation_score"`
	UptimeRatio        float64   `json:"uptime_ratio"`
	AvgFeeRatePPM      float64   `json:"avg_fee_rate_ppm"`
	RevenueSatDaily    float64   `json:"revenue_sat_daily"`
}

// FetchNodeSnapshot retrieves a node's current operational snapshot.
func (c *Client) FetchNodeSnapshot(ctx context.Context, nodePubkey string) (domain.NodeSnapshot, error) {
	url := fmt.Sprintf("%s/v1/nodes/%s/snapshot", c.baseURL, nodePubkey)
	return adapters.Call(ctx, c.base, "fetch_node_snapshot", func(ctx context.Context) (domain.NodeSnapshot, error) {
		var dto nodeSnapshotDTO
		if err := c.getJSON(ctx, url, &dto); err != nil {
			return domain.NodeSnapshot{}, err
		}
		return domain.NodeSnapshot{
			NodePubkey:         dto.NodePubkey,
			CapturedAt:         dto.CapturedAt,
			CapacitySat:        dto.CapacitySat,
			NumChannelsActive:  dto.NumChannelsActive,
			NumChannelsTotal:   dto.NumChannelsTotal,
			LocalBalanceSat:    dto.LocalBalanceSat,
			RemoteBalanceSat:   dto.RemoteBalanceSat,
			CentralityScore:    dto.CentralityScore,
			RoutingSuccessRate: dto.RoutingSuccessRate,
			ReputationScore:    dto.ReputationScore,
			UptimeRatio:        dto.UptimeRatio,
			FeeStats: domain.FeeStats{
				AvgFeeRatePPM:   dto.AvgFeeRatePPM,
				RevenueSatDaily: dto.RevenueSatDaily,
			},
		}, nil
	})
}

type channelDTO struct {
	ChannelID       string    `json:"channel_id"`
	NodePubkey      string    `json:"node_pubkey"`
	PeerPubkey      string    `json:"peer_pubkey"`
	CapacitySat     int64     `json:"capacity_sat"`
	LocalBalanceSat int64     `json:"local_balance_sat"`
	Active          bool      `json:"active"`
	BaseFeeMsat     int64     `json:"base_fee_msat"`
	FeeRatePPM      int64     `json:"fee_rate_ppm"`
	TimeLockDelta   int32     `json:"time_lock_delta"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// FetchChannels retrieves every channel a node currently has open.
func (c *Client) FetchChannels(ctx context.Context, nodePubkey string) ([]domain.ChannelState, error) {
	url := fmt.Sprintf("%s/v1/nodes/%s/channels", c.baseURL, nodePubkey)
	return adapters.Call(ctx, c.base, "fetch_channels", func(ctx context.Context) ([]domain.ChannelState, error) {
		var dtos []channelDTO
		if err := c.getJSON(ctx, url, &dtos); err != nil {
			return nil, err
		}
		out := make([]domain.ChannelState, len(dtos))
		for i, d := range dtos {
			out[i] = domain.ChannelState{
				ChannelID:       d.ChannelID,
				NodePubkey:      d.NodePubkey,
				PeerPubkey:      d.PeerPubkey,
				CapacitySat:     d.CapacitySat,
				LocalBalanceSat: d.LocalBalanceSat,
				Active:          d.Active,
				Policy: domain.FeePolicy{
					BaseFeeMsat:   d.BaseFeeMsat,
					FeeRatePPM:    d.FeeRatePPM,
					TimeLockDelta: d.TimeLockDelta,
				},
				LastSeenAt: d.LastSeenAt,
			}
		}
		return out, nil
	})
}

// getJSON performs a GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mcperr.New(mcperr.Invalid, target, "build request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return mcperr.New(mcperr.Transient, target, "do request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		ra := retry.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return mcperr.NewRateLimited(target, "rate limited", ra, nil)
	}
	if resp.StatusCode == http.StatusNotFound {
		return mcperr.New(mcperr.NotFound, target, "not found", nil)
	}
	if resp.StatusCode >= 500 {
		return mcperr.New(mcperr.Transient, target, fmt.Sprintf("server error %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return mcperr.New(mcperr.Invalid, target, fmt.Sprintf("client error %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mcperr.New(mcperr.Transient, target, "read body", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return mcperr.New(mcperr.Invalid, target, "decode body", err)
	}
	return nil
}
