package store

import (
	"context"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/pkg/domain"
)

// CohortWindow bounds how many recent snapshots feed the capacity_norm
// min-max normalization (SPEC_FULL.md supplement: rolling 500-snapshot
// cohort window).
const CohortWindow = 500

// InsertSnapshot records a NodeSnapshot observation; snapshots are
// append-only, one row per (node, captured_at).
func (s *Store) InsertSnapshot(ctx context.Context, n domain.NodeSnapshot) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO node_snapshots (
			node_pubkey, captured_at, capacity_sat, num_channels_active, num_channels_total,
			local_balance_sat, remote_balance_sat, centrality_score, routing_success_rate,
			reputation_score, uptime_ratio, avg_fee_rate_ppm, revenue_sat_daily)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (node_pubkey, captured_at) DO NOTHING`,
		n.NodePubkey, n.CapturedAt, n.CapacitySat, n.NumChannelsActive, n.NumChannelsTotal,
		n.LocalBalanceSat, n.RemoteBalanceSat, n.CentralityScore, n.RoutingSuccessRate,
		n.ReputationScore, n.UptimeRatio, n.FeeStats.AvgFeeRatePPM, n.FeeStats.RevenueSatDaily)
	if err != nil {
		return mcperr.New(mcperr.Transient, "store.snapshots", "insert snapshot", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for a node.
func (s *Store) LatestSnapshot(ctx context.Context, nodePubkey string) (domain.NodeSnapshot, error) {
	rows, err := s.snapshotQuery(ctx, `
		SELECT node_pubkey, captured_at, capacity_sat, num_channels_active, num_channels_total,
			local_balance_sat, remote_balance_sat, centrality_score, routing_success_rate,
			reputation_score, uptime_ratio, avg_fee_rate_ppm, revenue_sat_daily
		FROM node_snapshots WHERE node_pubkey = $1
		ORDER BY captured_at DESC LIMIT 1`, nodePubkey)
	if err != nil {
		return domain.NodeSnapshot{}, err
	}
	if len(rows) == 0 {
		return domain.NodeSnapshot{}, mcperr.New(mcperr.NotFound, "store.snapshots", "no snapshot for "+nodePubkey, nil)
	}
	return rows[0], nil
}

// CohortCapacities returns the capacity_sat of the most recent CohortWindow
// snapshots across all nodes, the population pkg/decision min-max
// normalizes capacity_norm against.
func (s *Store) CohortCapacities(ctx context.Context) ([]int64, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT capacity_sat FROM node_snapshots
		ORDER BY captured_at DESC LIMIT $1`, CohortWindow)
	if err != nil {
		return nil, mcperr.New(mcperr.Transient, "store.snapshots", "query cohort capacities", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var c int64
		if err := rows.Scan(&c); err != nil {
			return nil, mcperr.New(mcperr.Transient, "store.snapshots", "scan cohort row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) snapshotQuery(ctx context.Context, sql string, args ...any) ([]domain.NodeSnapshot, error) {
	rows, err := s.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mcperr.New(mcperr.Transient, "store.snapshots", "query snapshot", err)
	}
	defer rows.Close()

	var out []domain.NodeSnapshot
	for rows.Next() {
		var n domain.NodeSnapshot
		if err := rows.Scan(&n.NodePubkey, &n.CapturedAt, &n.CapacitySat, &n.NumChannelsActive, &n.NumChannelsTotal,
			&n.LocalBalanceSat, &n.RemoteBalanceSat, &n.CentralityScore, &n.RoutingSuccessRate,
			&n.ReputationScore, &n.UptimeRatio, &n.FeeStats.AvgFeeRatePPM, &n.FeeStats.RevenueSatDaily); err != nil {
			return nil, mcperr.New(mcperr.Transient, "store.snapshots", "scan snapshot row", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
