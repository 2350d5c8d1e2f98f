package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/feustey/mcp/pkg/vectorindex"
)

// HealthHandler serves /live and /ready (spec §4.9).
type HealthHandler struct {
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	VectorIndex *vectorindex.Manager
	Alias       string
}

// Live always reports healthy once the process is serving requests; it
// never touches downstream dependencies.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "live"})
}

// Ready reports healthy only once Postgres, Redis, and the current vector
// index alias are all reachable (spec §4.9 "ready iff every dependency the
// next request would touch answers").
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if err := h.Pool.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		ready = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.Redis.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		ready = false
	} else {
		checks["redis"] = "ok"
	}

	if _, err := h.VectorIndex.Current(ctx, h.Alias); err != nil {
		checks["vector_index"] = err.Error()
		ready = false
	} else {
		checks["vector_index"] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"status": map[bool]string{true: "ready", false: "not_ready"}[ready], "checks": checks})
}
