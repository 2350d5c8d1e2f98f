package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feustey/mcp/pkg/decision"
)

// DecisionsHandler exposes decision rollback (spec §4.6).
type DecisionsHandler struct {
	Engine *decision.Engine
}

// Rollback handles POST /api/v1/decisions/{decisionID}/rollback.
func (h *DecisionsHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")
	d, err := h.Engine.Rollback(r.Context(), decisionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
