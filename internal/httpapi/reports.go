package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/internal/store"
	"github.com/feustey/mcp/pkg/report"
)

// ReportsHandler exposes daily report retrieval and on-demand generation
// (spec §4.7).
type ReportsHandler struct {
	Store     *store.Store
	Generator *report.Generator
}

// GetDaily handles GET /api/v1/reports/daily?user_id=... and returns the
// user's most recent report. A date query parameter is not read; reports of
// earlier dates cannot be selected here.
func (h *ReportsHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, mcperr.New(mcperr.Invalid, "httpapi.reports", "user_id is required", nil))
		return
	}

	rpt, err := h.Store.LatestReportForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpt)
}

type generateDailyRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

// GenerateDaily handles POST /api/v1/reports/daily, triggering an
// on-demand generation for one user (the same idempotent path the
// scheduler drives daily).
func (h *ReportsHandler) GenerateDaily(w http.ResponseWriter, r *http.Request) {
	var req generateDailyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mcperr.New(mcperr.Invalid, "httpapi.reports", "decode request body", err))
		return
	}
	if req.UserID == "" {
		writeError(w, mcperr.New(mcperr.Invalid, "httpapi.reports", "user_id is required", nil))
		return
	}

	reportDate := time.Now().UTC()
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, mcperr.New(mcperr.Invalid, "httpapi.reports", "date must be YYYY-MM-DD", err))
			return
		}
		reportDate = parsed
	}

	user, err := h.Store.GetUserProfile(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	rpt, err := h.Generator.Generate(r.Context(), user, reportDate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rpt)
}
