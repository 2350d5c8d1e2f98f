package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/pkg/ingestion"
)

// IngestHandler exposes the ingestion pipeline (spec §4.2).
type IngestHandler struct {
	Pipeline *ingestion.Pipeline
}

type ingestRequest struct {
	SourceURI     string `json:"source_uri"`
	EmbedVersion  string `json:"embed_version"`
	BuildingIndex string `json:"building_index"`
}

type ingestResponse struct {
	JobID string `json:"job_id"`
}

// Ingest handles POST /api/v1/ingest.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mcperr.New(mcperr.Invalid, "httpapi.ingest", "decode request body", err))
		return
	}
	if req.SourceURI == "" || req.EmbedVersion == "" || req.BuildingIndex == "" {
		writeError(w, mcperr.New(mcperr.Invalid, "httpapi.ingest", "source_uri, embed_version, and building_index are required", nil))
		return
	}

	jobID, err := h.Pipeline.Ingest(r.Context(), req.SourceURI, req.EmbedVersion, req.BuildingIndex)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{JobID: jobID})
}

// Status handles GET /api/v1/ingest/{jobID}.
func (h *IngestHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	status, err := h.Pipeline.Status(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
