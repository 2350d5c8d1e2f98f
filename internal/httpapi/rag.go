package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feustey/mcp/internal/mcperr"
	"github.com/feustey/mcp/pkg/ingestion"
	"github.com/feustey/mcp/pkg/retrieval"
	"github.com/feustey/mcp/pkg/vectorindex"
)

// RAGHandler exposes retrieval queries and reindex lifecycle operations
// (spec §4.3, §4.4).
type RAGHandler struct {
	Retrieval *retrieval.Service
	Index     *vectorindex.Manager
	Pipeline  *ingestion.Pipeline
}

type ragQueryRequest struct {
	Query   string            `json:"query"`
	Filters retrieval.Filters `json:"filters"`
	K       int               `json:"k"`
}

// Query handles POST /api/v1/rag/query.
func (h *RAGHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req ragQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mcperr.New(mcperr.Invalid, "httpapi.rag", "decode request body", err))
		return
	}
	if req.Query == "" {
		writeError(w, mcperr.New(mcperr.Invalid, "httpapi.rag", "query is required", nil))
		return
	}

	hits, err := h.Retrieval.Retrieve(r.Context(), req.Query, req.Filters, req.K)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

type beginReindexRequest struct {
	EmbedVersion string `json:"embed_version"`
}

// BeginReindex handles POST /api/v1/rag/reindex. It provisions the shadow
// index and returns its name; the caller drives ingestion into it via
// /api/v1/ingest with building_index set to the returned name (spec §4.3).
func (h *RAGHandler) BeginReindex(w http.ResponseWriter, r *http.Request) {
	var req beginReindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mcperr.New(mcperr.Invalid, "httpapi.rag", "decode request body", err))
		return
	}
	if req.EmbedVersion == "" {
		writeError(w, mcperr.New(mcperr.Invalid, "httpapi.rag", "embed_version is required", nil))
		return
	}

	name, err := h.Index.BeginReindex(r.Context(), req.EmbedVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"index_name": name})
}

// FinalizeReindex handles POST /api/v1/rag/reindex/{indexName}/finalize.
func (h *RAGHandler) FinalizeReindex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "indexName")
	if err := h.Index.Finalize(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"index_name": name, "state": "ready"})
}

// AbortReindex handles POST /api/v1/rag/reindex/{indexName}/abort.
func (h *RAGHandler) AbortReindex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "indexName")
	if err := h.Index.Abort(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"index_name": name, "state": "aborted"})
}
