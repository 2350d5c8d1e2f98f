// Package httpapi is the thin admin HTTP surface (spec §4.9, §6): health,
// metrics, and the ingest/report/rollback/rag operator endpoints, all
// behind a single hashed admin API key.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/feustey/mcp/internal/mcperr"
)

// errorEnvelope is the response body shape for every non-2xx response
// (spec §6 "{error: {kind, message, retriable}}").
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retriable bool   `json:"retriable"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to the §7 HTTP status and the §6 error envelope,
// setting Retry-After when err carries a retry hint (spec §7).
func writeError(w http.ResponseWriter, err error) {
	kind := mcperr.Of(err)
	if d := mcperr.RetryAfterOf(err); d > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(d.Seconds())))
	}
	writeJSON(w, kind.HTTPStatus(), errorEnvelope{Error: errorBody{
		Kind:      string(kind),
		Message:   err.Error(),
		Retriable: kind.Retriable(),
	}})
}
