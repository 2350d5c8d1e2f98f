package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/feustey/mcp/internal/mcperr"
)

func TestWriteError_MapsKindToStatusAndEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, mcperr.New(mcperr.NotFound, "store", "report not found", nil))

	assert.Equal(t, 404, w.Code)
	assert.JSONEq(t, `{"error":{"kind":"not_found","message":"store: report not found","retriable":false}}`, w.Body.String())
}

func TestWriteError_RetriableKindSetsFlag(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, mcperr.New(mcperr.Transient, "nodedata", "upstream blip", nil))

	assert.Equal(t, 503, w.Code)
	assert.JSONEq(t, `{"error":{"kind":"transient","message":"nodedata: upstream blip","retriable":true}}`, w.Body.String())
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestWriteError_SetsRetryAfterHeaderWhenHinted(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, mcperr.NewRateLimited("nodedata", "rate limited", 30*time.Second, nil))

	assert.Equal(t, 503, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}
