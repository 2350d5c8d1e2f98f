package httpapi

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyAuth gates the admin surface behind a single hashed key (spec §9
// domain-stack wiring). The plaintext key is hashed once at startup; every
// request compares against the hash rather than a plaintext equality
// check.
type APIKeyAuth struct {
	hash []byte
}

// NewAPIKeyAuth hashes plainKey with bcrypt. An empty plainKey disables
// auth entirely (local/dev mode).
func NewAPIKeyAuth(plainKey string) (*APIKeyAuth, error) {
	if plainKey == "" {
		return &APIKeyAuth{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plainKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &APIKeyAuth{hash: hash}, nil
}

// Middleware rejects requests whose X-API-Key header doesn't match.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.hash) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		provided := r.Header.Get("X-API-Key")
		if provided == "" || bcrypt.CompareHashAndPassword(a.hash, []byte(provided)) != nil {
			writeJSON(w, http.StatusUnauthorized, errorEnvelope{Error: errorBody{Kind: "invalid", Message: "missing or invalid API key"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
