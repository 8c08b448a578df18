package httpx

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

const APIKeyHeader = "X-API-Key"

// APIKeyAuth guards operator-only routes such as the consultation history
type APIKeyAuth struct {
	apiKey string
}

// NewAPIKeyAuth creates the guard. An empty key disables it.
func NewAPIKeyAuth(apiKey string) *APIKeyAuth {
	return &APIKeyAuth{apiKey: apiKey}
}

// Enabled reports whether a key is configured
func (a *APIKeyAuth) Enabled() bool {
	return a.apiKey != ""
}

// Middleware rejects requests whose X-API-Key does not match with 401
func (a *APIKeyAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				slog.WarnContext(r.Context(), "API key missing", requestAttrs(r)...)
				unauthorized(w, "API key required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(a.apiKey)) != 1 {
				slog.WarnContext(r.Context(), "Invalid API key", requestAttrs(r)...)
				unauthorized(w, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "API-Key")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": message})
}
