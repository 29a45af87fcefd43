// Package auth authenticates registry clients by API key.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/SrJuanF/UnitPoints-System/internal/storage"
)

// HeaderAPIKey carries the API key. Authorization: Bearer is accepted too.
const HeaderAPIKey = "X-API-Key"

type contextKey struct{}

// ErrorWriter writes an error response in the transport's JSON shape.
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// Validator checks a presented key.
type Validator interface {
	ValidateAPIKey(ctx context.Context, key string) (*storage.APIKey, error)
}

// KeyFromRequest returns the presented API key, or "".
func KeyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// WithAPIKey returns ctx carrying key.
func WithAPIKey(ctx context.Context, key *storage.APIKey) context.Context {
	return context.WithValue(ctx, contextKey{}, key)
}

// APIKeyFromContext returns the authenticated key, or nil.
func APIKeyFromContext(ctx context.Context) *storage.APIKey {
	key, _ := ctx.Value(contextKey{}).(*storage.APIKey)
	return key
}

// RecordedBy returns the authenticated key ID, or "" for anonymous requests.
func RecordedBy(ctx context.Context) string {
	if key := APIKeyFromContext(ctx); key != nil {
		return key.ID
	}
	return ""
}

// Require rejects requests without a valid key.
func Require(v Validator, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := KeyFromRequest(r)
			if presented == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key required")
				return
			}
			key, err := v.ValidateAPIKey(r.Context(), presented)
			if err != nil || key == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), key)))
		})
	}
}

// Identify attaches a valid key to the context when one is presented and
// lets every request through.
func Identify(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if presented := KeyFromRequest(r); presented != "" {
				if key, err := v.ValidateAPIKey(r.Context(), presented); err == nil && key != nil {
					r = r.WithContext(WithAPIKey(r.Context(), key))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ForMode picks Require for "api-key" and Identify otherwise.
func ForMode(mode string, v Validator, writeError ErrorWriter) func(http.Handler) http.Handler {
	if mode == "api-key" {
		return Require(v, writeError)
	}
	return Identify(v)
}
