package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SrJuanF/UnitPoints-System/internal/storage"
)

type fakeKeys map[string]*storage.APIKey

func (f fakeKeys) ValidateAPIKey(ctx context.Context, key string) (*storage.APIKey, error) {
	if k, ok := f[key]; ok {
		return k, nil
	}
	return nil, storage.ErrNotFound
}

func writeStatus(w http.ResponseWriter, status int, code, message string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(code))
}

func TestForMode(t *testing.T) {
	keys := fakeKeys{"up_key_ci": {ID: "key-1", Name: "ci"}}

	tests := []struct {
		name       string
		mode       string
		headers    map[string]string
		wantStatus int
		wantBy     string
	}{
		{"api-key with header", "api-key", map[string]string{HeaderAPIKey: "up_key_ci"}, http.StatusOK, "key-1"},
		{"api-key with bearer", "api-key", map[string]string{"Authorization": "Bearer up_key_ci"}, http.StatusOK, "key-1"},
		{"api-key missing", "api-key", nil, http.StatusUnauthorized, ""},
		{"api-key invalid", "api-key", map[string]string{HeaderAPIKey: "up_key_nope"}, http.StatusUnauthorized, ""},
		{"none anonymous", "none", nil, http.StatusOK, ""},
		{"none identifies valid key", "none", map[string]string{HeaderAPIKey: "up_key_ci"}, http.StatusOK, "key-1"},
		{"none ignores invalid key", "none", map[string]string{HeaderAPIKey: "bogus"}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var by string
			h := ForMode(tt.mode, keys, writeStatus)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				by = RecordedBy(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBy, by)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "UNAUTHORIZED", rec.Body.String())
			}
		})
	}
}

func TestKeyFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, KeyFromRequest(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, KeyFromRequest(req))

	req.Header.Set(HeaderAPIKey, " up_key_x ")
	assert.Equal(t, "up_key_x", KeyFromRequest(req))
}

func TestAPIKeyFromContext_Empty(t *testing.T) {
	assert.Nil(t, APIKeyFromContext(context.Background()))
	assert.Empty(t, RecordedBy(context.Background()))
}
