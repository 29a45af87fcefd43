package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SrJuanF/UnitPoints-System/internal/auth"
	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/internal/runs/domain"
	"github.com/SrJuanF/UnitPoints-System/internal/storage"
)

type mockService struct {
	runs       map[string]*domain.Run
	recordedBy string
	listErr    error
	lastFilter domain.ListFilter
	lastPage   domain.PaginationParams
}

func newMockService() *mockService {
	return &mockService{runs: make(map[string]*domain.Run)}
}

func (m *mockService) Record(ctx context.Context, run domain.Run, recordedBy string) (*domain.Run, error) {
	if err := domain.Validate(run); err != nil {
		return nil, err
	}
	run.ID = fmt.Sprintf("run-%d", len(m.runs)+1)
	run.RecordedBy = recordedBy
	run.Summary = ecosystem.Summarize(run.Results)
	run.CreatedAt = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	m.recordedBy = recordedBy
	m.runs[run.ID] = &run
	return &run, nil
}

func (m *mockService) Get(ctx context.Context, id string) (*domain.Run, error) {
	if run, ok := m.runs[id]; ok {
		return run, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockService) List(ctx context.Context, filter domain.ListFilter, p domain.PaginationParams) (*domain.ListResult, error) {
	m.lastFilter, m.lastPage = filter, p
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.RunSummary
	for _, r := range m.runs {
		out = append(out, r.Summarize())
	}
	return &domain.ListResult{Runs: out}, nil
}

type keys map[string]*storage.APIKey

func (k keys) ValidateAPIKey(ctx context.Context, key string) (*storage.APIKey, error) {
	if v, ok := k[key]; ok {
		return v, nil
	}
	return nil, storage.ErrNotFound
}

func setupRouter(svc Service, authMode string) *chi.Mux {
	r := chi.NewRouter()
	h := NewHandler(svc)
	r.Route("/api/v1/runs", func(r chi.Router) {
		h.RegisterReadRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(auth.ForMode(authMode, keys{"up_key_ci": {ID: "key-ci"}}, WriteError))
			h.RegisterWriteRoutes(r)
		})
	})
	return r
}

const runBody = `{
	"network": "passetHubTestnet",
	"chainId": 420420422,
	"mode": "artifacts",
	"status": "completed",
	"reached": "Verified",
	"sectorId": "1",
	"addresses": {
		"userManager": "0x4FAB7A85e148E20357026853fB40c3988b1f06FB",
		"companyManager": "0x77BA22891A1847963A3417491819AeD1C6A1E391",
		"eventManager": "0x69E974fD8FE0016CCDB059f6e1De302Ff690A3A5",
		"daoGovernance": "0x665C7F3477B78C83E531c29746e58508a938afbe",
		"tokenAdministrator": "0xB8aEd07360FeBB97087eE47322B4457A83aD6D54",
		"unitpointsTokens": "0x6359B710A473f62A31f5aB74031FC3177e4a7B75"
	},
	"stages": ["grant", "wire", "register", "verify"],
	"results": [
		{"contract": "UserManager", "check": "admins(CompanyManager)", "status": "PASS", "message": "granted"},
		{"contract": "EventManager", "check": "daoGovernance()", "status": "FAIL", "message": "mismatch"}
	]
}`

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandler_Record(t *testing.T) {
	svc := newMockService()
	router := setupRouter(svc, "api-key")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/", bytes.NewBufferString(runBody))
	req.Header.Set(auth.HeaderAPIKey, "up_key_ci")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp RecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.ID)
	assert.Equal(t, domain.StatusCompleted, resp.Status)
	assert.Equal(t, ecosystem.Summary{Pass: 1, Fail: 1, Total: 2}, resp.Summary)
	assert.Equal(t, "key-ci", svc.recordedBy)
}

func TestHandler_Record_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		key    string
		status int
		code   string
	}{
		{"missing key", runBody, "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"invalid json", "not json", "up_key_ci", http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid run", strings.Replace(runBody, `"passetHubTestnet"`, `""`, 1), "up_key_ci", http.StatusBadRequest, "INVALID_RUN"},
		{"placeholder address", strings.Replace(runBody, "0x665C7F3477B78C83E531c29746e58508a938afbe", "0x0000000000000000000000000000000000000000", 1), "up_key_ci", http.StatusBadRequest, "INVALID_RUN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(newMockService(), "api-key")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/", bytes.NewBufferString(tt.body))
			if tt.key != "" {
				req.Header.Set(auth.HeaderAPIKey, tt.key)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestHandler_Record_AnonymousWhenAuthDisabled(t *testing.T) {
	svc := newMockService()
	router := setupRouter(svc, "none")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs/", bytes.NewBufferString(runBody)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, svc.recordedBy)
}

func TestHandler_Get(t *testing.T) {
	svc := newMockService()
	router := setupRouter(svc, "none")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/runs/", bytes.NewBufferString(runBody)))
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("existing run", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-1", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var run domain.Run
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
		assert.Equal(t, "passetHubTestnet", run.Network)
		assert.Equal(t, ecosystem.StateVerified, run.Reached)
		assert.Equal(t, "0x665C7F3477B78C83E531c29746e58508a938afbe", run.Addresses.DAOGovernance)
		assert.Len(t, run.Results, 2)
	})

	t.Run("missing run", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
	})
}

func TestHandler_List(t *testing.T) {
	svc := newMockService()
	router := setupRouter(svc, "none")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/?network=localhost&status=failed&limit=5&cursor=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "data")
	assert.Contains(t, resp, "pagination")
	assert.Equal(t, domain.ListFilter{Network: "localhost", Status: "failed"}, svc.lastFilter)
	assert.Equal(t, domain.PaginationParams{Limit: 5, Cursor: "abc"}, svc.lastPage)
}

func TestHandler_List_Errors(t *testing.T) {
	svc := newMockService()
	router := setupRouter(svc, "none")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/?limit=1000", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.listErr = domain.ErrInvalidCursor
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/?cursor=zzz", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CURSOR", decodeError(t, rec).Code)
}
