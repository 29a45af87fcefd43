// Package transport provides HTTP handlers for the run registry.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/SrJuanF/UnitPoints-System/internal/auth"
	"github.com/SrJuanF/UnitPoints-System/internal/runs/domain"
)

// Service defines the run service interface for HTTP transport.
type Service interface {
	Record(ctx context.Context, run domain.Run, recordedBy string) (*domain.Run, error)
	Get(ctx context.Context, id string) (*domain.Run, error)
	List(ctx context.Context, filter domain.ListFilter, pagination domain.PaginationParams) (*domain.ListResult, error)
}

// Handler handles HTTP requests for runs.
type Handler struct {
	svc Service
}

// NewHandler creates a new runs HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers read-only run routes.
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
}

// RegisterWriteRoutes registers write run routes.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/", h.handleRecord)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 20
	if l := q.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 || parsed > 100 {
			WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	result, err := h.svc.List(r.Context(), domain.ListFilter{
		Network: q.Get("network"),
		Status:  q.Get("status"),
	}, domain.PaginationParams{
		Limit:  limit,
		Cursor: q.Get("cursor"),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCursor) {
			WriteError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid pagination cursor")
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, RunListResponse{
		Data: result.Runs,
		Pagination: Pagination{
			Limit:      limit,
			HasMore:    result.HasMore,
			NextCursor: result.NextCursor,
		},
	})
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var run domain.Run
	if err := json.NewDecoder(r.Body).Decode(&run); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	recorded, err := h.svc.Record(r.Context(), run, auth.RecordedBy(r.Context()))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRun) {
			WriteError(w, http.StatusBadRequest, "INVALID_RUN", err.Error())
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record run")
		return
	}

	writeJSON(w, http.StatusCreated, RecordResponse{
		ID:        recorded.ID,
		Status:    recorded.Status,
		Summary:   recorded.Summary,
		CreatedAt: recorded.CreatedAt,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "Run not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes the standard error body.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
