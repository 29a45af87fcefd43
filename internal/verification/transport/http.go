// Package transport provides HTTP handlers for server-side verification.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SrJuanF/UnitPoints-System/internal/verification/domain"
)

// Service defines the verification service interface for HTTP transport.
type Service interface {
	Verify(ctx context.Context, req domain.VerifyRequest) (*domain.VerifyResult, error)
}

// ErrorWriter writes the standard error body.
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// Handler handles HTTP requests for verification.
type Handler struct {
	svc        Service
	writeError ErrorWriter
}

// NewHandler creates a new verification HTTP handler.
func NewHandler(svc Service, writeError ErrorWriter) *Handler {
	return &Handler{svc: svc, writeError: writeError}
}

// RegisterRoutes registers the verification routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/verify", h.handleVerify)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}

	result, err := h.svc.Verify(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRPCNotAllowed):
			h.writeError(w, http.StatusForbidden, "RPC_NOT_ALLOWED", err.Error())
		case errors.Is(err, domain.ErrInvalidRequest):
			h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		case errors.Is(err, domain.ErrUnreachable):
			h.writeError(w, http.StatusBadGateway, "RPC_UNREACHABLE", "RPC endpoint unreachable")
		default:
			h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Verification failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}
