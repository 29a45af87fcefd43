package transport

import (
	"time"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/internal/runs/domain"
)

// RunListResponse is the response for listing runs.
type RunListResponse struct {
	Data       []domain.RunSummary `json:"data"`
	Pagination Pagination          `json:"pagination"`
}

// Pagination provides pagination metadata.
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// RecordResponse is the response for recording a run.
type RecordResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Summary   ecosystem.Summary `json:"summary"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
