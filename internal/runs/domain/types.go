// Package domain contains the business logic for the run registry.
package domain

import (
	"errors"
	"math/big"
	"time"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is a recorded configure or verify run.
type Run struct {
	ID         string                         `json:"id"`
	Network    string                         `json:"network"`
	ChainID    int64                          `json:"chainId"`
	Mode       string                         `json:"mode"`
	Deployer   string                         `json:"deployer,omitempty"`
	Status     string                         `json:"status"`
	Reached    ecosystem.State                `json:"reached"`
	Error      string                         `json:"error,omitempty"`
	SectorID   string                         `json:"sectorId,omitempty"`
	Addresses  ecosystem.Addresses            `json:"addresses"`
	Stages     []ecosystem.Stage              `json:"stages"`
	Calls      []ecosystem.CallRecord         `json:"calls"`
	Results    []ecosystem.VerificationResult `json:"results"`
	Summary    ecosystem.Summary              `json:"summary"`
	RecordedBy string                         `json:"recordedBy,omitempty"`
	CreatedAt  time.Time                      `json:"createdAt"`
}

// RunSummary is the list view of a run.
type RunSummary struct {
	ID        string            `json:"id"`
	Network   string            `json:"network"`
	ChainID   int64             `json:"chainId"`
	Mode      string            `json:"mode"`
	Status    string            `json:"status"`
	Reached   ecosystem.State   `json:"reached"`
	SectorID  string            `json:"sectorId,omitempty"`
	Summary   ecosystem.Summary `json:"summary"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Summarize returns the list view of r.
func (r Run) Summarize() RunSummary {
	return RunSummary{
		ID:        r.ID,
		Network:   r.Network,
		ChainID:   r.ChainID,
		Mode:      r.Mode,
		Status:    r.Status,
		Reached:   r.Reached,
		SectorID:  r.SectorID,
		Summary:   r.Summary,
		CreatedAt: r.CreatedAt,
	}
}

// RunParams identifies where a run happened.
type RunParams struct {
	Network  string
	ChainID  int64
	Mode     string
	Deployer string
}

// FromOutcome builds a Run from a sequencer outcome. A non-nil runErr marks
// the run failed at out.Reached.
func FromOutcome(p RunParams, out *ecosystem.Outcome, runErr error) Run {
	run := Run{
		Network:  p.Network,
		ChainID:  p.ChainID,
		Mode:     p.Mode,
		Deployer: p.Deployer,
		Status:   StatusCompleted,
	}
	if out != nil {
		run.Reached = out.Reached
		run.Addresses = out.Addresses
		run.Stages = out.Stages
		run.Calls = out.Calls
		run.Results = out.Results
		run.SectorID = bigString(out.SectorID)
	}
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}
	run.Summary = ecosystem.Summarize(run.Results)
	return run
}

func bigString(n *big.Int) string {
	if n == nil {
		return ""
	}
	return n.String()
}

// ListFilter contains filter options for listing runs.
type ListFilter struct {
	Network string
	Status  string
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// ListResult contains paginated list results.
type ListResult struct {
	Runs       []RunSummary
	HasMore    bool
	NextCursor string
}

// Common errors returned by the run service.
var (
	ErrNotFound      = errors.New("run not found")
	ErrInvalidRun    = errors.New("invalid run")
	ErrInvalidCursor = errors.New("invalid cursor")
)
