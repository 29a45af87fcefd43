package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/internal/storage"
	"github.com/SrJuanF/UnitPoints-System/internal/validation"
)

// Service defines the run registry service interface.
type Service interface {
	// Record validates and stores a run, attributing it to recordedBy.
	Record(ctx context.Context, run Run, recordedBy string) (*Run, error)

	// Get retrieves a run by ID.
	Get(ctx context.Context, id string) (*Run, error)

	// List lists runs newest first.
	List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error)
}

// Store is the storage the run service needs.
type Store interface {
	storage.RunStore
}

type service struct {
	store Store
}

// NewService creates a new run service.
func NewService(store Store) Service {
	return &service{store: store}
}

var modes = []string{ecosystem.ModeArtifacts, ecosystem.ModeManual}

// Validate reports why a run cannot be recorded.
func Validate(run Run) error {
	if err := validation.ValidateNetworkName(run.Network); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if err := validation.ValidateChainID(run.ChainID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	if !slices.Contains(modes, run.Mode) {
		return fmt.Errorf("%w: mode must be one of %v", ErrInvalidRun, modes)
	}
	switch run.Status {
	case StatusCompleted:
		// a completed run passed address validation before any write
		if err := ecosystem.ValidateAddresses(run.Addresses); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRun, err)
		}
	case StatusFailed:
		if run.Error == "" {
			return fmt.Errorf("%w: failed run needs an error", ErrInvalidRun)
		}
	default:
		return fmt.Errorf("%w: status must be %q or %q", ErrInvalidRun, StatusCompleted, StatusFailed)
	}
	for _, st := range run.Stages {
		if !slices.Contains(ecosystem.AllStages, st) {
			return fmt.Errorf("%w: unknown stage %q", ErrInvalidRun, st)
		}
	}
	return nil
}

func (s *service) Record(ctx context.Context, run Run, recordedBy string) (*Run, error) {
	if err := Validate(run); err != nil {
		return nil, err
	}

	// counts always derive from the results actually submitted
	run.Summary = ecosystem.Summarize(run.Results)
	run.RecordedBy = recordedBy

	rec, err := toStorage(run)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	rec.ID = ""
	if err := s.store.CreateRun(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}

	run.ID = rec.ID
	run.CreatedAt = rec.CreatedAt
	return &run, nil
}

func (s *service) Get(ctx context.Context, id string) (*Run, error) {
	rec, err := s.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return fromStorage(rec)
}

func (s *service) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	page, err := s.store.ListRuns(ctx, storage.RunFilter{
		Network: filter.Network,
		Status:  filter.Status,
	}, storage.PaginationParams{
		Limit:  pagination.Limit,
		Cursor: pagination.Cursor,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	runs := make([]RunSummary, 0, len(page.Data))
	for i := range page.Data {
		run, err := fromStorage(&page.Data[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, run.Summarize())
	}
	return &ListResult{Runs: runs, HasMore: page.HasMore, NextCursor: page.NextCursor}, nil
}

func toStorage(run Run) (*storage.Run, error) {
	rec := &storage.Run{
		ID:         run.ID,
		Network:    run.Network,
		ChainID:    run.ChainID,
		Mode:       run.Mode,
		Deployer:   run.Deployer,
		Status:     run.Status,
		Reached:    string(run.Reached),
		Error:      run.Error,
		SectorID:   run.SectorID,
		Pass:       run.Summary.Pass,
		Fail:       run.Summary.Fail,
		Warn:       run.Summary.Warn,
		RecordedBy: run.RecordedBy,
		CreatedAt:  run.CreatedAt,
	}
	docs := []struct {
		dst *json.RawMessage
		v   any
	}{
		{&rec.Addresses, run.Addresses},
		{&rec.Stages, nonNil(run.Stages)},
		{&rec.Calls, nonNil(run.Calls)},
		{&rec.Results, nonNil(run.Results)},
	}
	for _, d := range docs {
		b, err := json.Marshal(d.v)
		if err != nil {
			return nil, err
		}
		*d.dst = b
	}
	return rec, nil
}

func fromStorage(rec *storage.Run) (*Run, error) {
	run := &Run{
		ID:         rec.ID,
		Network:    rec.Network,
		ChainID:    rec.ChainID,
		Mode:       rec.Mode,
		Deployer:   rec.Deployer,
		Status:     rec.Status,
		Reached:    ecosystem.State(rec.Reached),
		Error:      rec.Error,
		SectorID:   rec.SectorID,
		RecordedBy: rec.RecordedBy,
		CreatedAt:  rec.CreatedAt,
	}
	docs := []struct {
		src json.RawMessage
		dst any
	}{
		{rec.Addresses, &run.Addresses},
		{rec.Stages, &run.Stages},
		{rec.Calls, &run.Calls},
		{rec.Results, &run.Results},
	}
	for _, d := range docs {
		if len(d.src) == 0 {
			continue
		}
		if err := json.Unmarshal(d.src, d.dst); err != nil {
			return nil, fmt.Errorf("decoding run %s: %w", rec.ID, err)
		}
	}
	run.Summary = ecosystem.Summary{
		Pass:  rec.Pass,
		Fail:  rec.Fail,
		Warn:  rec.Warn,
		Total: len(run.Results),
	}
	return run, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
