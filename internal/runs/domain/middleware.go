package domain

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Record(ctx context.Context, run Run, recordedBy string) (*Run, error) {
	start := time.Now()
	out, err := m.next.Record(ctx, run, recordedBy)
	id := ""
	if out != nil {
		id = out.ID
	}
	m.logger.Info("Record",
		"id", id,
		"network", run.Network,
		"status", run.Status,
		"reached", run.Reached,
		"calls", len(run.Calls),
		"duration", time.Since(start),
		"error", err,
	)
	return out, err
}

func (m *loggingMiddleware) Get(ctx context.Context, id string) (*Run, error) {
	start := time.Now()
	run, err := m.next.Get(ctx, id)
	m.logger.Debug("Get",
		"id", id,
		"duration", time.Since(start),
		"error", err,
	)
	return run, err
}

func (m *loggingMiddleware) List(ctx context.Context, filter ListFilter, pagination PaginationParams) (*ListResult, error) {
	start := time.Now()
	result, err := m.next.List(ctx, filter, pagination)
	m.logger.Debug("List",
		"network", filter.Network,
		"status", filter.Status,
		"limit", pagination.Limit,
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}

// Recorder receives stored runs.
type Recorder interface {
	RunRecorded(network, status string)
}

// MetricsMiddleware reports every stored run to rec.
func MetricsMiddleware(rec Recorder) func(Service) Service {
	return func(next Service) Service {
		return &metricsMiddleware{Service: next, rec: rec}
	}
}

type metricsMiddleware struct {
	Service
	rec Recorder
}

func (m *metricsMiddleware) Record(ctx context.Context, run Run, recordedBy string) (*Run, error) {
	out, err := m.Service.Record(ctx, run, recordedBy)
	if err == nil {
		m.rec.RunRecorded(out.Network, out.Status)
	}
	return out, err
}
