package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
)

// Recorder receives verification outcomes.
type Recorder interface {
	VerificationCompleted(network string, results []ecosystem.VerificationResult, err error)
}

// LoggingMiddleware returns a service middleware that logs verifications.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	start := time.Now()
	result, err := m.next.Verify(ctx, req)
	attrs := []any{"network", req.Network, "duration", time.Since(start), "error", err}
	if result != nil {
		attrs = append(attrs, "pass", result.Summary.Pass, "fail", result.Summary.Fail, "warn", result.Summary.Warn)
	}
	m.logger.Info("Verify", attrs...)
	return result, err
}

// MetricsMiddleware reports every verification to rec.
func MetricsMiddleware(rec Recorder) func(Service) Service {
	return func(next Service) Service {
		return &metricsMiddleware{next: next, rec: rec}
	}
}

type metricsMiddleware struct {
	next Service
	rec  Recorder
}

func (m *metricsMiddleware) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	result, err := m.next.Verify(ctx, req)
	var results []ecosystem.VerificationResult
	if result != nil {
		results = result.Results
	}
	m.rec.VerificationCompleted(req.Network, results, err)
	return result, err
}
