// Package metrics provides Prometheus instrumentation for the run registry.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SrJuanF/UnitPoints-System/internal/ecosystem"
	"github.com/SrJuanF/UnitPoints-System/internal/verification/domain"
)

// Metrics owns a registry and the collectors registered on it.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	runRecordTotal          *prometheus.CounterVec
	verificationTotal       *prometheus.CounterVec
	verificationChecksTotal *prometheus.CounterVec
}

// New creates the collectors. It returns nil when disabled.
func New(enabled bool, service string) *Metrics {
	if !enabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	factory := prometheus.WrapRegistererWith(prometheus.Labels{"service": service}, reg)

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		runRecordTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "run_record_total",
			Help: "Total number of runs recorded",
		}, []string{"network", "status"}),
		verificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_total",
			Help: "Total number of server-side verifications",
		}, []string{"network", "outcome"}),
		verificationChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_checks_total",
			Help: "Total number of individual verification checks by status",
		}, []string{"status"}),
	}

	factory.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.runRecordTotal,
		m.verificationTotal,
		m.verificationChecksTotal,
	)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RunRecorded counts a stored run.
func (m *Metrics) RunRecorded(network, status string) {
	if m == nil {
		return
	}
	m.runRecordTotal.WithLabelValues(network, status).Inc()
}

// VerificationCompleted counts a verification and its checks. Outcome is
// "error" when err is set, "failed" when any check failed, "ok" otherwise.
func (m *Metrics) VerificationCompleted(network string, results []ecosystem.VerificationResult, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case domain.IsClientError(err):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	case !ecosystem.Summarize(results).OK():
		outcome = "failed"
	}
	if errors.Is(err, domain.ErrInvalidRequest) {
		// network names in rejected requests are caller-controlled
		network = "invalid"
	}
	m.verificationTotal.WithLabelValues(network, outcome).Inc()
	for _, r := range results {
		m.verificationChecksTotal.WithLabelValues(string(r.Status)).Inc()
	}
}
