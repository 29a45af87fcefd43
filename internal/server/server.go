// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/SrJuanF/UnitPoints-System/internal/auth"
	"github.com/SrJuanF/UnitPoints-System/internal/config"
	"github.com/SrJuanF/UnitPoints-System/internal/middleware/logging"
	"github.com/SrJuanF/UnitPoints-System/internal/middleware/ratelimit"
	"github.com/SrJuanF/UnitPoints-System/internal/middleware/realip"
	"github.com/SrJuanF/UnitPoints-System/internal/observability/metrics"
	runsDomain "github.com/SrJuanF/UnitPoints-System/internal/runs/domain"
	runsTransport "github.com/SrJuanF/UnitPoints-System/internal/runs/transport"
	"github.com/SrJuanF/UnitPoints-System/internal/storage"
	verificationDomain "github.com/SrJuanF/UnitPoints-System/internal/verification/domain"
	verificationTransport "github.com/SrJuanF/UnitPoints-System/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg     *config.Config
	store   storage.Store
	logger  *slog.Logger
	router  *chi.Mux
	metrics *metrics.Metrics
	dial    verificationDomain.Dialer

	// Services typed via transport interfaces
	runsSvc         runsTransport.Service
	verificationSvc verificationTransport.Service
}

// Option configures a Server
type Option func(*Server)

// WithMetrics instruments the server and serves /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDialer replaces the JSON-RPC dialer used by /api/v1/verify
func WithDialer(d verificationDomain.Dialer) Option {
	return func(s *Server) { s.dial = d }
}

// New creates a new server
func New(cfg *config.Config, store storage.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dial == nil {
		s.dial = verificationDomain.EVMDialer(cfg.Verify.RPCRate, logger)
	}

	runsSvc := runsDomain.NewService(store)
	runsSvc = runsDomain.LoggingMiddleware(logger)(runsSvc)
	runsSvc = runsDomain.MetricsMiddleware(s.metrics)(runsSvc)
	s.runsSvc = runsSvc

	verifySvc := verificationDomain.NewService(s.dial, verificationDomain.Config{
		AllowedHosts: cfg.Verify.AllowedRPCHosts,
		Timeout:      time.Duration(cfg.Verify.TimeoutSeconds) * time.Second,
	}, logger)
	verifySvc = verificationDomain.LoggingMiddleware(logger)(verifySvc)
	verifySvc = verificationDomain.MetricsMiddleware(s.metrics)(verifySvc)
	s.verificationSvc = verifySvc

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Body size limit
	s.router.Use(middleware.RequestSize(int64(s.cfg.Server.MaxBodySizeKB) << 10))

	// 3. Rate limiting (bypasses health checks and metrics)
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		VerifyPerMin:   s.cfg.RateLimit.VerifyPerMin,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// 4. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(s.metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second))
	}
	s.router.Use(middleware.Compress(5))

	// 5. CORS
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	runsHandler := runsTransport.NewHandler(s.runsSvc)
	verificationHandler := verificationTransport.NewHandler(s.verificationSvc, runsTransport.WriteError)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/runs", func(r chi.Router) {
			// Read operations - no auth required
			runsHandler.RegisterReadRoutes(r)

			// Write operations - auth required when AUTH_TYPE=api-key
			r.Group(func(r chi.Router) {
				r.Use(auth.ForMode(s.cfg.Auth.Type, s.store, runsTransport.WriteError))
				runsHandler.RegisterWriteRoutes(r)
			})
		})

		// Verification - read only on chain, no auth
		verificationHandler.RegisterRoutes(r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
