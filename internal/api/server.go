package api

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/config"
	"github.com/foxzi/hyperdrive/internal/ipfilter"
	"github.com/foxzi/hyperdrive/internal/lifecycle"
	"github.com/foxzi/hyperdrive/internal/metrics"
	"github.com/foxzi/hyperdrive/internal/ratelimit"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	svc        *lifecycle.Service
	config     *config.APIConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
	limiter    *ratelimit.Limiter
	verifier   *access.TokenVerifier
	filter     *ipfilter.Filter
	tlsConfig  *tls.Config
	keyCache   keyCache
	version    string
	startTime  time.Time
}

// Option configures optional server dependencies
type Option func(*Server)

// WithMetrics records request metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimiter throttles mutating requests per organization
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithTokenVerifier resolves actors from bearer tokens instead of headers
func WithTokenVerifier(v *access.TokenVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithTLS serves the API over HTTPS
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) { s.tlsConfig = cfg }
}

// WithVersion sets the version reported by /health
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a new API server
func NewServer(svc *lifecycle.Service, cfg *config.APIConfig, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		svc:       svc,
		config:    cfg,
		logger:    logger.With("component", "api"),
		version:   "dev",
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.filter = ipfilter.New(cfg.AllowedIPs, s.logger)

	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.filter.HTTPMiddleware)
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware)
	}
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, http.StatusNotFound, "Route not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.actorMiddleware)
		r.Use(s.rateLimitMiddleware)
		r.Use(s.bodyLimitMiddleware)

		r.Get("/meta/statuses", s.handleStatuses)
		r.Get("/dashboard/stats", s.handleDashboard)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleListCampaigns)
			r.Post("/", s.handleCreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCampaign)
				r.Patch("/", s.handleUpdateCampaign)
				r.Delete("/", s.handleDeleteCampaign)
				r.Get("/pricing/preview", s.handlePricingPreview)
				r.Post("/enrollments", s.handleCreateEnrollment)
				r.Post("/{action}", s.handleCampaignAction)
			})
		})

		r.Route("/admin/campaigns/{id}", func(r chi.Router) {
			r.Post("/approve", s.handleCampaignReview(campaign.ActionApprove))
			r.Post("/reject", s.handleCampaignReview(campaign.ActionReject))
		})

		r.Route("/enrollments", func(r chi.Router) {
			r.Get("/", s.handleListEnrollments)
			r.Post("/bulk", s.handleBulkReview)
			r.Get("/{id}", s.handleGetEnrollment)
			r.Post("/{id}/{action}", s.handleEnrollmentAction)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", s.handleGetWallet)
			r.Post("/deposits", s.handleDeposit)
			r.Get("/holds", s.handleListHolds)
			r.Get("/ledger", s.handleLedger)
			r.Get("/withdrawals", s.handleListWithdrawals)
			r.Post("/withdrawals", s.handleRequestWithdrawal)
			r.Post("/withdrawals/{id}/{action}", s.handleWithdrawalAction)
		})
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddr,
		Handler:        s.router,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		TLSConfig:      s.tlsConfig,
	}

	if s.tlsConfig != nil {
		s.logger.Info("starting HTTPS API server", "addr", s.config.ListenAddr)
		return s.httpServer.ListenAndServeTLS("", "")
	}
	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
