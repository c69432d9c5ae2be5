// Package api exposes lead intake, health and metrics over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/NonStopMan/vamo-heatos/internal/health"
	"github.com/NonStopMan/vamo-heatos/internal/metrics"
	"github.com/NonStopMan/vamo-heatos/internal/model"
)

// Config configures the HTTP server.
type Config struct {
	Port            int     `yaml:"port" mapstructure:"port"`
	APIKey          string  `yaml:"api_key" mapstructure:"api_key"`
	CORSOrigin      string  `yaml:"cors_origin" mapstructure:"cors_origin"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	ReadTimeoutSecs int     `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	MaxBodyBytes    int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// LeadCreator is implemented by intake.Service.
type LeadCreator interface {
	CreateLead(ctx context.Context, payload *model.LeadPayload, raw []byte, reqCtx *model.RequestContext) (*model.CreationResult, error)
}

// HealthChecker is implemented by health.Checker.
type HealthChecker interface {
	Check(ctx context.Context) *health.Report
}

// Server wires the router to an http.Server.
type Server struct {
	cfg     Config
	leads   LeadCreator
	health  HealthChecker
	metrics *metrics.Metrics
	limiter *ipLimiter
	log     *zap.Logger
	server  *http.Server
}

// NewServer creates a Server. m may be nil, in which case /metrics is not
// mounted.
func NewServer(cfg Config, leads LeadCreator, hc HealthChecker, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		leads:   leads,
		health:  hc,
		metrics: m,
		limiter: newIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		log:     zap.L().With(zap.String("component", "api")),
	}

	readTimeout := 15 * time.Second
	if cfg.ReadTimeoutSecs > 0 {
		readTimeout = time.Duration(cfg.ReadTimeoutSecs) * time.Second
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoverer)
	r.Use(requestID)
	r.Use(s.requestLogger)
	r.Use(s.instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{s.corsOrigin()},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Api-Key", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(s.requireAPIKey)
		r.Post("/leads", s.handleCreateLead)
	})

	return r
}

func (s *Server) corsOrigin() string {
	if s.cfg.CORSOrigin == "" {
		return "http://localhost:5173"
	}
	return s.cfg.CORSOrigin
}

// ListenAndServe blocks until the server stops. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("starting http server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "api: listen")
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
