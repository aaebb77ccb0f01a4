// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihandler "github.com/strataquant/strata/internal/api/handler/api"
	"github.com/strataquant/strata/internal/api/job"
	"github.com/strataquant/strata/internal/api/middleware"
	"github.com/strataquant/strata/internal/backtest"
	"github.com/strataquant/strata/internal/metrics"
	"github.com/strataquant/strata/internal/strategy"
)

// Server is the HTTP front end of the simulation engine.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
}

// Config holds server configuration
type Config struct {
	Host        string
	Port        int
	APIKey      string // empty disables auth
	MetricsPath string // empty disables the metrics endpoint
	JobTTL      time.Duration
	MaxJobs     int

	DefaultParams  strategy.Params
	DefaultCapital float64
}

// NewServer creates a new HTTP server around a backtest engine.
func NewServer(cfg Config, engine *backtest.Engine, reg *metrics.Registry, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
	}

	jobs := job.NewStore(cfg.MaxJobs, cfg.JobTTL)
	backtestHandler := apihandler.NewBacktestHandler(
		jobs, engine, cfg.DefaultParams, cfg.DefaultCapital, logger)

	auth := middleware.APIKeyAuth(cfg.APIKey)
	mux.Handle("POST /api/backtest", auth(http.HandlerFunc(backtestHandler.Create)))
	mux.Handle("GET /api/backtest/{id}", auth(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			backtestHandler.GetStatus(w, r, r.PathValue("id"))
		})))
	mux.HandleFunc("GET /api/health", s.handleHealth)

	if reg != nil && cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath,
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	if reg != nil {
		handler = metrics.HTTPMiddleware(reg)(handler)
	}
	handler = metrics.LoggingMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the composed handler chain. Used in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
