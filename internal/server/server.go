// Package server exposes the download core over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mediagrab/pkg/accounts"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/metrics"
	"mediagrab/pkg/platform"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/router"
	"mediagrab/pkg/storage"
)

// CapabilityReporter reports what can currently be downloaded
type CapabilityReporter interface {
	Capabilities() router.Capabilities
}

// Deps are the components the server serves
type Deps struct {
	Registry     *platform.Registry
	Store        *storage.Manager
	Capabilities CapabilityReporter
	// Pool may be nil when no accounts are configured
	Pool    *accounts.Pool
	Metrics *metrics.Metrics
	// Limiter throttles download and probe calls per client IP; nil disables it
	Limiter *ratelimit.KeyedLimiter
	Logger  logger.Logger
}

// Options tune the HTTP layer
type Options struct {
	Version      string
	ServeFiles   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP API
type Server struct {
	deps    Deps
	opts    Options
	logger  logger.Logger
	handler http.Handler
	now     func() time.Time
}

// New builds the server and its routes
func New(deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.GetLogger()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: deps.Logger.WithField("component", "server"),
		now:    time.Now,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverer)
	r.Use(cors)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.deps.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/capabilities", s.handleCapabilities)
		r.Get("/platforms", s.handlePlatforms)
		r.Get("/accounts/stats", s.handleAccountStats)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/download", s.handleDownload)
			r.Post("/probe", s.handleProbe)
		})
	})

	if s.opts.ServeFiles && s.deps.Store != nil {
		r.Handle("/downloads/*", s.fileServer())
	}
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogComponentStart(s.logger, "http server", map[string]interface{}{"address": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	logger.LogComponentStop(s.logger, "http server", "context done")
	return err
}
