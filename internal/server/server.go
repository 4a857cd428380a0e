package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abverdict/abverdict/internal/experiment"
	"github.com/abverdict/abverdict/internal/period"
	"github.com/abverdict/abverdict/internal/store"
)

// Options configures a Server.
type Options struct {
	Port int
	// TokenFile, when set, receives the API token on start.
	TokenFile string
	// Token overrides the persisted or generated API token.
	Token  string
	Logger *slog.Logger
}

type Server struct {
	store     store.Store
	runner    *experiment.Runner
	port      int
	token     string
	tokenFile string
	router    chi.Router
	registry  *prometheus.Registry
	metrics   *metrics
	logger    *slog.Logger
	startTime time.Time
}

// New builds a Server over s. The runner's hooks are pointed at the
// server's metrics.
func New(s store.Store, runner *experiment.Runner, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	token := opts.Token
	if token == "" {
		var err error
		token, err = loadOrCreateToken(context.Background(), s)
		if err != nil {
			return nil, err
		}
	}

	registry := prometheus.NewRegistry()
	srv := &Server{
		store:     s,
		runner:    runner,
		port:      opts.Port,
		token:     token,
		tokenFile: opts.TokenFile,
		router:    chi.NewRouter(),
		registry:  registry,
		metrics:   newMetrics(registry),
		logger:    logger,
		startTime: time.Now(),
	}

	runner.OnAnalysis = func(d time.Duration) {
		srv.metrics.analyses.Inc()
		srv.metrics.analysisDuration.Observe(d.Seconds())
	}
	runner.OnConsolidation = func(c *period.Consolidated) {
		srv.metrics.consolidations.Inc()
		srv.metrics.consolidationWarnings.Add(float64(len(c.Warnings)))
	}

	srv.setupRoutes()
	return srv, nil
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	// Public endpoints
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// API endpoints (protected)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/analyze", s.handleAnalyze)
		r.Get("/experiments", s.handleListExperiments)
		r.Route("/experiments/{name}", func(r chi.Router) {
			r.Get("/periods", s.handleListPeriods)
			r.Post("/periods", s.handleAddPeriod)
			r.Delete("/periods/{id}", s.handleRemovePeriod)
			r.Post("/consolidate", s.handleConsolidate)
			r.Get("/analysis", s.handleGetAnalysis)
		})
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully. With
// printMessages off only the structured log records the start.
func (s *Server) Run(ctx context.Context, printMessages bool) error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			s.logger.Warn("failed to write token file", "path", s.tokenFile, "error", err)
		}
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if printMessages {
		fmt.Println()
		fmt.Printf("abv API running on http://localhost:%d\n", s.port)
		fmt.Printf("Token: %s\n", s.token)
		fmt.Printf("Metrics: http://localhost:%d/metrics\n", s.port)
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop")
	}
	s.logger.Info("server starting", "port", s.port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) Token() string {
	return s.token
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler {
	return s.router
}
