package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"folio/internal/config"
	"folio/internal/explainer"
	"folio/internal/history"
	"folio/internal/market"
	"folio/internal/observability"
	"folio/internal/scheduler"
)

const serviceVersion = "1.0.0"

// MetricsSource supplies the per-asset metric blocks.
type MetricsSource interface {
	CachedMetrics(ctx context.Context) (map[string]history.Metrics, error)
}

// ContextSource supplies per-symbol market contexts for a job.
type ContextSource interface {
	FetchAll(ctx context.Context, jobID string) map[string]market.Context
}

// ExplanationGenerator produces the advisory document.
type ExplanationGenerator interface {
	Generate(ctx context.Context, current, optimized explainer.Portfolio,
		metrics map[string]history.Metrics, contexts map[string]market.Context,
		riskProfile string) (map[string]any, error)
	Ping(ctx context.Context) error
}

// CachePinger reports whether the metrics cache backend is reachable.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// JobLister exposes the scheduled maintenance jobs.
type JobLister interface {
	Jobs() []scheduler.Job
}

type Server struct {
	cfg       *config.Config
	mux       *http.ServeMux
	metrics   MetricsSource
	contexts  ContextSource
	generator ExplanationGenerator
	store     CachePinger
	jobs      JobLister
	log       *observability.Logger
	httpSrv   *http.Server
}

func New(cfg *config.Config, metrics MetricsSource, contexts ContextSource,
	generator ExplanationGenerator, store CachePinger, jobs JobLister) *Server {

	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		metrics:   metrics,
		contexts:  contexts,
		generator: generator,
		store:     store,
		jobs:      jobs,
		log:       observability.Component("server"),
	}
	s.mux.HandleFunc("GET /{$}", s.handleHealth)
	s.mux.HandleFunc("GET /test-components", s.handleTestComponents)
	s.mux.HandleFunc("POST /generate-portfolio-explanation", s.handleGenerate)
	s.mux.HandleFunc("POST /test-explanation", s.handleTestExplanation)
	s.mux.HandleFunc("GET /tasks", s.handleTasks)
	return s
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return observability.RecoverMiddleware("server",
		observability.RequestIDMiddleware(s.mux))
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info(ctx, "listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
