package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"folio/internal/explainer"
	"folio/internal/observability"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "Portfolio Explainer API",
		"version":   serviceVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTestComponents probes each dependency independently so a broken
// Azure credential still reports a working analyzer, and vice versa.
func (s *Server) handleTestComponents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results := map[string]any{}

	if metrics, err := s.metrics.CachedMetrics(ctx); err != nil {
		results["historical_analyzer"] = map[string]any{"status": "error", "error": err.Error()}
	} else {
		results["historical_analyzer"] = map[string]any{
			"status":          "success",
			"assets_analyzed": len(metrics),
		}
	}

	if err := s.generator.Ping(ctx); err != nil {
		results["azure_openai"] = map[string]any{"status": "error", "error": err.Error()}
	} else {
		results["azure_openai"] = map[string]any{
			"status": "success",
			"model":  s.cfg.AzureOpenAIDeployment,
		}
	}

	if err := s.store.Ping(ctx); err != nil {
		results["cache"] = map[string]any{"status": "error", "error": err.Error()}
	} else {
		results["cache"] = map[string]any{"status": "success"}
	}

	results["background_tasks"] = map[string]any{
		"status":         "success",
		"jobs_scheduled": len(s.jobs.Jobs()),
	}

	writeJSON(w, http.StatusOK, results)
}

type explanationRequest struct {
	JobID              string              `json:"job_id"`
	CurrentPortfolio   explainer.Portfolio `json:"current_portfolio"`
	OptimizedPortfolio explainer.Portfolio `json:"optimized_portfolio"`
	RiskProfile        string              `json:"risk_profile"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req explanationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "No JSON data provided")
		return
	}
	s.serveExplanation(w, r, req)
}

// handleTestExplanation runs the full generation path with a canned
// rebalance, so deployments can be smoke-tested without a real job.
func (s *Server) handleTestExplanation(w http.ResponseWriter, r *http.Request) {
	s.serveExplanation(w, r, explanationRequest{
		JobID: "test-job-id",
		CurrentPortfolio: explainer.Portfolio{
			"Gold": 40.0, "Equities": 30.0, "REITs": 10.0, "Bitcoin": 20.0,
		},
		OptimizedPortfolio: explainer.Portfolio{
			"Gold": 42.5, "Equities": 32.8, "REITs": 14.7, "Bitcoin": 10.0,
		},
		RiskProfile: "Balanced",
	})
}

func (s *Server) serveExplanation(w http.ResponseWriter, r *http.Request, req explanationRequest) {
	ctx := r.Context()

	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}
	if len(req.CurrentPortfolio) == 0 || len(req.OptimizedPortfolio) == 0 {
		writeError(w, http.StatusBadRequest, "Both current_portfolio and optimized_portfolio are required")
		return
	}
	if req.RiskProfile == "" {
		req.RiskProfile = "Balanced"
	}

	ctx, span := observability.StartSpan(ctx, "server.generate_explanation")
	defer span.End()

	s.log.Info(ctx, "explanation requested", "job_id", req.JobID, "risk_profile", req.RiskProfile)

	metrics, err := s.metrics.CachedMetrics(ctx)
	if err != nil {
		s.explanationError(w, ctx, req.JobID, "calculate metrics: "+err.Error())
		return
	}

	contexts := s.contexts.FetchAll(ctx, req.JobID)

	explanation, err := s.generator.Generate(ctx, req.CurrentPortfolio, req.OptimizedPortfolio,
		metrics, contexts, req.RiskProfile)
	if err != nil {
		s.explanationError(w, ctx, req.JobID, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"job_id":      req.JobID,
		"explanation": explanation,
		"metadata": map[string]any{
			"historical_assets_analyzed": len(metrics),
			"context_files_fetched":      len(contexts),
			"risk_profile":               req.RiskProfile,
			"timestamp":                  time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) explanationError(w http.ResponseWriter, ctx context.Context, jobID, msg string) {
	s.log.Error(ctx, "explanation failed", "job_id", jobID, "error", msg)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"status": "error",
		"error":  msg,
		"job_id": jobID,
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs": s.jobs.Jobs(),
	})
}
