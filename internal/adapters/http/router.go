// Package httpadapter exposes the matching and feasibility pipeline over a
// JSON HTTP API.
package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/athreya-m/trialmatch/internal/config"
	"github.com/athreya-m/trialmatch/internal/core/domain"
	"github.com/athreya-m/trialmatch/internal/core/ports"
	"github.com/athreya-m/trialmatch/internal/observability/metrics"
)

// backpressureWait bounds how long a request may queue for an inflight
// slot before it is shed.
const backpressureWait = 100 * time.Millisecond

type Router struct {
	cfg       config.Config
	searcher  ports.TrialSearcher
	evaluator ports.PopulationEvaluator
	analyzer  ports.FeasibilityAnalyzer
	matcher   ports.PatientMatcher
	registry  ports.PatientRegistry
	catalog   ports.TrialCatalog
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	searcher ports.TrialSearcher,
	evaluator ports.PopulationEvaluator,
	analyzer ports.FeasibilityAnalyzer,
	matcher ports.PatientMatcher,
	registry ports.PatientRegistry,
	catalog ports.TrialCatalog,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	if httpMetrics == nil {
		httpMetrics = metrics.NewHTTPServerMetrics(cfg.ServiceName)
	}
	return &Router{
		cfg:       cfg,
		searcher:  searcher,
		evaluator: evaluator,
		analyzer:  analyzer,
		matcher:   matcher,
		registry:  registry,
		catalog:   catalog,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/trials/search", rt.searchTrials)
	mux.HandleFunc("/v1/trials/", rt.getTrialByID)
	mux.HandleFunc("/v1/patients/", rt.patientRoutes)
	mux.HandleFunc("/v1/population/evaluate", rt.evaluatePopulation)
	mux.HandleFunc("/v1/feasibility/analyze", rt.analyzeFeasibility)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInflight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) searchTrials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query     string `json:"query"`
		TopK      int    `json:"top_k"`
		Phase     string `json:"phase"`
		Status    string `json:"status"`
		Condition string `json:"condition"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	trials, err := rt.searcher.Search(r.Context(), req.Query, req.TopK, domain.SearchFilter{
		Phase:     req.Phase,
		Status:    req.Status,
		Condition: req.Condition,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.RecordSearchObservation(rt.cfg.ServiceName, "/v1/trials/search", len(trials), time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{
		"query":  req.Query,
		"count":  len(trials),
		"trials": trials,
	})
}

func (rt *Router) evaluatePopulation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		MinAge           *int     `json:"min_age"`
		MaxAge           *int     `json:"max_age"`
		Genders          []string `json:"genders"`
		Conditions       []string `json:"conditions"`
		TargetEnrollment int      `json:"target_enrollment"`
		Limit            int      `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	criteria := domain.EligibilityCriteria{
		MinAge:           req.MinAge,
		MaxAge:           req.MaxAge,
		Genders:          req.Genders,
		Conditions:       req.Conditions,
		TargetEnrollment: req.TargetEnrollment,
	}

	start := time.Now()
	result, err := rt.evaluator.EvaluatePopulation(r.Context(), criteria, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.RecordEvaluation(rt.cfg.ServiceName, "/v1/population/evaluate",
		result.Evaluated, result.Report.EligibleCount, time.Since(start))
	rt.metrics.RecordFeasibilityTier(rt.cfg.ServiceName, "/v1/population/evaluate", string(result.Report.Tier))

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) analyzeFeasibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query               string `json:"query"`
		RequestedEnrollment int    `json:"requested_enrollment"`
		TopK                int    `json:"top_k"`
		Limit               int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	result, err := rt.analyzer.Analyze(r.Context(), req.Query, req.RequestedEnrollment, req.TopK, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.metrics.RecordEvaluation(rt.cfg.ServiceName, "/v1/feasibility/analyze",
		result.Evaluated, result.Report.EligibleCount, time.Since(start))
	rt.metrics.RecordFeasibilityTier(rt.cfg.ServiceName, "/v1/feasibility/analyze", string(result.Report.Tier))

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getTrialByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/trials/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "trial id is required"})
		return
	}
	if strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	trial, err := rt.catalog.GetTrial(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trial)
}

// patientRoutes dispatches the /v1/patients/ subtree:
// GET /v1/patients/{id} and POST /v1/patients/{id}/matches.
func (rt *Router) patientRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/patients/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1:
		rt.getPatientByID(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "matches":
		rt.matchPatient(w, r, parts[0])
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) getPatientByID(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient id is required"})
		return
	}

	patient, err := rt.registry.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	conditions, err := rt.registry.ListConditions(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patient":    patient,
		"conditions": conditions,
	})
}

func (rt *Router) matchPatient(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient id is required"})
		return
	}

	// Both knobs are optional, so an empty body is accepted.
	var req struct {
		TopK     int     `json:"top_k"`
		MinScore float64 `json:"min_score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	matches, err := rt.matcher.MatchPatient(r.Context(), id, req.TopK, req.MinScore)
	rt.metrics.RecordPatientMatch(rt.cfg.ServiceName, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patient_id": id,
		"count":      len(matches),
		"matches":    matches,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
