// Package mcpadapter exposes the matching and feasibility pipeline as MCP
// tools over stdio, so agent runtimes can drive the engine directly.
// Stdout carries the protocol; all logging must go to stderr.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/athreya-m/trialmatch/internal/config"
	"github.com/athreya-m/trialmatch/internal/core/domain"
	"github.com/athreya-m/trialmatch/internal/core/ports"
)

const serverVersion = "0.1.0"

type Server struct {
	cfg       config.Config
	searcher  ports.TrialSearcher
	evaluator ports.PopulationEvaluator
	analyzer  ports.FeasibilityAnalyzer
	matcher   ports.PatientMatcher
	registry  ports.PatientRegistry
	catalog   ports.TrialCatalog
	mcp       *server.MCPServer
}

func NewServer(
	cfg config.Config,
	searcher ports.TrialSearcher,
	evaluator ports.PopulationEvaluator,
	analyzer ports.FeasibilityAnalyzer,
	matcher ports.PatientMatcher,
	registry ports.PatientRegistry,
	catalog ports.TrialCatalog,
) *Server {
	s := &Server{
		cfg:       cfg,
		searcher:  searcher,
		evaluator: evaluator,
		analyzer:  analyzer,
		matcher:   matcher,
		registry:  registry,
		catalog:   catalog,
	}

	s.mcp = server.NewMCPServer(
		cfg.ServiceName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(
			"Clinical trial matching and feasibility engine. Search the trial corpus, "+
				"screen the patient registry against eligibility criteria, score recruitment "+
				"feasibility, and match individual patients to candidate trials.",
		),
	)
	s.registerTools()
	return s
}

// ServeStdio blocks until the client closes the transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("search_trials",
		mcp.WithDescription("Search the trial corpus with a free-text query. Returns ranked trials with fused retrieval scores."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text search query.")),
		mcp.WithNumber("top_k", mcp.Description("Number of trials to return. Zero uses the service default.")),
		mcp.WithString("phase", mcp.Description("Restrict to a trial phase, e.g. '2'.")),
		mcp.WithString("status", mcp.Description("Restrict to a recruitment status, e.g. 'recruiting'.")),
		mcp.WithString("condition", mcp.Description("Restrict to trials studying this condition.")),
	), s.handleSearchTrials)

	s.mcp.AddTool(mcp.NewTool("evaluate_population",
		mcp.WithDescription("Screen the whole patient registry against one eligibility criteria set and score recruitment feasibility."),
		mcp.WithNumber("target_enrollment", mcp.Required(), mcp.Description("Enrollment target the feasibility tier is scored against.")),
		mcp.WithNumber("min_age", mcp.Description("Minimum patient age in years.")),
		mcp.WithNumber("max_age", mcp.Description("Maximum patient age in years.")),
		mcp.WithArray("genders", mcp.Description("Admissible genders. Empty admits all."),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("conditions", mcp.Description("Required conditions, matched semantically."),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithNumber("limit", mcp.Description("Per-patient results to include. Zero uses the service default.")),
	), s.handleEvaluatePopulation)

	s.mcp.AddTool(mcp.NewTool("analyze_feasibility",
		mcp.WithDescription("Full pipeline: search trials for the query, derive pooled eligibility criteria, evaluate the registry, and score feasibility."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text description of the planned study.")),
		mcp.WithNumber("requested_enrollment", mcp.Description("Planned enrollment. Zero uses the service default.")),
		mcp.WithNumber("top_k", mcp.Description("Trials to retrieve for criteria derivation.")),
		mcp.WithNumber("limit", mcp.Description("Per-patient results to include.")),
	), s.handleAnalyzeFeasibility)

	s.mcp.AddTool(mcp.NewTool("match_patient",
		mcp.WithDescription("Find candidate trials for one registry patient, ranked by condition similarity, with per-trial eligibility checks."),
		mcp.WithString("patient_id", mcp.Required(), mcp.Description("Registry patient id.")),
		mcp.WithNumber("top_k", mcp.Description("Number of trials to return.")),
		mcp.WithNumber("min_score", mcp.Description("Drop trials scoring below this similarity.")),
	), s.handleMatchPatient)

	s.mcp.AddTool(mcp.NewTool("get_patient",
		mcp.WithDescription("Fetch one registry patient with their condition history."),
		mcp.WithString("patient_id", mcp.Required(), mcp.Description("Registry patient id.")),
	), s.handleGetPatient)

	s.mcp.AddTool(mcp.NewTool("get_trial",
		mcp.WithDescription("Fetch one trial record by id."),
		mcp.WithString("trial_id", mcp.Required(), mcp.Description("Trial id, e.g. 'NCT00000001'.")),
	), s.handleGetTrial)
}

func (s *Server) handleSearchTrials(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	trials, err := s.searcher.Search(ctx, query, request.GetInt("top_k", 0), domain.SearchFilter{
		Phase:     request.GetString("phase", ""),
		Status:    request.GetString("status", ""),
		Condition: request.GetString("condition", ""),
	})
	if err != nil {
		return toolError("search_trials", err), nil
	}

	return toolResult(map[string]any{
		"query":  query,
		"count":  len(trials),
		"trials": trials,
	})
}

func (s *Server) handleEvaluatePopulation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		MinAge           *int     `json:"min_age"`
		MaxAge           *int     `json:"max_age"`
		Genders          []string `json:"genders"`
		Conditions       []string `json:"conditions"`
		TargetEnrollment int      `json:"target_enrollment"`
		Limit            int      `json:"limit"`
	}
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.evaluator.EvaluatePopulation(ctx, domain.EligibilityCriteria{
		MinAge:           args.MinAge,
		MaxAge:           args.MaxAge,
		Genders:          args.Genders,
		Conditions:       args.Conditions,
		TargetEnrollment: args.TargetEnrollment,
	}, args.Limit)
	if err != nil {
		return toolError("evaluate_population", err), nil
	}
	return toolResult(result)
}

func (s *Server) handleAnalyzeFeasibility(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.analyzer.Analyze(ctx, query,
		request.GetInt("requested_enrollment", 0),
		request.GetInt("top_k", 0),
		request.GetInt("limit", 0),
	)
	if err != nil {
		return toolError("analyze_feasibility", err), nil
	}
	return toolResult(result)
}

func (s *Server) handleMatchPatient(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patientID, err := request.RequireString("patient_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	matches, err := s.matcher.MatchPatient(ctx, patientID,
		request.GetInt("top_k", 0),
		request.GetFloat("min_score", 0),
	)
	if err != nil {
		return toolError("match_patient", err), nil
	}

	return toolResult(map[string]any{
		"patient_id": patientID,
		"count":      len(matches),
		"matches":    matches,
	})
}

func (s *Server) handleGetPatient(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patientID, err := request.RequireString("patient_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	patient, err := s.registry.GetPatient(ctx, patientID)
	if err != nil {
		return toolError("get_patient", err), nil
	}
	conditions, err := s.registry.ListConditions(ctx, patientID)
	if err != nil {
		return toolError("get_patient", err), nil
	}

	return toolResult(map[string]any{
		"patient":    patient,
		"conditions": conditions,
	})
}

func (s *Server) handleGetTrial(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	trialID, err := request.RequireString("trial_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	trial, err := s.catalog.GetTrial(ctx, trialID)
	if err != nil {
		return toolError("get_trial", err), nil
	}
	return toolResult(trial)
}

func toolResult(payload any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Error("tool call failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}
