package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

// AnalyzeUseCase is the full feasibility pipeline: corpus search, criteria
// derivation, population evaluation, feasibility scoring.
type AnalyzeUseCase struct {
	search   *SearchUseCase
	evaluate *EvaluateUseCase
	criteria CriteriaConfig
	logger   *slog.Logger
}

func NewAnalyzeUseCase(
	search *SearchUseCase,
	evaluate *EvaluateUseCase,
	criteria CriteriaConfig,
	logger *slog.Logger,
) *AnalyzeUseCase {
	return &AnalyzeUseCase{
		search:   search,
		evaluate: evaluate,
		criteria: criteria.normalized(),
		logger:   logger,
	}
}

func (uc *AnalyzeUseCase) Analyze(
	ctx context.Context,
	query string,
	requestedEnrollment, topK, limit int,
) (*domain.AnalyzeResult, error) {
	if requestedEnrollment < 0 {
		return nil, domain.WrapError(domain.ErrInvalidTarget, "analyze feasibility",
			fmt.Errorf("requested enrollment %d must not be negative", requestedEnrollment))
	}

	trials, err := uc.search.Search(ctx, query, topK, domain.SearchFilter{})
	if err != nil {
		return nil, err
	}
	if len(trials) == 0 {
		return nil, domain.WrapError(domain.ErrEmptyCriteria, "analyze feasibility",
			errors.New("no trials retrieved for query"))
	}

	criteria, err := deriveCriteria(trials, requestedEnrollment, uc.criteria)
	if err != nil {
		return nil, fmt.Errorf("derive criteria: %w", err)
	}
	uc.logger.Debug("criteria derived",
		"trials", len(trials),
		"conditions", len(criteria.Conditions),
		"target", criteria.TargetEnrollment,
	)

	population, err := uc.evaluate.EvaluatePopulation(ctx, criteria, limit)
	if err != nil {
		return nil, err
	}

	report := population.Report
	report.Trials = trials

	return &domain.AnalyzeResult{
		Query:     query,
		Trials:    trials,
		Criteria:  criteria,
		Report:    report,
		Matches:   population.Matches,
		Evaluated: population.Evaluated,
		Truncated: population.Truncated,
		Warnings:  population.Warnings,
	}, nil
}
