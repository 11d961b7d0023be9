package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/athreya-m/trialmatch/internal/core/domain"
	"github.com/athreya-m/trialmatch/internal/core/ports"
)

// EvaluateUseCase screens the whole patient registry against one criteria
// set and scores recruitment feasibility.
type EvaluateUseCase struct {
	registry    ports.PatientRegistry
	evaluator   *EligibilityEvaluator
	feasibility FeasibilityConfig
	resultLimit int
	logger      *slog.Logger
}

func NewEvaluateUseCase(
	registry ports.PatientRegistry,
	evaluator *EligibilityEvaluator,
	feasibility FeasibilityConfig,
	resultLimit int,
	logger *slog.Logger,
) *EvaluateUseCase {
	if resultLimit <= 0 {
		resultLimit = 50
	}
	return &EvaluateUseCase{
		registry:    registry,
		evaluator:   evaluator,
		feasibility: feasibility.normalized(),
		resultLimit: resultLimit,
		logger:      logger,
	}
}

func (uc *EvaluateUseCase) EvaluatePopulation(
	ctx context.Context,
	criteria domain.EligibilityCriteria,
	limit int,
) (*domain.PopulationResult, error) {
	if limit <= 0 {
		limit = uc.resultLimit
	}
	if criteria.TargetEnrollment <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidTarget, "evaluate population",
			fmt.Errorf("target enrollment %d must be positive", criteria.TargetEnrollment))
	}
	if criteria.MinAge != nil && criteria.MaxAge != nil && *criteria.MinAge > *criteria.MaxAge {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate population",
			fmt.Errorf("age bounds inverted: min %d > max %d", *criteria.MinAge, *criteria.MaxAge))
	}

	var warnings []string
	if criteria.Empty() {
		uc.logger.Warn("criteria carry no constraints, evaluating full registry")
		warnings = append(warnings, "criteria carry no constraints; every registry patient passes")
	}

	snapshot, err := uc.registry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot registry: %w", err)
	}

	results, err := uc.evaluator.Evaluate(ctx, criteria, snapshot)
	if err != nil {
		return nil, err
	}

	patientByID := make(map[string]domain.PatientRecord, len(snapshot.Patients))
	for _, patient := range snapshot.Patients {
		patientByID[patient.ID] = patient
	}
	eligible := make([]domain.PatientRecord, 0, len(results))
	for _, result := range results {
		if result.Eligible {
			eligible = append(eligible, patientByID[result.PatientID])
		}
	}

	report, err := scoreFeasibility(eligible, criteria.TargetEnrollment, uc.feasibility)
	if err != nil {
		return nil, err
	}

	sortMatchResults(results)
	matches, truncated := truncateMatches(results, limit)

	return &domain.PopulationResult{
		Report:    report,
		Matches:   matches,
		Evaluated: len(results),
		Truncated: truncated,
		Warnings:  warnings,
	}, nil
}
