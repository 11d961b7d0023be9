package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/athreya-m/trialmatch/internal/core/domain"
	"github.com/athreya-m/trialmatch/internal/core/ports"
)

type EvaluationConfig struct {
	SimilarityThreshold float64
	Workers             int
}

func (c EvaluationConfig) normalized() EvaluationConfig {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = 0.75
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	return c
}

// EligibilityEvaluator screens a registry snapshot against one criteria set.
// Patients are independent, so they fan out over a fixed worker pool; the
// result slice is keyed by patient position, which keeps the output
// identical regardless of scheduling.
type EligibilityEvaluator struct {
	embedder ports.Embedder
	pool     *ants.Pool
	cfg      EvaluationConfig
	logger   *slog.Logger
}

func NewEligibilityEvaluator(embedder ports.Embedder, cfg EvaluationConfig, logger *slog.Logger) (*EligibilityEvaluator, error) {
	cfg = cfg.normalized()
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create evaluation pool: %w", err)
	}
	return &EligibilityEvaluator{
		embedder: embedder,
		pool:     pool,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func (e *EligibilityEvaluator) Close() {
	e.pool.Release()
}

func (e *EligibilityEvaluator) Evaluate(
	ctx context.Context,
	criteria domain.EligibilityCriteria,
	snapshot domain.RegistrySnapshot,
) ([]domain.MatchResult, error) {
	terms := normalizeTerms(criteria.Conditions)

	var termVectors [][]float32
	if len(terms) > 0 {
		vectors, err := e.embedder.Embed(ctx, terms)
		if err != nil {
			return nil, domain.WrapError(domain.ErrSimilarityUnavailable, "embed criteria terms", err)
		}
		if len(vectors) != len(terms) {
			return nil, domain.WrapError(domain.ErrSimilarityUnavailable, "embed criteria terms",
				fmt.Errorf("expected %d vectors, got %d", len(terms), len(vectors)))
		}
		termVectors = vectors
	}

	evalCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]domain.MatchResult, len(snapshot.Patients))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := range snapshot.Patients {
		patient := snapshot.Patients[i]
		slot := i
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			if evalCtx.Err() != nil {
				return
			}
			result, err := e.evaluatePatient(evalCtx, criteria, terms, termVectors, patient, snapshot.ConditionsFor(patient.ID))
			if err != nil {
				fail(err)
				return
			}
			results[slot] = result
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit evaluation task: %w", submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		switch {
		case errors.Is(firstErr, context.DeadlineExceeded):
			return nil, domain.WrapError(domain.ErrDeadlineExceeded, "evaluate population", firstErr)
		case domain.IsKind(firstErr, domain.ErrSimilarityUnavailable):
			return nil, firstErr
		default:
			return nil, fmt.Errorf("evaluate population: %w", firstErr)
		}
	}

	eligible := 0
	for _, result := range results {
		if result.Eligible {
			eligible++
		}
	}
	e.logger.Debug("population evaluated",
		"patients", len(results),
		"eligible", eligible,
		"criteria_terms", len(terms),
	)
	return results, nil
}

// evaluatePatient runs the hard filters, then the semantic condition stage.
// A failed hard filter short-circuits: the remaining checks never run.
func (e *EligibilityEvaluator) evaluatePatient(
	ctx context.Context,
	criteria domain.EligibilityCriteria,
	terms []string,
	termVectors [][]float32,
	patient domain.PatientRecord,
	conditions []domain.ConditionEntry,
) (domain.MatchResult, error) {
	result := domain.MatchResult{PatientID: patient.ID}

	if criteria.MinAge != nil && patient.Age < *criteria.MinAge {
		result.Reasons = append(result.Reasons, fmt.Sprintf("Age %d below minimum %d", patient.Age, *criteria.MinAge))
		return result, nil
	}
	if criteria.MaxAge != nil && patient.Age > *criteria.MaxAge {
		result.Reasons = append(result.Reasons, fmt.Sprintf("Age %d above maximum %d", patient.Age, *criteria.MaxAge))
		return result, nil
	}
	result.Reasons = append(result.Reasons, fmt.Sprintf("Age %d meets requirements", patient.Age))

	gender := strings.ToLower(strings.TrimSpace(patient.Gender))
	if criteria.RestrictsGender() && !containsString(criteria.Genders, gender) {
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("Gender %s not eligible (requires %s)", patient.Gender, strings.Join(criteria.Genders, "/")))
		return result, nil
	}
	result.Reasons = append(result.Reasons, fmt.Sprintf("Gender %s eligible", patient.Gender))

	if len(terms) == 0 {
		result.Eligible = true
		result.Reasons = append(result.Reasons, "No condition requirements specified")
		return result, nil
	}
	if len(conditions) == 0 {
		result.Reasons = append(result.Reasons, "No recorded conditions to compare")
		return result, nil
	}

	best := 0.0
	matched := false
	for _, condition := range conditions {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		text := normalizeConditionText(condition.Name)
		if text == "" {
			continue
		}
		vector, err := e.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return result, domain.WrapError(domain.ErrSimilarityUnavailable, "embed patient condition", err)
		}
		for t, termVector := range termVectors {
			similarity := cosineSimilarity(vector, termVector)
			if similarity > best {
				best = similarity
			}
			if similarity >= e.cfg.SimilarityThreshold {
				matched = true
				result.Reasons = append(result.Reasons,
					fmt.Sprintf("Condition %q matches criterion %q (similarity %.2f)", condition.Name, terms[t], similarity))
			}
		}
	}

	result.Score = best
	if matched {
		result.Eligible = true
		return result, nil
	}
	result.Reasons = append(result.Reasons,
		fmt.Sprintf("No condition within similarity threshold %.2f (best %.2f)", e.cfg.SimilarityThreshold, best))
	return result, nil
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		normalized := normalizeConditionText(term)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
