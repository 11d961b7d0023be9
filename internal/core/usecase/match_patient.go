package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/athreya-m/trialmatch/internal/core/domain"
	"github.com/athreya-m/trialmatch/internal/core/ports"
)

type MatchConfig struct {
	TopK          int
	MinScore      float64
	DefaultStatus string
}

func (c MatchConfig) normalized() MatchConfig {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.MinScore < 0 || c.MinScore >= 1 {
		c.MinScore = 0.5
	}
	return c
}

// MatchPatientUseCase finds candidate trials for one registry patient. The
// retrieval is dense-only: cosine scores stay comparable against the
// minimum-score cutoff, which rank-fused scores would not be.
type MatchPatientUseCase struct {
	registry ports.PatientRegistry
	embedder ports.Embedder
	index    ports.TrialIndex
	catalog  ports.TrialCatalog
	cfg      MatchConfig
	logger   *slog.Logger
}

func NewMatchPatientUseCase(
	registry ports.PatientRegistry,
	embedder ports.Embedder,
	index ports.TrialIndex,
	catalog ports.TrialCatalog,
	cfg MatchConfig,
	logger *slog.Logger,
) *MatchPatientUseCase {
	return &MatchPatientUseCase{
		registry: registry,
		embedder: embedder,
		index:    index,
		catalog:  catalog,
		cfg:      cfg.normalized(),
		logger:   logger,
	}
}

func (uc *MatchPatientUseCase) MatchPatient(
	ctx context.Context,
	patientID string,
	topK int,
	minScore float64,
) ([]domain.TrialMatch, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "match patient", errors.New("patient id is required"))
	}
	if topK <= 0 {
		topK = uc.cfg.TopK
	}
	if minScore <= 0 {
		minScore = uc.cfg.MinScore
	}

	patient, err := uc.registry.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	conditions, err := uc.registry.ListConditions(ctx, patientID)
	if err != nil {
		return nil, err
	}

	query := buildPatientQuery(patient, conditions)
	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSimilarityUnavailable, "embed patient profile", err)
	}

	// Over-fetch segments so the per-trial collapse still fills topK.
	hits, err := uc.index.SearchDense(ctx, vector, topK*3, domain.SearchFilter{Status: uc.cfg.DefaultStatus})
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "match retrieval", err)
	}

	trials, err := hydrateTrials(ctx, uc.catalog, collapseByTrial(hits))
	if err != nil {
		return nil, err
	}

	matches := make([]domain.TrialMatch, 0, len(trials))
	for _, ranked := range trials {
		if ranked.Score < minScore {
			continue
		}
		eligible, reasons := checkTrialEligibility(patient, conditions, ranked.Trial)
		matches = append(matches, domain.TrialMatch{
			TrialID:  ranked.Trial.ID,
			Title:    ranked.Trial.Title,
			Phase:    ranked.Trial.Phase,
			Status:   ranked.Trial.Status,
			Score:    ranked.Score,
			Eligible: eligible,
			Reasons:  reasons,
		})
	}
	sortTrialMatches(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}

	uc.logger.Debug("patient matched against corpus",
		"patient_id", patientID,
		"candidates", len(trials),
		"matches", len(matches),
	)
	return matches, nil
}

// buildPatientQuery renders a patient profile as retrieval text.
func buildPatientQuery(patient *domain.PatientRecord, conditions []domain.ConditionEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patient: %d year old %s", patient.Age, strings.ToLower(patient.Gender))
	if len(conditions) > 0 {
		names := make([]string, 0, len(conditions))
		for _, condition := range conditions {
			names = append(names, condition.Name)
		}
		fmt.Fprintf(&b, "\nConditions: %s", strings.Join(names, ", "))
	}
	if patient.State != "" {
		fmt.Fprintf(&b, "\nLocation: %s", patient.State)
	}
	return b.String()
}

// checkTrialEligibility applies the trial's own declared constraints to one
// patient. Condition overlap is textual here; the semantic pass already
// happened during retrieval.
func checkTrialEligibility(
	patient *domain.PatientRecord,
	conditions []domain.ConditionEntry,
	trial domain.TrialRecord,
) (bool, []string) {
	eligible := true
	var reasons []string

	switch {
	case trial.MinAge != nil && patient.Age < *trial.MinAge:
		eligible = false
		reasons = append(reasons, fmt.Sprintf("Age %d below minimum %d", patient.Age, *trial.MinAge))
	case trial.MaxAge != nil && patient.Age > *trial.MaxAge:
		eligible = false
		reasons = append(reasons, fmt.Sprintf("Age %d above maximum %d", patient.Age, *trial.MaxAge))
	default:
		reasons = append(reasons, fmt.Sprintf("Age %d meets requirements", patient.Age))
	}

	gender := strings.ToLower(strings.TrimSpace(patient.Gender))
	if trial.AdmitsGender(gender) {
		reasons = append(reasons, fmt.Sprintf("Gender %s eligible", patient.Gender))
	} else {
		eligible = false
		reasons = append(reasons,
			fmt.Sprintf("Gender %s not eligible (requires %s)", patient.Gender, strings.Join(trial.EligibleGenders, "/")))
	}

	if len(trial.Conditions) > 0 && len(conditions) > 0 {
		var matched []string
		for _, trialCondition := range trial.Conditions {
			tc := normalizeConditionText(trialCondition)
			for _, condition := range conditions {
				pc := normalizeConditionText(condition.Name)
				if tc == "" || pc == "" {
					continue
				}
				if strings.Contains(tc, pc) || strings.Contains(pc, tc) {
					matched = append(matched, condition.Name)
					break
				}
			}
		}
		if len(matched) > 0 {
			reasons = append(reasons, fmt.Sprintf("Matching conditions: %s", strings.Join(matched, ", ")))
		} else {
			reasons = append(reasons, "Related conditions based on semantic similarity")
		}
	}

	if patient.State != "" && len(trial.Locations) > 0 {
		state := strings.ToUpper(strings.TrimSpace(patient.State))
		available := false
		for _, location := range trial.Locations {
			if strings.Contains(strings.ToUpper(location), state) {
				available = true
				break
			}
		}
		if available {
			reasons = append(reasons, fmt.Sprintf("Trial available in %s", state))
		} else {
			reasons = append(reasons, "Trial may require travel")
		}
	}

	return eligible, reasons
}
