package usecase

import (
	"fmt"
	"sort"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

type FeasibilityConfig struct {
	HighRatio float64
	LowRatio  float64
}

func (c FeasibilityConfig) normalized() FeasibilityConfig {
	if c.HighRatio <= 0 {
		c.HighRatio = 1.2
	}
	if c.LowRatio <= 0 || c.LowRatio > c.HighRatio {
		c.LowRatio = 0.8
	}
	return c
}

// scoreFeasibility rates recruitment feasibility for a target enrollment.
// The target is validated before any division; a boundary ratio lands in
// the upper tier. Zero eligible patients force LOW with nil demographics.
func scoreFeasibility(eligible []domain.PatientRecord, target int, cfg FeasibilityConfig) (domain.FeasibilityReport, error) {
	cfg = cfg.normalized()
	if target <= 0 {
		return domain.FeasibilityReport{}, domain.WrapError(domain.ErrInvalidTarget, "score feasibility",
			fmt.Errorf("target enrollment %d must be positive", target))
	}

	report := domain.FeasibilityReport{
		EligibleCount:    len(eligible),
		TargetEnrollment: target,
		Tier:             domain.TierLow,
	}
	if len(eligible) == 0 {
		return report, nil
	}

	report.Ratio = float64(len(eligible)) / float64(target)
	switch {
	case report.Ratio >= cfg.HighRatio:
		report.Tier = domain.TierHigh
	case report.Ratio >= cfg.LowRatio:
		report.Tier = domain.TierMedium
	default:
		report.Tier = domain.TierLow
	}

	report.Demographics = buildDemographics(eligible)
	return report, nil
}

func buildDemographics(eligible []domain.PatientRecord) *domain.DemographicBreakdown {
	if len(eligible) == 0 {
		return nil
	}

	genders := make(map[string]float64, 4)
	ages := make([]int, 0, len(eligible))
	var ageSum int
	for _, patient := range eligible {
		genders[patient.Gender]++
		ages = append(ages, patient.Age)
		ageSum += patient.Age
	}
	for g := range genders {
		genders[g] /= float64(len(eligible))
	}

	sort.Ints(ages)
	mid := len(ages) / 2
	median := float64(ages[mid])
	if len(ages)%2 == 0 {
		median = float64(ages[mid-1]+ages[mid]) / 2.0
	}

	return &domain.DemographicBreakdown{
		Genders:   genders,
		MeanAge:   float64(ageSum) / float64(len(eligible)),
		MedianAge: median,
	}
}
