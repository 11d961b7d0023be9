package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

type CriteriaConfig struct {
	SampleTrials      int
	DefaultMinAge     int
	DefaultMaxAge     int
	DefaultEnrollment int
}

func (c CriteriaConfig) normalized() CriteriaConfig {
	if c.SampleTrials <= 0 {
		c.SampleTrials = 8
	}
	if c.DefaultMaxAge <= 0 {
		c.DefaultMaxAge = 150
	}
	if c.DefaultMinAge < 0 || c.DefaultMinAge > c.DefaultMaxAge {
		c.DefaultMinAge = 0
	}
	if c.DefaultEnrollment <= 0 {
		c.DefaultEnrollment = 100
	}
	return c
}

// deriveCriteria consolidates the eligibility constraints of the top ranked
// trials into one criteria set. Age bounds are taken conservatively wide:
// the minimum of declared lower bounds and the maximum of declared upper
// bounds. A bound declared by fewer than two trials in the sample is not
// trusted and the wide default band is used instead.
func deriveCriteria(trials []domain.RankedTrial, requestedEnrollment int, cfg CriteriaConfig) (domain.EligibilityCriteria, error) {
	cfg = cfg.normalized()
	if len(trials) == 0 {
		return domain.EligibilityCriteria{}, domain.ErrEmptyCriteria
	}

	sample := trials
	if len(sample) > cfg.SampleTrials {
		sample = sample[:cfg.SampleTrials]
	}

	var minAges, maxAges, enrollments []int
	genderSet := make(map[string]struct{})
	conditionSet := make(map[string]struct{})
	openGenders := false

	for _, ranked := range sample {
		trial := ranked.Trial
		if trial.MinAge != nil {
			minAges = append(minAges, *trial.MinAge)
		}
		if trial.MaxAge != nil {
			maxAges = append(maxAges, *trial.MaxAge)
		}
		if trial.Enrollment > 0 {
			enrollments = append(enrollments, trial.Enrollment)
		}
		if len(trial.EligibleGenders) == 0 {
			openGenders = true
		}
		for _, g := range trial.EligibleGenders {
			g = strings.ToLower(strings.TrimSpace(g))
			if g == "" || g == domain.GenderAll {
				openGenders = true
				continue
			}
			genderSet[g] = struct{}{}
		}
		for _, c := range trial.Conditions {
			if normalized := normalizeConditionText(c); normalized != "" {
				conditionSet[normalized] = struct{}{}
			}
		}
	}

	criteria := domain.EligibilityCriteria{
		TargetEnrollment: requestedEnrollment,
	}

	minAge := cfg.DefaultMinAge
	if len(minAges) >= 2 {
		minAge = minAges[0]
		for _, age := range minAges[1:] {
			if age < minAge {
				minAge = age
			}
		}
	}
	maxAge := cfg.DefaultMaxAge
	if len(maxAges) >= 2 {
		maxAge = maxAges[0]
		for _, age := range maxAges[1:] {
			if age > maxAge {
				maxAge = age
			}
		}
	}
	// Contradictory declared bounds fall back to the wide default band.
	if minAge > maxAge {
		minAge = cfg.DefaultMinAge
		maxAge = cfg.DefaultMaxAge
	}
	criteria.MinAge = &minAge
	criteria.MaxAge = &maxAge

	if openGenders || len(genderSet) == 0 {
		criteria.Genders = []string{domain.GenderAll}
	} else {
		criteria.Genders = make([]string, 0, len(genderSet))
		for g := range genderSet {
			criteria.Genders = append(criteria.Genders, g)
		}
		sort.Strings(criteria.Genders)
	}

	criteria.Conditions = make([]string, 0, len(conditionSet))
	for c := range conditionSet {
		criteria.Conditions = append(criteria.Conditions, c)
	}
	sort.Strings(criteria.Conditions)

	if criteria.TargetEnrollment <= 0 {
		criteria.TargetEnrollment = medianInt(enrollments)
	}
	if criteria.TargetEnrollment <= 0 {
		criteria.TargetEnrollment = cfg.DefaultEnrollment
	}

	return criteria, nil
}

// medianInt returns the rounded median, zero for an empty slice.
func medianInt(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return int(math.Round(float64(sorted[mid-1]+sorted[mid]) / 2.0))
}
