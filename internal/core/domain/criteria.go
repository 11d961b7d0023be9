package domain

// EligibilityCriteria is the consolidated constraint set derived from a
// trial sample or supplied directly by a caller. Nil age bounds are open.
type EligibilityCriteria struct {
	MinAge           *int     `json:"min_age,omitempty"`
	MaxAge           *int     `json:"max_age,omitempty"`
	Genders          []string `json:"genders"`
	Conditions       []string `json:"conditions"`
	TargetEnrollment int      `json:"target_enrollment"`
}

// Empty reports whether the criteria constrain nothing: no age bounds, no
// gender restriction beyond "all", and no condition terms. Empty criteria
// admit every patient.
func (c EligibilityCriteria) Empty() bool {
	if c.MinAge != nil || c.MaxAge != nil {
		return false
	}
	if len(c.Conditions) > 0 {
		return false
	}
	for _, g := range c.Genders {
		if g != GenderAll {
			return false
		}
	}
	return true
}

// RestrictsGender reports whether the gender set excludes anyone.
func (c EligibilityCriteria) RestrictsGender() bool {
	if len(c.Genders) == 0 {
		return false
	}
	for _, g := range c.Genders {
		if g == GenderAll {
			return false
		}
	}
	return true
}
