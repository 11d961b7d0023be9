package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

// ReadTrials decodes the JSON trial corpus. Status and gender values are
// normalized to the lowercase forms the matcher compares against.
func ReadTrials(path string) ([]domain.TrialRecord, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read trials: %w", err)
	}

	var trials []domain.TrialRecord
	if err := json.Unmarshal(raw, &trials); err != nil {
		return nil, fmt.Errorf("parse trials: %w", err)
	}

	out := make([]domain.TrialRecord, 0, len(trials))
	for _, trial := range trials {
		if strings.TrimSpace(trial.ID) == "" {
			continue
		}
		trial.ID = strings.TrimSpace(trial.ID)
		trial.Status = normalizeLower(trial.Status)
		for i, gender := range trial.EligibleGenders {
			trial.EligibleGenders[i] = normalizeLower(gender)
		}
		out = append(out, trial)
	}
	return out, nil
}

func normalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
