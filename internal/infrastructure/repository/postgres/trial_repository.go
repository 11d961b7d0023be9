package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

type TrialRepository struct {
	db *sql.DB
}

func NewTrialRepository(db *sql.DB) *TrialRepository {
	return &TrialRepository{db: db}
}

func (r *TrialRepository) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS trials (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	phase TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	sponsor TEXT NOT NULL DEFAULT '',
	conditions JSONB NOT NULL DEFAULT '[]'::jsonb,
	min_age INTEGER,
	max_age INTEGER,
	eligible_genders JSONB NOT NULL DEFAULT '[]'::jsonb,
	inclusion_criteria TEXT NOT NULL DEFAULT '',
	exclusion_criteria TEXT NOT NULL DEFAULT '',
	locations JSONB NOT NULL DEFAULT '[]'::jsonb,
	enrollment INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trials_status ON trials(status);
CREATE INDEX IF NOT EXISTS idx_trials_updated_at ON trials(updated_at DESC);
`
	return execSchemaDDL(ctx, r.db, query)
}

const trialColumns = `id, title, description, phase, status, sponsor, conditions, min_age, max_age, eligible_genders, inclusion_criteria, exclusion_criteria, locations, enrollment, created_at, updated_at`

func (r *TrialRepository) UpsertTrial(ctx context.Context, trial *domain.TrialRecord) error {
	conditionsJSON, err := json.Marshal(trial.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	gendersJSON, err := json.Marshal(trial.EligibleGenders)
	if err != nil {
		return fmt.Errorf("marshal eligible genders: %w", err)
	}
	locationsJSON, err := json.Marshal(trial.Locations)
	if err != nil {
		return fmt.Errorf("marshal locations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO trials (`+trialColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	phase = EXCLUDED.phase,
	status = EXCLUDED.status,
	sponsor = EXCLUDED.sponsor,
	conditions = EXCLUDED.conditions,
	min_age = EXCLUDED.min_age,
	max_age = EXCLUDED.max_age,
	eligible_genders = EXCLUDED.eligible_genders,
	inclusion_criteria = EXCLUDED.inclusion_criteria,
	exclusion_criteria = EXCLUDED.exclusion_criteria,
	locations = EXCLUDED.locations,
	enrollment = EXCLUDED.enrollment,
	updated_at = EXCLUDED.updated_at
`,
		trial.ID, trial.Title, trial.Description, trial.Phase, trial.Status, trial.Sponsor, conditionsJSON,
		trial.MinAge, trial.MaxAge, gendersJSON, trial.InclusionCriteria, trial.ExclusionCriteria,
		locationsJSON, trial.Enrollment, trial.CreatedAt, trial.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert trial: %w", err)
	}
	return nil
}

func (r *TrialRepository) GetTrial(ctx context.Context, id string) (*domain.TrialRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+trialColumns+`
FROM trials
WHERE id = $1
`, id)

	trial, err := scanTrial(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrTrialNotFound, "get trial", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get trial: %w", err)
	}
	return &trial, nil
}

func (r *TrialRepository) ListTrialsByIDs(ctx context.Context, ids []string) ([]domain.TrialRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := `
SELECT ` + trialColumns + `
FROM trials
WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TrialRecord, 0, len(ids))
	for rows.Next() {
		trial, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trial)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trials: %w", err)
	}
	return out, nil
}

type trialScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrial(row trialScanner) (domain.TrialRecord, error) {
	var trial domain.TrialRecord
	var conditionsRaw, gendersRaw, locationsRaw []byte

	err := row.Scan(
		&trial.ID,
		&trial.Title,
		&trial.Description,
		&trial.Phase,
		&trial.Status,
		&trial.Sponsor,
		&conditionsRaw,
		&trial.MinAge,
		&trial.MaxAge,
		&gendersRaw,
		&trial.InclusionCriteria,
		&trial.ExclusionCriteria,
		&locationsRaw,
		&trial.Enrollment,
		&trial.CreatedAt,
		&trial.UpdatedAt,
	)
	if err != nil {
		return domain.TrialRecord{}, err
	}

	if err := json.Unmarshal(conditionsRaw, &trial.Conditions); err != nil {
		return domain.TrialRecord{}, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal(gendersRaw, &trial.EligibleGenders); err != nil {
		return domain.TrialRecord{}, fmt.Errorf("unmarshal eligible genders: %w", err)
	}
	if err := json.Unmarshal(locationsRaw, &trial.Locations); err != nil {
		return domain.TrialRecord{}, fmt.Errorf("unmarshal locations: %w", err)
	}
	return trial, nil
}
