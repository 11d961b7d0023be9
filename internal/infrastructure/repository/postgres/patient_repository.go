package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

type PatientRepository struct {
	db *sql.DB
}

func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS patients (
	id TEXT PRIMARY KEY,
	age INTEGER NOT NULL,
	gender TEXT NOT NULL,
	race TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT '',
	zip_code TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS patient_conditions (
	id TEXT PRIMARY KEY,
	patient_id TEXT NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
	code TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT '',
	onset TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_patient_conditions_patient_id ON patient_conditions(patient_id);
`
	return execSchemaDDL(ctx, r.db, query)
}

func (r *PatientRepository) UpsertPatient(ctx context.Context, patient *domain.PatientRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO patients (id, age, gender, race, state, zip_code, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
	age = EXCLUDED.age,
	gender = EXCLUDED.gender,
	race = EXCLUDED.race,
	state = EXCLUDED.state,
	zip_code = EXCLUDED.zip_code,
	updated_at = EXCLUDED.updated_at
`, patient.ID, patient.Age, patient.Gender, patient.Race, patient.State, patient.ZipCode, patient.CreatedAt, patient.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert patient: %w", err)
	}
	return nil
}

// AddCondition is idempotent on the condition id so re-running a load does
// not duplicate history.
func (r *PatientRepository) AddCondition(ctx context.Context, condition *domain.ConditionEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO patient_conditions (id, patient_id, code, name, status, onset, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`, condition.ID, condition.PatientID, condition.Code, condition.Name, condition.Status, condition.Onset, condition.CreatedAt)
	if err != nil {
		return fmt.Errorf("add condition: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetPatient(ctx context.Context, id string) (*domain.PatientRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, age, gender, race, state, zip_code, created_at, updated_at
FROM patients
WHERE id = $1
`, id)

	patient, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPatientNotFound, "get patient", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return &patient, nil
}

func (r *PatientRepository) ListConditions(ctx context.Context, patientID string) ([]domain.ConditionEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, patient_id, code, name, status, onset, created_at
FROM patient_conditions
WHERE patient_id = $1
ORDER BY created_at, id
`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list conditions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConditionEntry, 0)
	for rows.Next() {
		condition, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, condition)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conditions: %w", err)
	}
	return out, nil
}

// Snapshot reads the whole registry inside one repeatable-read transaction
// so concurrent loads never produce a view with a patient but half their
// conditions.
func (r *PatientRepository) Snapshot(ctx context.Context) (domain.RegistrySnapshot, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.RegistrySnapshot{}, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	patients, err := snapshotPatients(ctx, tx)
	if err != nil {
		return domain.RegistrySnapshot{}, err
	}
	conditions, err := snapshotConditions(ctx, tx)
	if err != nil {
		return domain.RegistrySnapshot{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.RegistrySnapshot{}, fmt.Errorf("commit snapshot tx: %w", err)
	}
	return domain.RegistrySnapshot{Patients: patients, Conditions: conditions}, nil
}

func snapshotPatients(ctx context.Context, tx *sql.Tx) ([]domain.PatientRecord, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT id, age, gender, race, state, zip_code, created_at, updated_at
FROM patients
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("snapshot patients: %w", err)
	}
	defer rows.Close()

	out := make([]domain.PatientRecord, 0)
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, patient)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot patients: %w", err)
	}
	return out, nil
}

func snapshotConditions(ctx context.Context, tx *sql.Tx) (map[string][]domain.ConditionEntry, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT id, patient_id, code, name, status, onset, created_at
FROM patient_conditions
ORDER BY patient_id, created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("snapshot conditions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.ConditionEntry)
	for rows.Next() {
		condition, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		out[condition.PatientID] = append(out[condition.PatientID], condition)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot conditions: %w", err)
	}
	return out, nil
}

type patientScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row patientScanner) (domain.PatientRecord, error) {
	var patient domain.PatientRecord
	err := row.Scan(
		&patient.ID,
		&patient.Age,
		&patient.Gender,
		&patient.Race,
		&patient.State,
		&patient.ZipCode,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if err != nil {
		return domain.PatientRecord{}, err
	}
	return patient, nil
}

func scanCondition(row patientScanner) (domain.ConditionEntry, error) {
	var condition domain.ConditionEntry
	err := row.Scan(
		&condition.ID,
		&condition.PatientID,
		&condition.Code,
		&condition.Name,
		&condition.Status,
		&condition.Onset,
		&condition.CreatedAt,
	)
	if err != nil {
		return domain.ConditionEntry{}, err
	}
	return condition, nil
}
