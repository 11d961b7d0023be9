package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

var (
	patientColumnNames   = []string{"id", "age", "gender", "race", "state", "zip_code", "created_at", "updated_at"}
	conditionColumnNames = []string{"id", "patient_id", "code", "name", "status", "onset", "created_at"}
)

func newPatientRepoWithMock(t *testing.T) (*PatientRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &PatientRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetPatientReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newPatientRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, age, gender").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetPatient(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSnapshotGroupsConditionsByPatient(t *testing.T) {
	repo, mock, done := newPatientRepoWithMock(t)
	defer done()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM patients").WillReturnRows(
		sqlmock.NewRows(patientColumnNames).
			AddRow("p-1", 45, "male", "", "CA", "", now, now).
			AddRow("p-2", 60, "female", "", "NY", "", now, now),
	)
	mock.ExpectQuery("FROM patient_conditions").WillReturnRows(
		sqlmock.NewRows(conditionColumnNames).
			AddRow("c-1", "p-1", "J45", "Asthma", "active", nil, now).
			AddRow("c-2", "p-1", "I10", "Hypertension", "active", nil, now.Add(time.Minute)).
			AddRow("c-3", "p-2", "E11", "Type 2 Diabetes", "active", nil, now),
	)
	mock.ExpectCommit()

	snapshot, err := repo.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snapshot.Patients) != 2 {
		t.Fatalf("expected 2 patients, got %d", len(snapshot.Patients))
	}
	first := snapshot.ConditionsFor("p-1")
	if len(first) != 2 || first[0].Name != "Asthma" || first[1].Name != "Hypertension" {
		t.Fatalf("unexpected conditions for p-1: %+v", first)
	}
	if len(snapshot.ConditionsFor("p-2")) != 1 {
		t.Fatalf("unexpected conditions for p-2: %+v", snapshot.ConditionsFor("p-2"))
	}
	if snapshot.ConditionsFor("p-3") != nil {
		t.Fatalf("expected nil conditions for unknown patient")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSnapshotRollsBackOnQueryFailure(t *testing.T) {
	repo, mock, done := newPatientRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM patients").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.Snapshot(context.Background())
	if err == nil || !strings.Contains(err.Error(), "snapshot patients") {
		t.Fatalf("expected snapshot patients error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAddConditionIgnoresDuplicates(t *testing.T) {
	repo, mock, done := newPatientRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO patient_conditions").
		WithArgs("c-1", "p-1", "J45", "Asthma", "active", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AddCondition(context.Background(), &domain.ConditionEntry{
		ID:        "c-1",
		PatientID: "p-1",
		Code:      "J45",
		Name:      "Asthma",
		Status:    "active",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AddCondition() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListConditionsScansOnset(t *testing.T) {
	repo, mock, done := newPatientRepoWithMock(t)
	defer done()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	onset := time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM patient_conditions").
		WithArgs("p-1").
		WillReturnRows(
			sqlmock.NewRows(conditionColumnNames).
				AddRow("c-1", "p-1", "J45", "Asthma", "active", onset, now).
				AddRow("c-2", "p-1", "", "Migraine", "", nil, now),
		)

	conditions, err := repo.ListConditions(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("ListConditions() error = %v", err)
	}
	if len(conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(conditions))
	}
	if conditions[0].Onset == nil || !conditions[0].Onset.Equal(onset) {
		t.Fatalf("expected onset preserved, got %v", conditions[0].Onset)
	}
	if conditions[1].Onset != nil {
		t.Fatalf("expected nil onset, got %v", conditions[1].Onset)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
