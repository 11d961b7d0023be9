package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

var trialColumnNames = []string{
	"id", "title", "description", "phase", "status", "sponsor", "conditions",
	"min_age", "max_age", "eligible_genders", "inclusion_criteria",
	"exclusion_criteria", "locations", "enrollment", "created_at", "updated_at",
}

func newTrialRepoWithMock(t *testing.T) (*TrialRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &TrialRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetTrialReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newTrialRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, title, description").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetTrial(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTrialNotFound) {
		t.Fatalf("expected ErrTrialNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetTrialScansRecord(t *testing.T) {
	repo, mock, done := newTrialRepoWithMock(t)
	defer done()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(trialColumnNames).AddRow(
		"NCT001", "Asthma Trial", "A study of severe asthma.", "Phase 3", "recruiting", "Acme",
		[]byte(`["severe asthma"]`), 18, nil, []byte(`["all"]`),
		"Adults with asthma", "Prior biologic use", []byte(`["CA","NY"]`), 120, now, now,
	)
	mock.ExpectQuery("SELECT id, title, description").
		WithArgs("NCT001").
		WillReturnRows(rows)

	trial, err := repo.GetTrial(context.Background(), "NCT001")
	if err != nil {
		t.Fatalf("GetTrial() error = %v", err)
	}
	if trial.Title != "Asthma Trial" || trial.Status != "recruiting" {
		t.Fatalf("unexpected trial: %+v", trial)
	}
	if trial.MinAge == nil || *trial.MinAge != 18 {
		t.Fatalf("expected min age 18, got %v", trial.MinAge)
	}
	if trial.MaxAge != nil {
		t.Fatalf("expected nil max age, got %v", trial.MaxAge)
	}
	if len(trial.Conditions) != 1 || trial.Conditions[0] != "severe asthma" {
		t.Fatalf("unexpected conditions: %v", trial.Conditions)
	}
	if len(trial.Locations) != 2 {
		t.Fatalf("unexpected locations: %v", trial.Locations)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListTrialsByIDsSkipsQueryForEmptyInput(t *testing.T) {
	repo, mock, done := newTrialRepoWithMock(t)
	defer done()

	trials, err := repo.ListTrialsByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTrialsByIDs() error = %v", err)
	}
	if trials != nil {
		t.Fatalf("expected nil result, got %v", trials)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListTrialsByIDsBindsEveryID(t *testing.T) {
	repo, mock, done := newTrialRepoWithMock(t)
	defer done()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(trialColumnNames).
		AddRow("NCT001", "First", "", "", "recruiting", "", []byte(`[]`), nil, nil, []byte(`[]`), "", "", []byte(`[]`), 0, now, now).
		AddRow("NCT002", "Second", "", "", "completed", "", []byte(`[]`), nil, nil, []byte(`[]`), "", "", []byte(`[]`), 0, now, now)
	mock.ExpectQuery("FROM trials").
		WithArgs("NCT001", "NCT002").
		WillReturnRows(rows)

	trials, err := repo.ListTrialsByIDs(context.Background(), []string{"NCT001", "NCT002"})
	if err != nil {
		t.Fatalf("ListTrialsByIDs() error = %v", err)
	}
	if len(trials) != 2 || trials[0].ID != "NCT001" || trials[1].ID != "NCT002" {
		t.Fatalf("unexpected trials: %+v", trials)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertTrialWritesAllColumns(t *testing.T) {
	repo, mock, done := newTrialRepoWithMock(t)
	defer done()

	minAge := 18
	mock.ExpectExec("INSERT INTO trials").
		WithArgs(
			"NCT001", "Asthma Trial", "Desc", "Phase 3", "recruiting", "Acme",
			[]byte(`["severe asthma"]`), 18, nil, sqlmock.AnyArg(),
			"incl", "excl", sqlmock.AnyArg(), 120, sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertTrial(context.Background(), &domain.TrialRecord{
		ID:                "NCT001",
		Title:             "Asthma Trial",
		Description:       "Desc",
		Phase:             "Phase 3",
		Status:            "recruiting",
		Sponsor:           "Acme",
		Conditions:        []string{"severe asthma"},
		MinAge:            &minAge,
		EligibleGenders:   []string{"all"},
		InclusionCriteria: "incl",
		ExclusionCriteria: "excl",
		Locations:         []string{"CA"},
		Enrollment:        120,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertTrial() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
