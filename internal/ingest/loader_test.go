package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

type loaderRegistryFake struct {
	existing   map[string]bool
	patients   []domain.PatientRecord
	conditions []domain.ConditionEntry
}

func (f *loaderRegistryFake) UpsertPatient(_ context.Context, patient *domain.PatientRecord) error {
	f.patients = append(f.patients, *patient)
	return nil
}

func (f *loaderRegistryFake) AddCondition(_ context.Context, condition *domain.ConditionEntry) error {
	f.conditions = append(f.conditions, *condition)
	return nil
}

func (f *loaderRegistryFake) GetPatient(_ context.Context, id string) (*domain.PatientRecord, error) {
	if f.existing[id] {
		return &domain.PatientRecord{ID: id}, nil
	}
	return nil, domain.WrapError(domain.ErrPatientNotFound, "get patient", errors.New("id="+id))
}

func (f *loaderRegistryFake) ListConditions(context.Context, string) ([]domain.ConditionEntry, error) {
	return nil, nil
}

func (f *loaderRegistryFake) Snapshot(context.Context) (domain.RegistrySnapshot, error) {
	return domain.RegistrySnapshot{}, nil
}

type loaderCatalogFake struct {
	trials []domain.TrialRecord
}

func (f *loaderCatalogFake) UpsertTrial(_ context.Context, trial *domain.TrialRecord) error {
	f.trials = append(f.trials, *trial)
	return nil
}

func (f *loaderCatalogFake) GetTrial(context.Context, string) (*domain.TrialRecord, error) {
	return nil, domain.WrapError(domain.ErrTrialNotFound, "get trial", errors.New("not seeded"))
}

func (f *loaderCatalogFake) ListTrialsByIDs(context.Context, []string) ([]domain.TrialRecord, error) {
	return nil, nil
}

type loaderQueueFake struct {
	published []string
	err       error
}

func (f *loaderQueueFake) PublishTrialIndexRequested(_ context.Context, trialID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, trialID)
	return nil
}

func (f *loaderQueueFake) SubscribeTrialIndexRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func loaderLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTrialsFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "trials.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write trials: %v", err)
	}
	return path
}

func TestLoaderRunSkipsOrphanConditions(t *testing.T) {
	dir := t.TempDir()
	patientsPath := filepath.Join(dir, "patients.parquet")
	writeParquetFile(t, patientsPath, []patientRow{{ID: "p-1", Age: 45, Gender: "male"}})
	conditionsPath := filepath.Join(dir, "conditions.parquet")
	writeParquetFile(t, conditionsPath, []conditionRow{
		{PatientID: "p-1", Name: "Asthma"},
		{PatientID: "p-9", Name: "Migraine"},
	})

	registry := &loaderRegistryFake{}
	loader := NewLoader(registry, &loaderCatalogFake{}, nil, loaderLogger())
	stats, err := loader.Run(context.Background(), Manifest{Patients: patientsPath, Conditions: conditionsPath})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Patients != 1 || stats.Conditions != 1 || stats.OrphanConditions != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(registry.conditions) != 1 || registry.conditions[0].PatientID != "p-1" {
		t.Fatalf("unexpected stored conditions: %+v", registry.conditions)
	}
	if registry.conditions[0].ID == "" {
		t.Fatalf("expected loader to assign condition id")
	}
	if registry.conditions[0].CreatedAt.IsZero() {
		t.Fatalf("expected loader to stamp condition time")
	}
}

func TestLoaderRunAcceptsPatientsFromEarlierLoads(t *testing.T) {
	dir := t.TempDir()
	conditionsPath := filepath.Join(dir, "conditions.parquet")
	writeParquetFile(t, conditionsPath, []conditionRow{{PatientID: "p-7", Name: "Hypertension"}})

	registry := &loaderRegistryFake{existing: map[string]bool{"p-7": true}}
	loader := NewLoader(registry, &loaderCatalogFake{}, nil, loaderLogger())
	stats, err := loader.Run(context.Background(), Manifest{Conditions: conditionsPath})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Conditions != 1 || stats.OrphanConditions != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestLoaderRunPublishesEveryTrial(t *testing.T) {
	dir := t.TempDir()
	trialsPath := writeTrialsFile(t, dir, `[
		{"id": "NCT001", "title": "First", "status": "Recruiting"},
		{"id": "NCT002", "title": "Second", "status": "recruiting"}
	]`)

	catalog := &loaderCatalogFake{}
	queue := &loaderQueueFake{}
	loader := NewLoader(&loaderRegistryFake{}, catalog, queue, loaderLogger())
	stats, err := loader.Run(context.Background(), Manifest{Trials: trialsPath})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Trials != 2 || stats.Published != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(queue.published) != 2 || queue.published[0] != "NCT001" {
		t.Fatalf("unexpected published ids: %v", queue.published)
	}
	if len(catalog.trials) != 2 || catalog.trials[0].UpdatedAt.IsZero() {
		t.Fatalf("expected trials stamped and stored, got %+v", catalog.trials)
	}
}

func TestLoaderRunContinuesWhenPublishFails(t *testing.T) {
	dir := t.TempDir()
	trialsPath := writeTrialsFile(t, dir, `[{"id": "NCT001", "title": "First", "status": "recruiting"}]`)

	queue := &loaderQueueFake{err: errors.New("nats down")}
	loader := NewLoader(&loaderRegistryFake{}, &loaderCatalogFake{}, queue, loaderLogger())
	stats, err := loader.Run(context.Background(), Manifest{Trials: trialsPath})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if stats.Trials != 1 || stats.Published != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestLoaderRunWithoutQueue(t *testing.T) {
	dir := t.TempDir()
	trialsPath := writeTrialsFile(t, dir, `[{"id": "NCT001", "title": "First", "status": "recruiting"}]`)

	loader := NewLoader(&loaderRegistryFake{}, &loaderCatalogFake{}, nil, loaderLogger())
	stats, err := loader.Run(context.Background(), Manifest{Trials: trialsPath})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Published != 0 {
		t.Fatalf("expected nothing published without queue, got %+v", stats)
	}
}
