package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

func writeParquetFile[T any](t *testing.T, path string, rows []T) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(rows); err != nil {
		t.Fatalf("write rows: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
}

func TestReadPatientsMapsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.parquet")
	writeParquetFile(t, path, []patientRow{
		{ID: "p-1", Age: 45, Gender: "Male", Race: "white", State: "CA", ZipCode: "94110"},
		{ID: "p-2", Age: 61, Gender: "FEMALE", State: "NY"},
		{Age: 30, Gender: "male"},
	})

	patients, err := ReadPatients(path)
	if err != nil {
		t.Fatalf("ReadPatients() error = %v", err)
	}
	if len(patients) != 2 {
		t.Fatalf("expected row without id skipped, got %d patients", len(patients))
	}
	if patients[0].ID != "p-1" || patients[0].Age != 45 || patients[0].Gender != "male" {
		t.Fatalf("unexpected first patient: %+v", patients[0])
	}
	if patients[1].Gender != "female" || patients[1].State != "NY" {
		t.Fatalf("unexpected second patient: %+v", patients[1])
	}
}

func TestReadConditionsParsesOnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conditions.parquet")
	writeParquetFile(t, path, []conditionRow{
		{PatientID: "p-1", Code: "J45", Name: "Asthma", Status: "active", Onset: "2020-03-15"},
		{PatientID: "p-1", Name: "Migraine"},
		{Name: "No Patient"},
		{PatientID: "p-2"},
	})

	conditions, err := ReadConditions(path)
	if err != nil {
		t.Fatalf("ReadConditions() error = %v", err)
	}
	if len(conditions) != 2 {
		t.Fatalf("expected incomplete rows skipped, got %d conditions", len(conditions))
	}

	first := conditions[0]
	if first.Name != "Asthma" || first.Code != "J45" {
		t.Fatalf("unexpected condition: %+v", first)
	}
	wantOnset := time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)
	if first.Onset == nil || !first.Onset.Equal(wantOnset) {
		t.Fatalf("expected onset %v, got %v", wantOnset, first.Onset)
	}
	if conditions[1].Onset != nil {
		t.Fatalf("expected nil onset for empty value, got %v", conditions[1].Onset)
	}
}

func TestParseOnset(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  *time.Time
	}{
		{"empty", "", nil},
		{"garbage", "not a date", nil},
		{"date only", "2021-07-04", timePtr(time.Date(2021, 7, 4, 0, 0, 0, 0, time.UTC))},
		{"rfc3339", "2021-07-04T10:30:00Z", timePtr(time.Date(2021, 7, 4, 10, 30, 0, 0, time.UTC))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseOnset(tt.value)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("parseOnset(%q) = %v, want %v", tt.value, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Fatalf("parseOnset(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}
