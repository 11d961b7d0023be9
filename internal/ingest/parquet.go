package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

// patientRow is the raw parquet schema of patients.parquet.
type patientRow struct {
	ID      string `parquet:"id"`
	Age     int32  `parquet:"age"`
	Gender  string `parquet:"gender,optional"`
	Race    string `parquet:"race,optional"`
	State   string `parquet:"state,optional"`
	ZipCode string `parquet:"zip_code,optional"`
}

// conditionRow is the raw parquet schema of conditions.parquet. Rows carry
// no id of their own; the loader assigns one.
type conditionRow struct {
	PatientID string `parquet:"patient_id"`
	Code      string `parquet:"code,optional"`
	Name      string `parquet:"name"`
	Status    string `parquet:"status,optional"`
	Onset     string `parquet:"onset,optional"`
}

func ReadPatients(path string) ([]domain.PatientRecord, error) {
	rows, err := readParquet[patientRow](path)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PatientRecord, 0, len(rows))
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		out = append(out, domain.PatientRecord{
			ID:      row.ID,
			Age:     int(row.Age),
			Gender:  normalizeLower(row.Gender),
			Race:    row.Race,
			State:   row.State,
			ZipCode: row.ZipCode,
		})
	}
	return out, nil
}

func ReadConditions(path string) ([]domain.ConditionEntry, error) {
	rows, err := readParquet[conditionRow](path)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ConditionEntry, 0, len(rows))
	for _, row := range rows {
		if row.PatientID == "" || row.Name == "" {
			continue
		}
		out = append(out, domain.ConditionEntry{
			PatientID: row.PatientID,
			Code:      row.Code,
			Name:      row.Name,
			Status:    row.Status,
			Onset:     parseOnset(row.Onset),
		})
	}
	return out, nil
}

func readParquet[T any](path string) ([]T, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	reader := parquet.NewGenericReader[T](file)
	defer func() {
		_ = reader.Close()
	}()

	out := make([]T, 0, reader.NumRows())
	buf := make([]T, 256)
	for {
		n, readErr := reader.Read(buf)
		out = append(out, buf[:n]...)
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read parquet rows: %w", readErr)
		}
	}
	return out, nil
}

// parseOnset accepts the date formats seen in exported condition files and
// returns nil for anything else.
func parseOnset(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}
