package domain

import "time"

type PatientRecord struct {
	ID        string    `json:"id"`
	Age       int       `json:"age"`
	Gender    string    `json:"gender"`
	Race      string    `json:"race,omitempty"`
	State     string    `json:"state,omitempty"`
	ZipCode   string    `json:"zip_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ConditionEntry struct {
	ID        string     `json:"id"`
	PatientID string     `json:"patient_id"`
	Code      string     `json:"code,omitempty"`
	Name      string     `json:"name"`
	Status    string     `json:"status,omitempty"`
	Onset     *time.Time `json:"onset,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// RegistrySnapshot is one consistent read of the patient registry: every
// patient plus their recorded conditions, taken inside a single transaction
// so an evaluation never observes a half-updated registry.
type RegistrySnapshot struct {
	Patients   []PatientRecord
	Conditions map[string][]ConditionEntry
}

// ConditionsFor returns the recorded conditions of one patient, nil when
// none are on file.
func (s RegistrySnapshot) ConditionsFor(patientID string) []ConditionEntry {
	if s.Conditions == nil {
		return nil
	}
	return s.Conditions[patientID]
}
