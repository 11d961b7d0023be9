package ports

import (
	"context"

	"github.com/athreya-m/trialmatch/internal/core/domain"
)

// TrialIndex stores trial segments with dense and sparse vectors and serves
// both retrieval legs. Implementations apply the filter inside the query,
// never on the returned page.
type TrialIndex interface {
	IndexSegments(ctx context.Context, trial *domain.TrialRecord, segments []domain.TrialSegment, vectors [][]float32) error
	SearchDense(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredSegment, error)
	SearchSparse(ctx context.Context, queryText string, limit int, filter domain.SearchFilter) ([]domain.ScoredSegment, error)
}

// TrialCatalog persists and reads trial records.
type TrialCatalog interface {
	UpsertTrial(ctx context.Context, trial *domain.TrialRecord) error
	GetTrial(ctx context.Context, id string) (*domain.TrialRecord, error)
	ListTrialsByIDs(ctx context.Context, ids []string) ([]domain.TrialRecord, error)
}

// PatientRegistry persists patients and their conditions. Snapshot returns
// one transactionally consistent view of the whole registry.
type PatientRegistry interface {
	UpsertPatient(ctx context.Context, patient *domain.PatientRecord) error
	AddCondition(ctx context.Context, condition *domain.ConditionEntry) error
	GetPatient(ctx context.Context, id string) (*domain.PatientRecord, error)
	ListConditions(ctx context.Context, patientID string) ([]domain.ConditionEntry, error)
	Snapshot(ctx context.Context) (domain.RegistrySnapshot, error)
}

// Embedder builds vectors for segment and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits a trial record into indexable segments.
type Chunker interface {
	Split(trial *domain.TrialRecord) []domain.TrialSegment
}

// MessageQueue publishes/consumes trial indexing events.
type MessageQueue interface {
	PublishTrialIndexRequested(ctx context.Context, trialID string) error
	SubscribeTrialIndexRequested(ctx context.Context, handler func(context.Context, string) error) error
}
