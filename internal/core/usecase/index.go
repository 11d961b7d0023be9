package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/athreya-m/trialmatch/internal/core/domain"
	"github.com/athreya-m/trialmatch/internal/core/ports"
)

// IndexTrialUseCase turns one catalog trial into indexed segments: chunk,
// embed, upsert. It is driven by the queue worker.
type IndexTrialUseCase struct {
	catalog  ports.TrialCatalog
	chunker  ports.Chunker
	embedder ports.Embedder
	index    ports.TrialIndex
}

func NewIndexTrialUseCase(
	catalog ports.TrialCatalog,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.TrialIndex,
) *IndexTrialUseCase {
	return &IndexTrialUseCase{
		catalog:  catalog,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
	}
}

// IndexTrialByID returns the number of segments written to the index.
func (uc *IndexTrialUseCase) IndexTrialByID(ctx context.Context, trialID string) (int, error) {
	trial, err := uc.catalog.GetTrial(ctx, trialID)
	if err != nil {
		return 0, fmt.Errorf("fetch trial by id: %w", err)
	}

	segments := uc.chunker.Split(trial)
	if len(segments) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk trial", errors.New("chunking produced zero segments"))
	}

	texts := make([]string, 0, len(segments))
	for _, segment := range segments {
		texts = append(texts, segment.Text)
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed segments: %w", err)
	}
	if len(vectors) != len(segments) {
		return 0, domain.WrapError(
			domain.ErrInvalidInput,
			"embed segments",
			fmt.Errorf("vectors/segments mismatch: %d/%d", len(vectors), len(segments)),
		)
	}

	if err := uc.index.IndexSegments(ctx, trial, segments, vectors); err != nil {
		return 0, fmt.Errorf("index segments: %w", err)
	}
	return len(segments), nil
}
