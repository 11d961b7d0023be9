package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/athreya-m/trialmatch/internal/core/domain"
	"github.com/athreya-m/trialmatch/internal/core/ports"
)

type RetrievalConfig struct {
	TopK          int
	Candidates    int
	Strategy      string
	RRFK          int
	DenseWeight   float64
	DefaultStatus string

	// AllowDegraded permits single-leg results when the other retrieval
	// leg fails. Off by default: a failed leg aborts the search.
	AllowDegraded bool
}

func (c RetrievalConfig) normalized() RetrievalConfig {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.Candidates <= 0 {
		c.Candidates = 30
	}
	if c.Strategy != fusionStrategyWeighted {
		c.Strategy = fusionStrategyRRF
	}
	if c.RRFK <= 0 {
		c.RRFK = 60
	}
	if c.DenseWeight <= 0 || c.DenseWeight >= 1 {
		c.DenseWeight = 0.7
	}
	return c
}

// SearchUseCase retrieves trials for a free-text study description. Both
// retrieval legs run against the same filtered candidate pool; fusion and
// per-trial collapse happen here, never in the index.
type SearchUseCase struct {
	embedder ports.Embedder
	index    ports.TrialIndex
	catalog  ports.TrialCatalog
	cfg      RetrievalConfig
	logger   *slog.Logger
}

func NewSearchUseCase(
	embedder ports.Embedder,
	index ports.TrialIndex,
	catalog ports.TrialCatalog,
	cfg RetrievalConfig,
	logger *slog.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		embedder: embedder,
		index:    index,
		catalog:  catalog,
		cfg:      cfg.normalized(),
		logger:   logger,
	}
}

func (uc *SearchUseCase) Search(
	ctx context.Context,
	query string,
	topK int,
	filter domain.SearchFilter,
) ([]domain.RankedTrial, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search trials", errors.New("query text is required"))
	}
	if topK <= 0 {
		topK = uc.cfg.TopK
	}
	if filter.Status == "" {
		filter.Status = uc.cfg.DefaultStatus
	}

	fused, err := uc.retrieveFused(ctx, query, filter)
	if err != nil {
		return nil, err
	}

	trials, err := hydrateTrials(ctx, uc.catalog, collapseByTrial(fused))
	if err != nil {
		return nil, err
	}
	sortRankedTrials(trials)
	return trimRankedTrials(trials, topK), nil
}

// retrieveFused runs the dense and sparse legs over the candidate pool and
// fuses them with the configured strategy.
func (uc *SearchUseCase) retrieveFused(
	ctx context.Context,
	query string,
	filter domain.SearchFilter,
) ([]domain.ScoredSegment, error) {
	candidates := uc.cfg.Candidates

	var (
		dense    []domain.ScoredSegment
		denseErr error
	)
	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		denseErr = domain.WrapError(domain.ErrSimilarityUnavailable, "embed search query", err)
	} else {
		dense, err = uc.index.SearchDense(ctx, vector, candidates, filter)
		if err != nil {
			denseErr = domain.WrapError(domain.ErrRetrievalUnavailable, "dense retrieval", err)
		}
	}

	sparse, err := uc.index.SearchSparse(ctx, query, candidates, filter)
	sparseErr := domain.WrapError(domain.ErrRetrievalUnavailable, "sparse retrieval", err)

	switch {
	case denseErr != nil && sparseErr != nil:
		return nil, denseErr
	case denseErr != nil:
		if !uc.cfg.AllowDegraded {
			return nil, denseErr
		}
		uc.logger.Warn("dense retrieval leg failed, serving sparse-only results", "error", denseErr)
		return trimSegments(sparse, candidates), nil
	case sparseErr != nil:
		if !uc.cfg.AllowDegraded {
			return nil, sparseErr
		}
		uc.logger.Warn("sparse retrieval leg failed, serving dense-only results", "error", sparseErr)
		return trimSegments(dense, candidates), nil
	}

	var fused []domain.ScoredSegment
	if uc.cfg.Strategy == fusionStrategyWeighted {
		fused = fuseSegmentsWeighted(dense, sparse, uc.cfg.DenseWeight)
	} else {
		fused = fuseSegmentsRRF(dense, sparse, uc.cfg.RRFK)
	}
	return trimSegments(fused, candidates), nil
}
