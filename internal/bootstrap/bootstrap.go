// Package bootstrap wires configuration, infrastructure, and usecases into
// one App shared by the api, worker, mcp, and loader entrypoints.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/athreya-m/trialmatch/internal/config"
	"github.com/athreya-m/trialmatch/internal/core/ports"
	"github.com/athreya-m/trialmatch/internal/core/usecase"
	"github.com/athreya-m/trialmatch/internal/infrastructure/chunking"
	"github.com/athreya-m/trialmatch/internal/infrastructure/embedding"
	"github.com/athreya-m/trialmatch/internal/infrastructure/embedding/ollama"
	"github.com/athreya-m/trialmatch/internal/infrastructure/embedding/openai"
	"github.com/athreya-m/trialmatch/internal/infrastructure/queue/nats"
	"github.com/athreya-m/trialmatch/internal/infrastructure/repository/postgres"
	"github.com/athreya-m/trialmatch/internal/infrastructure/resilience"
	"github.com/athreya-m/trialmatch/internal/infrastructure/vector/qdrant"
)

// Options carries per-binary wiring that config alone cannot express: the
// metrics sinks differ between the api and worker processes.
type Options struct {
	Logger            *slog.Logger
	EmbedCacheCounter *prometheus.CounterVec
	OnQueueLag        func(time.Duration)
}

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Registry ports.PatientRegistry
	Catalog  ports.TrialCatalog

	SearchUC   ports.TrialSearcher
	EvaluateUC ports.PopulationEvaluator
	AnalyzeUC  ports.FeasibilityAnalyzer
	MatchUC    ports.PatientMatcher
	IndexUC    ports.TrialIndexer

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	patients := postgres.NewPatientRepository(db)
	trials := postgres.NewTrialRepository(db)
	if err := patients.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure patient schema: %w", err)
	}
	if err := trials.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure trial schema: %w", err)
	}

	exec := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup:         cfg.NATSQueueGroup,
		ResilienceExecutor: exec,
		OnQueueLag:         opts.OnQueueLag,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder := buildEmbedder(cfg, exec, opts.EmbedCacheCounter)
	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	chunker := chunking.NewSplitter(cfg.ChunkMaxChars)

	searchUC := usecase.NewSearchUseCase(embedder, index, trials, usecase.RetrievalConfig{
		TopK:          cfg.SearchTopK,
		Candidates:    cfg.SearchCandidates,
		Strategy:      cfg.FusionStrategy,
		RRFK:          cfg.FusionRRFK,
		DenseWeight:   cfg.FusionDenseWeight,
		DefaultStatus: cfg.SearchStatusDefault,
		AllowDegraded: cfg.SearchSparseFallback,
	}, logger)

	evaluator, err := usecase.NewEligibilityEvaluator(embedder, usecase.EvaluationConfig{
		SimilarityThreshold: cfg.SimilarityThreshold,
		Workers:             cfg.EvalWorkers,
	}, logger)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init eligibility evaluator: %w", err)
	}

	evaluateUC := usecase.NewEvaluateUseCase(patients, evaluator, usecase.FeasibilityConfig{
		HighRatio: cfg.FeasibilityHighRatio,
		LowRatio:  cfg.FeasibilityLowRatio,
	}, cfg.ResultPatientLimit, logger)

	analyzeUC := usecase.NewAnalyzeUseCase(searchUC, evaluateUC, usecase.CriteriaConfig{
		SampleTrials:      cfg.CriteriaSampleTrials,
		DefaultMinAge:     cfg.CriteriaDefaultMinAge,
		DefaultMaxAge:     cfg.CriteriaDefaultMaxAge,
		DefaultEnrollment: cfg.CriteriaDefaultEnrollment,
	}, logger)

	matchUC := usecase.NewMatchPatientUseCase(patients, embedder, index, trials, usecase.MatchConfig{
		TopK:          cfg.SearchTopK,
		MinScore:      cfg.MinTrialScore,
		DefaultStatus: cfg.SearchStatusDefault,
	}, logger)

	indexUC := usecase.NewIndexTrialUseCase(trials, chunker, embedder, index)

	return &App{
		Config: cfg,

		Queue:    queue,
		Registry: patients,
		Catalog:  trials,

		SearchUC:   searchUC,
		EvaluateUC: evaluateUC,
		AnalyzeUC:  analyzeUC,
		MatchUC:    matchUC,
		IndexUC:    indexUC,

		closeFn: func() {
			evaluator.Close()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// buildEmbedder assembles the provider chain: provider client, optional
// throttle, then the cache. The cache sits outermost so hits skip the
// throttle entirely.
func buildEmbedder(cfg config.Config, exec *resilience.Executor, cacheCounter *prometheus.CounterVec) ports.Embedder {
	var (
		embedder ports.Embedder
		model    string
	)
	if strings.EqualFold(cfg.EmbedProvider, "openai") {
		model = cfg.OpenAIEmbedModel
		embedder = openai.NewEmbedder(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   model,
		}, exec)
	} else {
		model = cfg.OllamaEmbedModel
		embedder = ollama.New(cfg.OllamaURL, model, exec)
	}

	if cfg.EmbedRateRPS > 0 {
		embedder = embedding.NewThrottledEmbedder(embedder, float64(cfg.EmbedRateRPS), cfg.EmbedRateBurst)
	}
	return embedding.NewCachedEmbedder(embedder, model, cfg.EmbedCacheSize, cacheCounter)
}
