package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"alfredoptarigan/assessment-recommender/internal/config"
	"alfredoptarigan/assessment-recommender/internal/repositories"
	"alfredoptarigan/assessment-recommender/internal/services"
)

// application holds every long-lived service, constructed once per process.
type application struct {
	cfg         *config.Config
	log         *zap.Logger
	registry    *prometheus.Registry
	metrics     *services.Metrics
	gemini      services.GeminiService
	index       services.CatalogIndex
	source      services.CatalogSource
	catalogRepo repositories.CatalogRepository
	indexer     services.Indexer
	recommender *services.Recommender
	closers     []func()
}

func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	a := &application{cfg: cfg, log: log}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = services.NewMetrics(a.registry)

	gemini, err := services.NewGeminiService(ctx, services.GeminiOptions{
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		EmbeddingModel:  cfg.Gemini.EmbeddingModel,
		Dimension:       cfg.Gemini.EmbeddingDimension,
		Temperature:     cfg.Gemini.Temperature,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		CacheSize:       cfg.Gemini.CacheSize,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini: %w", err)
	}
	a.gemini = gemini
	log.Info("gemini initialized", zap.String("model", cfg.Gemini.Model), zap.String("embedding_model", cfg.Gemini.EmbeddingModel))

	switch cfg.Index.Backend {
	case config.IndexBackendMemory:
		a.index = services.NewMemoryIndex()
	default:
		a.index, err = services.NewQdrantIndex(ctx, cfg.Index.URL, cfg.Index.APIKey, cfg.Index.Collection, cfg.Gemini.EmbeddingDimension, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Qdrant: %w", err)
		}
	}
	log.Info("catalog index initialized", zap.String("backend", cfg.Index.Backend), zap.String("name", a.index.Name()))

	if cfg.Catalog.Source == config.CatalogSourcePostgres || cfg.Catalog.SyncDB {
		db, err := config.InitDatabase(cfg, log)
		if err != nil {
			return nil, err
		}
		a.catalogRepo = repositories.NewCatalogRepository(db)
		a.closeOnShutdown(db)
	}

	if cfg.Catalog.Source == config.CatalogSourcePostgres {
		a.source = services.NewDBCatalogSource(a.catalogRepo)
	} else {
		a.source = services.NewJSONCatalogSource(cfg.Catalog.JSONPath, log)
	}

	a.indexer = services.NewIndexer(gemini, a.index, services.IndexerOptions{
		Concurrency:    cfg.Worker.Concurrency,
		EmbedBatchSize: cfg.Worker.EmbeddingBatchSize,
		WriteBatchSize: cfg.Worker.IndexWriteBatchSize,
	}, a.metrics, log)

	var expander *services.QueryExpander
	if cfg.RAG.EnableQueryExpansion {
		expander = services.NewQueryExpander()
	}

	rag := cfg.RAG
	a.recommender = services.NewRecommender(
		services.NewQueryEnricher(services.NewLLMExtractor(gemini, cfg.Gemini.MaxRetries, log), expander, log),
		services.NewRetriever(gemini, a.index, rag.TopK, cfg.Gemini.EmbedTimeout, log),
		services.NewRefiner(gemini, services.RefinerOptions{
			Enabled:          rag.EnableReranking,
			SkipWhenFits:     rag.RerankSkipWhenFits,
			MaxSelect:        rag.MaxSelect,
			CandidateLimit:   rag.RerankCandidateLimit,
			WeightSimilarity: rag.WeightSimilarity,
			WeightJudge:      rag.WeightJudge,
			Timeout:          cfg.Gemini.JudgeTimeout,
			MaxAttempts:      cfg.Gemini.MaxRetries,
			RetryBackoff:     cfg.Gemini.JudgeRetryBackoff,
		}, log),
		services.NewSelector(services.SelectionOptions{
			Policy:            rag.SelectionPolicy,
			MinSelect:         rag.MinSelect,
			MaxSelect:         rag.MaxSelect,
			MaxPerTestType:    rag.MaxPerTestType,
			CoverageScoreBar:  rag.CoverageScoreBar,
			CoverageTopSkills: rag.CoverageTopSkills,
		}),
		services.ThresholdPolicy{
			Primary:   rag.SimilarityThreshold,
			Fallback:  rag.FallbackThreshold,
			MinSelect: rag.MinSelect,
			MaxSelect: rag.MaxSelect,
		},
		a.metrics,
		log,
	)

	return a, nil
}

// syncCatalog copies the JSON catalog into postgres when CATALOG_SYNC_DB is set.
func (a *application) syncCatalog() error {
	if !a.cfg.Catalog.SyncDB || a.cfg.Catalog.Source == config.CatalogSourcePostgres {
		return nil
	}

	items, err := a.source.Load()
	if err != nil {
		return err
	}

	n, err := a.catalogRepo.Upsert(items, a.cfg.Worker.IndexWriteBatchSize)
	if err != nil {
		return err
	}

	a.log.Info("catalog synced to database", zap.Int("rows", n))
	return nil
}

// ensureIndexed indexes the catalog when the index is empty.
func (a *application) ensureIndexed(ctx context.Context) error {
	report, err := a.indexer.EnsureIndexed(ctx, a.source)
	if err != nil {
		return fmt.Errorf("failed to index catalog: %w", err)
	}
	if !report.Skipped {
		a.log.Info("catalog indexed", zap.Int("written", report.Written), zap.Int("zero_vectors", report.ZeroVectors))
	}
	return nil
}

func (a *application) Close() {
	if c, ok := a.index.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.log.Warn("failed to close index", zap.Error(err))
		}
	}
	for _, fn := range a.closers {
		fn()
	}
	_ = a.log.Sync()
}

func (a *application) closeOnShutdown(db *gorm.DB) {
	a.closers = append(a.closers, func() {
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		if err := sqlDB.Close(); err != nil {
			a.log.Warn("failed to close database", zap.Error(err))
		}
	})
}
