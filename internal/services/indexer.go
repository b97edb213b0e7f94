package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/models"
)

type IndexerOptions struct {
	Concurrency    int
	EmbedBatchSize int
	WriteBatchSize int
}

// IndexReport summarises one indexing run.
type IndexReport struct {
	Total       int           `json:"total"`
	Written     int           `json:"written"`
	ZeroVectors int           `json:"zero_vectors"`
	Skipped     bool          `json:"skipped"`
	Duration    time.Duration `json:"duration"`
}

type Indexer interface {
	// IndexAll embeds and writes every item. rebuild clears the index first.
	IndexAll(ctx context.Context, items []models.CatalogItem, rebuild bool) (*IndexReport, error)
	// EnsureIndexed loads and indexes the source only when the index is empty.
	EnsureIndexed(ctx context.Context, source CatalogSource) (*IndexReport, error)
}

type embedJob struct {
	start int
	texts []string
}

type indexer struct {
	embedder Embedder
	index    CatalogIndex
	opts     IndexerOptions
	metrics  *Metrics
	log      *zap.Logger
}

func NewIndexer(embedder Embedder, index CatalogIndex, opts IndexerOptions, metrics *Metrics, log *zap.Logger) Indexer {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.EmbedBatchSize < 1 {
		opts.EmbedBatchSize = 20
	}
	if opts.WriteBatchSize < 1 {
		opts.WriteBatchSize = 100
	}

	return &indexer{
		embedder: embedder,
		index:    index,
		opts:     opts,
		metrics:  metrics,
		log:      logger.OrNop(log),
	}
}

// EnsureIndexed implements Indexer.
func (ix *indexer) EnsureIndexed(ctx context.Context, source CatalogSource) (*IndexReport, error) {
	count, err := ix.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		ix.log.Info("index already populated, skipping indexing", zap.Int("count", count))
		return &IndexReport{Total: count, Skipped: true}, nil
	}

	items, err := source.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	return ix.IndexAll(ctx, items, false)
}

// IndexAll implements Indexer.
func (ix *indexer) IndexAll(ctx context.Context, items []models.CatalogItem, rebuild bool) (*IndexReport, error) {
	started := time.Now()
	report := &IndexReport{Total: len(items)}

	ix.log.Info("indexing catalog",
		zap.Int("items", len(items)),
		zap.Int("workers", ix.opts.Concurrency),
		zap.Bool("rebuild", rebuild))

	vectors := ix.embedAll(ctx, items)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("indexing cancelled: %w", err)
	}

	indexed := make([]models.IndexedItem, 0, len(items))
	for i, item := range items {
		if isZeroVector(vectors[i]) {
			report.ZeroVectors++
			ix.log.Warn("skipping item without embedding", zap.String("name", item.Name))
			continue
		}
		indexed = append(indexed, models.IndexedItem{Item: item, Vector: vectors[i]})
	}

	written, err := ix.write(ctx, indexed, rebuild)
	if err != nil {
		return nil, err
	}

	report.Written = written
	report.Duration = time.Since(started)
	ix.metrics.RecordIndexed(written, report.ZeroVectors)

	ix.log.Info("indexing completed",
		zap.Int("written", written),
		zap.Int("zero_vectors", report.ZeroVectors),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// embedAll fans embedding batches out to a fixed pool of workers. Each worker writes
// only the slots of its own batch.
func (ix *indexer) embedAll(ctx context.Context, items []models.CatalogItem) [][]float32 {
	vectors := make([][]float32, len(items))
	jobs := make(chan embedJob)

	var wg sync.WaitGroup
	for i := 0; i < ix.opts.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobs {
				ix.log.Debug("embedding batch",
					zap.Int("worker", workerID),
					zap.Int("start", job.start),
					zap.Int("size", len(job.texts)))

				for j, vec := range ix.embedder.EmbedBatch(ctx, job.texts) {
					if j >= len(job.texts) {
						break
					}
					vectors[job.start+j] = vec
				}
			}
		}(i + 1)
	}

send:
	for start := 0; start < len(items); start += ix.opts.EmbedBatchSize {
		end := min(start+ix.opts.EmbedBatchSize, len(items))
		texts := make([]string, 0, end-start)
		for _, item := range items[start:end] {
			texts = append(texts, item.EmbeddingText())
		}

		select {
		case jobs <- embedJob{start: start, texts: texts}:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()

	return vectors
}

func (ix *indexer) write(ctx context.Context, items []models.IndexedItem, rebuild bool) (int, error) {
	if rebuild {
		if r, ok := ix.index.(Replacer); ok {
			return r.Replace(ctx, items)
		}
		if err := ix.index.Clear(ctx); err != nil {
			return 0, err
		}
	}

	written := 0
	for start := 0; start < len(items); start += ix.opts.WriteBatchSize {
		end := min(start+ix.opts.WriteBatchSize, len(items))
		n, err := ix.index.Upsert(ctx, items[start:end])
		if err != nil {
			return written, fmt.Errorf("failed to write batch at %d: %w", start, err)
		}
		written += n
	}

	return written, nil
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
