package services

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/assessment-recommender/internal/models"
)

// recordingIndex wraps the memory index, hides Replacer and records write batches.
type recordingIndex struct {
	inner   CatalogIndex
	mu      sync.Mutex
	batches []int
	clears  int
}

func newRecordingIndex() *recordingIndex {
	return &recordingIndex{inner: NewMemoryIndex()}
}

func (r *recordingIndex) Upsert(ctx context.Context, items []models.IndexedItem) (int, error) {
	r.mu.Lock()
	r.batches = append(r.batches, len(items))
	r.mu.Unlock()
	return r.inner.Upsert(ctx, items)
}

func (r *recordingIndex) Query(ctx context.Context, v []float32, k int, f *IndexFilter) ([]IndexHit, error) {
	return r.inner.Query(ctx, v, k, f)
}

func (r *recordingIndex) Count(ctx context.Context) (int, error) { return r.inner.Count(ctx) }

func (r *recordingIndex) Clear(ctx context.Context) error {
	r.clears++
	return r.inner.Clear(ctx)
}

func (r *recordingIndex) Name() string { return "recording" }

type staticSource struct {
	items []models.CatalogItem
	loads int
}

func (s *staticSource) Load() ([]models.CatalogItem, error) {
	s.loads++
	return s.items, nil
}

func catalogOf(n int) []models.CatalogItem {
	items := make([]models.CatalogItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, item("Assessment "+string(rune('A'+i)), intPtr(10+i), "K"))
	}
	return items
}

func TestIndexer_IndexAllInBatches(t *testing.T) {
	ctx := context.Background()
	index := newRecordingIndex()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	ix := NewIndexer(newHashEmbedder(), index, IndexerOptions{Concurrency: 3, EmbedBatchSize: 2, WriteBatchSize: 4}, metrics, nil)
	report, err := ix.IndexAll(ctx, catalogOf(10), false)

	require.NoError(t, err)
	assert.Equal(t, 10, report.Total)
	assert.Equal(t, 10, report.Written)
	assert.Zero(t, report.ZeroVectors)
	assert.Equal(t, []int{4, 4, 2}, index.batches)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
	assert.InDelta(t, 10, testutil.ToFloat64(metrics.indexedTotal), 1e-9)
}

func TestIndexer_SkipsZeroVectors(t *testing.T) {
	ctx := context.Background()
	catalog := catalogOf(4)
	embedder := newHashEmbedder()
	embedder.failFor[catalog[1].EmbeddingText()] = true
	metrics := NewMetrics(prometheus.NewRegistry())

	report, err := NewIndexer(embedder, NewMemoryIndex(), IndexerOptions{}, metrics, nil).IndexAll(ctx, catalog, false)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Written)
	assert.Equal(t, 1, report.ZeroVectors)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.zeroVectors), 1e-9)
}

func TestIndexer_Rebuild(t *testing.T) {
	ctx := context.Background()

	t.Run("clears indexes without atomic replace", func(t *testing.T) {
		index := newRecordingIndex()
		ix := NewIndexer(newHashEmbedder(), index, IndexerOptions{}, nil, nil)

		_, err := ix.IndexAll(ctx, catalogOf(5), false)
		require.NoError(t, err)
		_, err = ix.IndexAll(ctx, catalogOf(2), true)
		require.NoError(t, err)

		assert.Equal(t, 1, index.clears)
		count, err := index.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("replaces the memory index", func(t *testing.T) {
		index := NewMemoryIndex()
		ix := NewIndexer(newHashEmbedder(), index, IndexerOptions{}, nil, nil)

		_, err := ix.IndexAll(ctx, catalogOf(5), false)
		require.NoError(t, err)
		report, err := ix.IndexAll(ctx, catalogOf(3), true)
		require.NoError(t, err)

		assert.Equal(t, 3, report.Written)
		count, err := index.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestIndexer_EnsureIndexed(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	source := &staticSource{items: catalogOf(3)}
	ix := NewIndexer(newHashEmbedder(), index, IndexerOptions{}, nil, nil)

	report, err := ix.EnsureIndexed(ctx, source)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 3, report.Written)

	report, err = ix.EnsureIndexed(ctx, source)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, 1, source.loads)

	_, err = NewIndexer(newHashEmbedder(), failingIndex{}, IndexerOptions{}, nil, nil).EnsureIndexed(ctx, source)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
}

func TestIndexer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewIndexer(newHashEmbedder(), NewMemoryIndex(), IndexerOptions{}, nil, nil).IndexAll(ctx, catalogOf(3), false)
	assert.ErrorIs(t, err, context.Canceled)
}
