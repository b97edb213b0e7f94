package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/assessment-recommender/internal/models"
)

func TestRetriever_RoundTrip(t *testing.T) {
	ctx := context.Background()
	embedder := newHashEmbedder()
	index := NewMemoryIndex()

	catalog := []models.CatalogItem{
		item("Core Java Entry Level", intPtr(30), "K"),
		item("Occupational Personality Questionnaire", intPtr(25), "P"),
		item("Verify Numerical Reasoning", intPtr(18), "A"),
	}
	report, err := NewIndexer(embedder, index, IndexerOptions{}, nil, nil).IndexAll(ctx, catalog, false)
	require.NoError(t, err)
	require.Equal(t, 3, report.Written)

	retriever := NewRetriever(embedder, index, 10, 0, nil)
	for _, it := range catalog {
		cands, err := retriever.Retrieve(ctx, &models.EnrichedRequirement{SearchText: it.EmbeddingText()}, nil)
		require.NoError(t, err)
		require.NotEmpty(t, cands)
		assert.Equal(t, it.ID, cands[0].Item.ID)
		assert.InDelta(t, 1.0, cands[0].SimilarityScore, 1e-6)
		for _, c := range cands {
			assert.GreaterOrEqual(t, c.SimilarityScore, 0.0)
			assert.LessOrEqual(t, c.SimilarityScore, 1.0)
		}
	}
}

func TestRetriever_TopKAndFilter(t *testing.T) {
	ctx := context.Background()
	index := NewMemoryIndex()
	_, err := index.Upsert(ctx, []models.IndexedItem{
		indexed(item("A", nil, "K"), unitVectorWithCosine(0.9)...),
		indexed(item("B", nil, "P"), unitVectorWithCosine(0.8)...),
		indexed(item("C", nil, "K"), unitVectorWithCosine(0.7)...),
	})
	require.NoError(t, err)

	retriever := NewRetriever(&fixedEmbedder{vector: []float32{1, 0, 0}}, index, 2, 0, nil)

	cands, err := retriever.Retrieve(ctx, &models.EnrichedRequirement{SearchText: "q"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(cands))
	assert.InDelta(t, 0.9, cands[0].SimilarityScore, 1e-6)

	cands, err = retriever.Retrieve(ctx, &models.EnrichedRequirement{SearchText: "q"}, &IndexFilter{TestTypes: []string{"K"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, names(cands))
}

func TestRetriever_Errors(t *testing.T) {
	ctx := context.Background()
	req := &models.EnrichedRequirement{SearchText: "java"}

	_, err := NewRetriever(&fixedEmbedder{err: errors.New("quota")}, NewMemoryIndex(), 5, 0, nil).Retrieve(ctx, req, nil)
	assert.ErrorIs(t, err, ErrQueryEmbedding)

	_, err = NewRetriever(&fixedEmbedder{vector: []float32{0, 0}}, NewMemoryIndex(), 5, 0, nil).Retrieve(ctx, req, nil)
	assert.ErrorIs(t, err, ErrQueryEmbedding)
	assert.ErrorIs(t, err, ErrEmptyEmbedding)

	_, err = NewRetriever(&fixedEmbedder{vector: []float32{1, 0}}, failingIndex{}, 5, 0, nil).Retrieve(ctx, req, nil)
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	cands, err := NewRetriever(&fixedEmbedder{vector: []float32{1, 0}}, NewMemoryIndex(), 5, 0, nil).Retrieve(ctx, req, nil)
	require.NoError(t, err)
	assert.Empty(t, cands)

	cands, err = NewRetriever(&fixedEmbedder{err: errors.New("unused")}, failingIndex{}, 5, 0, nil).
		Retrieve(ctx, &models.EnrichedRequirement{}, nil)
	require.NoError(t, err)
	assert.Empty(t, cands)
}
