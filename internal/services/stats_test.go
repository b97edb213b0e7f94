package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"alfredoptarigan/assessment-recommender/internal/models"
)

func TestScoreStats(t *testing.T) {
	final := []models.Candidate{
		scored("A", 0.9, "K"),
		scored("B", 0.6, "K", "P"),
		cand("C", 0.3, "A"),
	}
	var d models.Diagnostics

	ScoreStats(final, &d)

	assert.InDelta(t, 0.6, d.AvgScore, 1e-9)
	assert.InDelta(t, 0.3, d.MinScore, 1e-9)
	assert.InDelta(t, 0.9, d.MaxScore, 1e-9)
	assert.Equal(t, map[string]int{"K": 2, "P": 1, "A": 1}, d.TagDistribution)
}

func TestScoreStats_Empty(t *testing.T) {
	d := models.Diagnostics{AvgScore: 5}

	ScoreStats(nil, &d)

	assert.Zero(t, d.AvgScore)
	assert.NotNil(t, d.TagDistribution)
	assert.Empty(t, d.TagDistribution)
}

func TestSimilarityBuckets(t *testing.T) {
	buckets := SimilarityBuckets([]models.Candidate{
		cand("a", 0.95), cand("b", 0.90), cand("c", 0.85), cand("d", 0.55), cand("e", 0.1),
	})

	assert.Equal(t, 2, buckets["0.90+"])
	assert.Equal(t, 1, buckets["0.80-0.90"])
	assert.Equal(t, 0, buckets["0.70-0.80"])
	assert.Equal(t, 1, buckets["0.50-0.60"])
	assert.Equal(t, 1, buckets["<0.50"])
	assert.Len(t, buckets, 6)
}

func TestTopTags(t *testing.T) {
	assert.Equal(t, []string{"K", "A", "P"}, TopTags(map[string]int{"P": 1, "K": 3, "A": 1}))
	assert.Empty(t, TopTags(nil))
}
