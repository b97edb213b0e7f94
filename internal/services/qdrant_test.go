package services

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/assessment-recommender/internal/models"
)

func TestQdrantPayloadRoundTrip(t *testing.T) {
	original := item("Java 8", intPtr(18), "K", "S")
	original.RemoteSupport = true
	original.JobLevels = "Mid-Professional"
	original.Languages = "English"

	got := payloadItem(qdrant.NewValueMap(itemPayload(&original)))

	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.URL, got.URL)
	assert.Equal(t, original.Name, got.Name)
	assert.Equal(t, original.TestTypes, got.TestTypes)
	assert.True(t, got.RemoteSupport)
	assert.False(t, got.AdaptiveSupport)
	assert.Equal(t, "Mid-Professional", got.JobLevels)
	require.NotNil(t, got.DurationMinutes)
	assert.Equal(t, 18, *got.DurationMinutes)
}

func TestQdrantPayload_UnknownDuration(t *testing.T) {
	original := item("OPQ", nil, "P")

	got := payloadItem(qdrant.NewValueMap(itemPayload(&original)))

	assert.Nil(t, got.DurationMinutes)
}

func TestQdrantFilter(t *testing.T) {
	assert.Nil(t, qdrantFilter(nil))
	assert.Nil(t, qdrantFilter(&IndexFilter{}))

	f := qdrantFilter(&IndexFilter{TestTypes: []string{"K", "P"}, RemoteOnly: true})
	require.NotNil(t, f)
	assert.Len(t, f.Must, 2)
}

func TestDistanceConversions(t *testing.T) {
	for _, cos := range []float64{1, 0.75, 0.5, 0, -1} {
		assert.InDelta(t, models.ClampUnit(cos), SimilarityFromDistance(DistanceFromCosine(cos)), 1e-12)
	}
}
