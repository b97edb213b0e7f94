package services

import (
	"context"

	"alfredoptarigan/assessment-recommender/internal/models"
)

// IndexFilter is an optional metadata predicate for index queries.
type IndexFilter struct {
	// TestTypes keeps items carrying at least one of the codes.
	TestTypes  []string
	RemoteOnly bool
}

// Matches applies the filter to an item.
func (f *IndexFilter) Matches(item *models.CatalogItem) bool {
	if f == nil {
		return true
	}
	if f.RemoteOnly && !item.RemoteSupport {
		return false
	}
	if len(f.TestTypes) == 0 {
		return true
	}
	for _, code := range f.TestTypes {
		if item.HasTestType(code) {
			return true
		}
	}
	return false
}

// IndexHit is one query result. Distance is 2*(1-cosine), so 0 means identical direction.
type IndexHit struct {
	Item     models.CatalogItem
	Distance float64
}

// CatalogIndex stores catalog items with their vectors and answers nearest-neighbour queries.
// Implementations must allow concurrent queries. Failures wrap ErrIndexUnavailable.
type CatalogIndex interface {
	// Upsert is idempotent by item id and returns the number of items written.
	Upsert(ctx context.Context, items []models.IndexedItem) (int, error)
	// Query returns at most k hits ordered by ascending distance.
	Query(ctx context.Context, vector []float32, k int, filter *IndexFilter) ([]IndexHit, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Name() string
}

// Replacer is implemented by indexes that can swap their whole content atomically.
type Replacer interface {
	Replace(ctx context.Context, items []models.IndexedItem) (int, error)
}

// SimilarityFromDistance maps an index distance to a similarity in [0,1].
func SimilarityFromDistance(distance float64) float64 {
	return models.ClampUnit(1 - distance/2)
}

// DistanceFromCosine is the inverse used by backends that report cosine similarity.
func DistanceFromCosine(cosine float64) float64 {
	return 2 * (1 - cosine)
}
