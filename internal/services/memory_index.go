package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"alfredoptarigan/assessment-recommender/internal/models"
)

type memoryEntry struct {
	item   models.CatalogItem
	vector []float32
	norm   float64
}

type memorySnapshot struct {
	entries   []memoryEntry
	byID      map[string]int
	dimension int
}

// memoryIndex is a copy-on-write index. Readers load the current snapshot without locking;
// writers build a new snapshot and publish it with a single atomic store.
type memoryIndex struct {
	current atomic.Pointer[memorySnapshot]
	writeMu sync.Mutex
}

func NewMemoryIndex() CatalogIndex {
	idx := &memoryIndex{}
	idx.current.Store(emptySnapshot())
	return idx
}

func emptySnapshot() *memorySnapshot {
	return &memorySnapshot{byID: map[string]int{}}
}

// Name implements CatalogIndex.
func (m *memoryIndex) Name() string { return "memory" }

// Upsert implements CatalogIndex.
func (m *memoryIndex) Upsert(ctx context.Context, items []models.IndexedItem) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	old := m.current.Load()
	next := &memorySnapshot{
		entries:   make([]memoryEntry, len(old.entries), len(old.entries)+len(items)),
		byID:      make(map[string]int, len(old.byID)+len(items)),
		dimension: old.dimension,
	}
	copy(next.entries, old.entries)
	for id, pos := range old.byID {
		next.byID[id] = pos
	}

	written, err := next.apply(items)
	if err != nil {
		return 0, err
	}

	m.current.Store(next)
	return written, nil
}

// Replace implements Replacer. Queries see either the old content or the new content, and
// writes never interleave with a rebuild.
func (m *memoryIndex) Replace(ctx context.Context, items []models.IndexedItem) (int, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	next := emptySnapshot()
	written, err := next.apply(items)
	if err != nil {
		return 0, err
	}

	m.current.Store(next)
	return written, nil
}

func (s *memorySnapshot) apply(items []models.IndexedItem) (int, error) {
	for _, it := range items {
		if it.Item.ID == "" {
			return 0, fmt.Errorf("%w: item %q has no id", ErrIndexUnavailable, it.Item.Name)
		}
		if s.dimension == 0 {
			s.dimension = len(it.Vector)
		}
		if len(it.Vector) != s.dimension {
			return 0, fmt.Errorf("%w: vector dimension %d does not match index dimension %d", ErrIndexUnavailable, len(it.Vector), s.dimension)
		}

		vec := make([]float32, len(it.Vector))
		copy(vec, it.Vector)
		entry := memoryEntry{item: it.Item, vector: vec, norm: vectorNorm(vec)}

		if pos, ok := s.byID[it.Item.ID]; ok {
			s.entries[pos] = entry
			continue
		}
		s.byID[it.Item.ID] = len(s.entries)
		s.entries = append(s.entries, entry)
	}
	return len(items), nil
}

// Query implements CatalogIndex.
func (m *memoryIndex) Query(ctx context.Context, vector []float32, k int, filter *IndexFilter) ([]IndexHit, error) {
	snap := m.current.Load()
	if k <= 0 || len(snap.entries) == 0 {
		return []IndexHit{}, nil
	}
	if len(vector) != snap.dimension {
		return nil, fmt.Errorf("%w: query dimension %d does not match index dimension %d", ErrIndexUnavailable, len(vector), snap.dimension)
	}

	qnorm := vectorNorm(vector)
	hits := make([]IndexHit, 0, len(snap.entries))
	for i := range snap.entries {
		e := &snap.entries[i]
		if !filter.Matches(&e.item) {
			continue
		}
		hits = append(hits, IndexHit{
			Item:     e.item,
			Distance: DistanceFromCosine(cosine(vector, e.vector, qnorm, e.norm)),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Item.ID < hits[j].Item.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count implements CatalogIndex.
func (m *memoryIndex) Count(ctx context.Context) (int, error) {
	return len(m.current.Load().entries), nil
}

// Clear implements CatalogIndex.
func (m *memoryIndex) Clear(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.current.Store(emptySnapshot())
	return nil
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
