package services

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"google.golang.org/genai"

	"alfredoptarigan/assessment-recommender/internal/models"
)

// hashEmbedder is a bag-of-words embedder: identical text always yields identical vectors.
type hashEmbedder struct {
	dim     int
	failFor map[string]bool
	err     error
}

func newHashEmbedder() *hashEmbedder {
	return &hashEmbedder{dim: 64, failFor: map[string]bool{}}
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if h.err != nil {
		return nil, h.err
	}
	if h.failFor[text] {
		return nil, errors.New("embedding failed")
	}
	vec := make([]float32, h.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		vec[int(f.Sum32())%h.dim]++
	}
	return vec, nil
}

func (h *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := h.Embed(ctx, t)
		if err != nil {
			vec = make([]float32, h.dim)
		}
		out[i] = vec
	}
	return out
}

func (h *hashEmbedder) Dimension() int    { return h.dim }
func (h *hashEmbedder) ModelName() string { return "hash" }

// fixedEmbedder returns the same query vector for every text.
type fixedEmbedder struct {
	vector []float32
	err    error
}

func (f *fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fixedEmbedder) EmbedBatch(_ context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out
}

func (f *fixedEmbedder) Dimension() int    { return len(f.vector) }
func (f *fixedEmbedder) ModelName() string { return "fixed" }

// stubLLM answers with canned functions and counts calls.
type stubLLM struct {
	mu        sync.Mutex
	jsonFn    func(prompt string) (string, error)
	textFn    func(prompt string) (string, error)
	jsonCalls int
	textCalls int
}

func (s *stubLLM) GenerateText(_ context.Context, prompt, _ string) (string, error) {
	s.mu.Lock()
	s.textCalls++
	s.mu.Unlock()
	if s.textFn == nil {
		return "", errors.New("text generation unavailable")
	}
	return s.textFn(prompt)
}

func (s *stubLLM) GenerateJSON(_ context.Context, prompt, _ string, _ *genai.Schema) (string, error) {
	s.mu.Lock()
	s.jsonCalls++
	s.mu.Unlock()
	if s.jsonFn == nil {
		return "", errors.New("json generation unavailable")
	}
	return s.jsonFn(prompt)
}

// failingIndex fails every call with ErrIndexUnavailable.
type failingIndex struct{}

func (failingIndex) Upsert(context.Context, []models.IndexedItem) (int, error) {
	return 0, ErrIndexUnavailable
}

func (failingIndex) Query(context.Context, []float32, int, *IndexFilter) ([]IndexHit, error) {
	return nil, ErrIndexUnavailable
}

func (failingIndex) Count(context.Context) (int, error) { return 0, ErrIndexUnavailable }
func (failingIndex) Clear(context.Context) error        { return ErrIndexUnavailable }
func (failingIndex) Name() string                       { return "failing" }

func intPtr(v int) *int { return &v }

func item(name string, duration *int, types ...string) models.CatalogItem {
	url := "https://catalog.example.com/" + strings.ReplaceAll(strings.ToLower(name), " ", "-")
	return models.CatalogItem{
		ID:              models.ItemIDFromURL(url),
		URL:             url,
		Name:            name,
		Description:     name + " assessment",
		DurationMinutes: duration,
		TestTypes:       types,
	}
}

func cand(name string, sim float64, types ...string) models.Candidate {
	return models.Candidate{Item: item(name, nil, types...), SimilarityScore: sim}
}

// unitVectorWithCosine returns a 3-d unit vector whose cosine with (1,0,0) is s.
func unitVectorWithCosine(s float64) []float32 {
	return []float32{float32(s), float32(math.Sqrt(1 - s*s)), 0}
}

func names(cands []models.Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Item.Name)
	}
	return out
}
