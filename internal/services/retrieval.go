package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/models"
)

// ErrQueryEmbedding marks a failed query embedding. The pipeline treats it as "no candidates".
var ErrQueryEmbedding = errors.New("query embedding failed")

type Retriever struct {
	embedder     Embedder
	index        CatalogIndex
	topK         int
	embedTimeout time.Duration
	log          *zap.Logger
}

func NewRetriever(embedder Embedder, index CatalogIndex, topK int, embedTimeout time.Duration, log *zap.Logger) *Retriever {
	if topK < 1 {
		topK = 15
	}
	return &Retriever{
		embedder:     embedder,
		index:        index,
		topK:         topK,
		embedTimeout: embedTimeout,
		log:          logger.OrNop(log),
	}
}

func (r *Retriever) embed(ctx context.Context, text string) ([]float32, error) {
	if r.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.embedTimeout)
		defer cancel()
	}
	return r.embedder.Embed(ctx, text)
}

// Retrieve embeds the search text and returns up to topK candidates, nearest first.
// An empty result is not an error. Index failures wrap ErrIndexUnavailable and embedding
// failures wrap ErrQueryEmbedding.
func (r *Retriever) Retrieve(ctx context.Context, req *models.EnrichedRequirement, filter *IndexFilter) ([]models.Candidate, error) {
	text := strings.TrimSpace(req.SearchText)
	if text == "" {
		text = strings.TrimSpace(req.OriginalText)
	}
	if text == "" {
		return []models.Candidate{}, nil
	}

	vector, err := r.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, err)
	}
	if len(vector) == 0 || isZeroVector(vector) {
		return nil, fmt.Errorf("%w: %w", ErrQueryEmbedding, ErrEmptyEmbedding)
	}

	hits, err := r.index.Query(ctx, vector, r.topK, filter)
	if err != nil {
		if !errors.Is(err, ErrIndexUnavailable) {
			err = fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
		}
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, models.Candidate{
			Item:            hit.Item,
			SimilarityScore: SimilarityFromDistance(hit.Distance),
		})
	}

	r.log.Debug("retrieval completed", zap.Int("candidates", len(candidates)), zap.Int("top_k", r.topK))
	return candidates, nil
}
