package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/models"
)

const noMatchesNote = "no matching assessments"

// Recommender runs the full pipeline for one request. It holds no per-request state and is safe
// for concurrent use.
type Recommender struct {
	enricher  *QueryEnricher
	retriever *Retriever
	refiner   *Refiner
	selector  *Selector
	threshold ThresholdPolicy
	metrics   *Metrics
	log       *zap.Logger
}

func NewRecommender(
	enricher *QueryEnricher,
	retriever *Retriever,
	refiner *Refiner,
	selector *Selector,
	threshold ThresholdPolicy,
	metrics *Metrics,
	log *zap.Logger,
) *Recommender {
	return &Recommender{
		enricher:  enricher,
		retriever: retriever,
		refiner:   refiner,
		selector:  selector,
		threshold: threshold,
		metrics:   metrics,
		log:       logger.OrNop(log),
	}
}

// RecommendQuery enriches raw query text and runs the pipeline on the result.
func (r *Recommender) RecommendQuery(ctx context.Context, text string) (*models.Recommendation, error) {
	started := time.Now()
	enriched := r.enricher.Enrich(ctx, text)
	r.metrics.ObserveStage("enrichment", started)

	rec, err := r.Recommend(ctx, enriched.Requirement)
	if err != nil {
		return nil, err
	}

	if enriched.UsedFallback {
		rec.Diagnostics.UsedFallbackQuery = true
		rec.Diagnostics.AddNote("used fallback requirement: " + enriched.FallbackReason)
		r.metrics.RecordDegraded("enrichment_fallback")
	}

	return rec, nil
}

// Recommend runs retrieval, filtering, refinement and selection for an enriched requirement.
// Only catalog index failures are returned as errors; every other failure degrades the result
// and is reported in the diagnostics.
func (r *Recommender) Recommend(ctx context.Context, req *models.EnrichedRequirement) (*models.Recommendation, error) {
	if req == nil {
		req = FallbackRequirement("")
	}

	rec := &models.Recommendation{
		Requirement: req,
		FinalList:   []models.Candidate{},
		Diagnostics: models.Diagnostics{Stage: models.StageRetrieved, TagDistribution: map[string]int{}},
	}
	diag := &rec.Diagnostics

	started := time.Now()
	cands, err := r.retriever.Retrieve(ctx, req, nil)
	r.metrics.ObserveStage("retrieval", started)
	if err != nil {
		if errors.Is(err, ErrIndexUnavailable) {
			r.metrics.RecordRequest("error")
			return nil, err
		}
		r.log.Warn("retrieval degraded to no candidates", zap.Error(err))
		r.metrics.RecordDegraded("query_embedding")
		diag.AddNote(fmt.Sprintf("retrieval failed: %v", err))
		cands = nil
	}

	diag.RetrievedCount = len(cands)
	if len(cands) == 0 {
		diag.Stage = models.StageNoCandidates
		diag.NoMatches = true
		diag.AddNote(noMatchesNote)
		r.metrics.RecordRequest(string(diag.Stage))
		return rec, nil
	}

	diag.ScoreBuckets = SimilarityBuckets(cands)
	for _, c := range cands {
		r.metrics.ObserveSimilarity(c.SimilarityScore)
	}

	rec.FinalList = r.rank(ctx, req, cands, diag)
	ScoreStats(rec.FinalList, diag)

	r.metrics.ObserveFinalSize(len(rec.FinalList))
	r.metrics.RecordRequest(string(diag.Stage))

	r.log.Info("recommendation completed",
		zap.String("stage", string(diag.Stage)),
		zap.Int("retrieved", diag.RetrievedCount),
		zap.Int("filtered", diag.FilteredCount),
		zap.Int("final", len(rec.FinalList)),
		zap.Bool("refined", diag.Refined),
		zap.Strings("top_tags", TopTags(diag.TagDistribution)),
		zap.Float64("avg_score", diag.AvgScore))

	return rec, nil
}

// rank runs the stages after retrieval. A panic in any of them yields an empty list.
func (r *Recommender) rank(ctx context.Context, req *models.EnrichedRequirement, cands []models.Candidate, diag *models.Diagnostics) (final []models.Candidate) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("pipeline stage panicked", zap.Any("panic", p), zap.String("stage", string(diag.Stage)))
			r.metrics.RecordDegraded("panic")
			diag.AddNote(fmt.Sprintf("internal error after %s: %v", diag.Stage, p))
			final = []models.Candidate{}
		}
	}()

	cands = FilterByDuration(cands, req.DurationCeiling)
	diag.Stage = models.StageDurationFiltered
	if len(cands) == 0 {
		diag.NoMatches = true
		diag.AddNote(noMatchesNote + " within the duration limit")
		return []models.Candidate{}
	}

	cands, mode := FilterBySimilarity(cands, r.threshold)
	diag.Stage = models.StageThresholdFiltered
	diag.ThresholdMode = mode
	diag.FilteredCount = len(cands)
	if mode != models.ThresholdPrimary {
		r.metrics.RecordDegraded("threshold_" + string(mode))
	}

	started := time.Now()
	refined := r.refiner.Refine(ctx, req, cands)
	r.metrics.ObserveStage("refinement", started)
	cands = refined.Candidates
	diag.Refined = refined.Refined
	if refined.Refined {
		diag.Stage = models.StageRefined
	} else {
		diag.Stage = models.StageUnrefined
		if refined.Failed {
			r.metrics.RecordDegraded("refinement")
		}
		if refined.Note != "" {
			diag.AddNote(refined.Note)
		}
	}

	final = r.selector.Select(req, cands)
	diag.Stage = models.StageSelected
	return final
}
