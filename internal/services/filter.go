package services

import "alfredoptarigan/assessment-recommender/internal/models"

// ThresholdPolicy configures the similarity threshold filter.
type ThresholdPolicy struct {
	Primary   float64
	Fallback  float64
	MinSelect int
	MaxSelect int
}

// FilterByDuration drops candidates whose known duration exceeds the ceiling.
// Unknown durations always pass. A nil ceiling keeps everything.
func FilterByDuration(cands []models.Candidate, ceiling *int) []models.Candidate {
	out := make([]models.Candidate, 0, len(cands))
	for _, c := range cands {
		if ceiling != nil && c.Item.DurationMinutes != nil && *c.Item.DurationMinutes > *ceiling {
			continue
		}
		out = append(out, c)
	}
	return out
}

// FilterBySimilarity keeps candidates clearing the primary threshold, widening to the fallback
// threshold and finally to the top MaxSelect by similarity when too few remain.
func FilterBySimilarity(cands []models.Candidate, p ThresholdPolicy) ([]models.Candidate, models.ThresholdMode) {
	if primary := aboveThreshold(cands, p.Primary); len(primary) >= p.MinSelect {
		return primary, models.ThresholdPrimary
	}

	if fallback := aboveThreshold(cands, p.Fallback); len(fallback) >= p.MinSelect {
		return fallback, models.ThresholdFallback
	}

	out := models.CloneCandidates(cands)
	if out == nil {
		out = []models.Candidate{}
	}
	models.SortBySimilarity(out)
	if len(out) > p.MaxSelect {
		out = out[:p.MaxSelect]
	}
	return out, models.ThresholdLastResort
}

func aboveThreshold(cands []models.Candidate, threshold float64) []models.Candidate {
	out := make([]models.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.SimilarityScore >= threshold {
			out = append(out, c)
		}
	}
	return out
}
