package services

import (
	"sort"

	"alfredoptarigan/assessment-recommender/internal/models"
)

var scoreBuckets = []struct {
	label string
	floor float64
}{
	{"0.90+", 0.90},
	{"0.80-0.90", 0.80},
	{"0.70-0.80", 0.70},
	{"0.60-0.70", 0.60},
	{"0.50-0.60", 0.50},
	{"<0.50", -1},
}

// ScoreStats fills score aggregates and the test-type distribution of the final list.
// Scores use the combined score when present.
func ScoreStats(final []models.Candidate, d *models.Diagnostics) {
	d.TagDistribution = map[string]int{}
	d.AvgScore, d.MinScore, d.MaxScore = 0, 0, 0
	if len(final) == 0 {
		return
	}

	var sum float64
	d.MinScore = final[0].Score()
	d.MaxScore = final[0].Score()
	for i := range final {
		s := final[i].Score()
		sum += s
		if s < d.MinScore {
			d.MinScore = s
		}
		if s > d.MaxScore {
			d.MaxScore = s
		}
		for _, t := range final[i].Item.TestTypes {
			d.TagDistribution[t]++
		}
	}
	d.AvgScore = sum / float64(len(final))
}

// SimilarityBuckets counts candidates per similarity band.
func SimilarityBuckets(cands []models.Candidate) map[string]int {
	out := make(map[string]int, len(scoreBuckets))
	for _, b := range scoreBuckets {
		out[b.label] = 0
	}
	for _, c := range cands {
		for _, b := range scoreBuckets {
			if c.SimilarityScore >= b.floor {
				out[b.label]++
				break
			}
		}
	}
	return out
}

// TopTags returns test-type codes ordered by frequency, then code.
func TopTags(distribution map[string]int) []string {
	tags := make([]string, 0, len(distribution))
	for t := range distribution {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if distribution[tags[i]] != distribution[tags[j]] {
			return distribution[tags[i]] > distribution[tags[j]]
		}
		return tags[i] < tags[j]
	})
	return tags
}
