package models

import "sort"

// Candidate is a catalog item scored against one query. Candidates live for a single
// request and are never persisted.
type Candidate struct {
	Item            CatalogItem `json:"item"`
	SimilarityScore float64     `json:"similarity_score"`
	JudgeScore      *float64    `json:"judge_score,omitempty"`
	CombinedScore   *float64    `json:"combined_score,omitempty"`
	JudgeReason     string      `json:"judge_reason,omitempty"`
}

// Score is the combined score when present, otherwise the similarity score.
func (c *Candidate) Score() float64 {
	if c.CombinedScore != nil {
		return *c.CombinedScore
	}
	return c.SimilarityScore
}

// ClampUnit clamps v into [0,1].
func ClampUnit(v float64) float64 {
	if v != v {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SortBySimilarity orders candidates by similarity, highest first. Ties keep input order.
func SortBySimilarity(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].SimilarityScore > cands[j].SimilarityScore
	})
}

// SortByScore orders candidates by Score, highest first. Ties keep input order.
func SortByScore(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score() > cands[j].Score()
	})
}

// CloneCandidates returns a shallow copy of the slice.
func CloneCandidates(cands []Candidate) []Candidate {
	if cands == nil {
		return nil
	}
	out := make([]Candidate, len(cands))
	copy(out, cands)
	return out
}
