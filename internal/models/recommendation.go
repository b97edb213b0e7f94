package models

// Stage is the furthest point a request reached in the pipeline.
type Stage string

const (
	StageRetrieved         Stage = "retrieved"
	StageDurationFiltered  Stage = "duration_filtered"
	StageThresholdFiltered Stage = "threshold_filtered"
	StageRefined           Stage = "refined"
	StageUnrefined         Stage = "unrefined"
	StageSelected          Stage = "selected"
	StageNoCandidates      Stage = "no_candidates"
)

// ThresholdMode records which branch of the similarity threshold filter produced the set.
type ThresholdMode string

const (
	ThresholdPrimary    ThresholdMode = "primary"
	ThresholdFallback   ThresholdMode = "fallback"
	ThresholdLastResort ThresholdMode = "last_resort"
)

// Diagnostics describes a finished request for observability.
type Diagnostics struct {
	AvgScore          float64        `json:"avg_score"`
	MinScore          float64        `json:"min_score"`
	MaxScore          float64        `json:"max_score"`
	TagDistribution   map[string]int `json:"tag_distribution"`
	ScoreBuckets      map[string]int `json:"score_buckets,omitempty"`
	Stage             Stage          `json:"stage"`
	ThresholdMode     ThresholdMode  `json:"threshold_mode,omitempty"`
	RetrievedCount    int            `json:"retrieved_count"`
	FilteredCount     int            `json:"filtered_count"`
	Refined           bool           `json:"refined"`
	UsedFallbackQuery bool           `json:"used_fallback_query"`
	NoMatches         bool           `json:"no_matches"`
	Notes             []string       `json:"notes,omitempty"`
}

// AddNote appends a diagnostic note.
func (d *Diagnostics) AddNote(note string) {
	if note == "" {
		return
	}
	d.Notes = append(d.Notes, note)
}

// Recommendation is the produced surface of the pipeline.
type Recommendation struct {
	Requirement *EnrichedRequirement `json:"requirement,omitempty"`
	FinalList   []Candidate          `json:"final_list"`
	Diagnostics Diagnostics          `json:"diagnostics"`
}
