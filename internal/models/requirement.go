package models

// EnrichedRequirement is the structured form of one user query. It is produced once per
// query, either by the extraction collaborator or by the deterministic fallback, and is
// read-only afterwards.
type EnrichedRequirement struct {
	OriginalText      string   `json:"original_text"`
	SearchText        string   `json:"search_text"`
	Skills            []string `json:"skills"`
	DurationCeiling   *int     `json:"duration_ceiling,omitempty"`
	JobLevels         []string `json:"job_levels"`
	RequiredTestTypes []string `json:"required_test_types"`
	KeyRequirements   []string `json:"key_requirements"`
}

// TopSkills returns at most n skills in priority order.
func (r *EnrichedRequirement) TopSkills(n int) []string {
	if r == nil || n <= 0 {
		return nil
	}
	if len(r.Skills) <= n {
		return r.Skills
	}
	return r.Skills[:n]
}

// Ceiling returns the duration ceiling and whether one is set.
func (r *EnrichedRequirement) Ceiling() (int, bool) {
	if r == nil || r.DurationCeiling == nil {
		return 0, false
	}
	return *r.DurationCeiling, true
}
