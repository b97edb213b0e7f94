package models

// MaxResponseItems caps the assessments returned by the HTTP surface.
const MaxResponseItems = 10

type RecommendRequest struct {
	Query string `json:"query" validate:"required,min=10,max=10000"`
}

type AssessmentResponse struct {
	URL             string   `json:"url"`
	Name            string   `json:"name"`
	AdaptiveSupport string   `json:"adaptive_support"`
	Description     string   `json:"description"`
	Duration        int      `json:"duration"`
	RemoteSupport   string   `json:"remote_support"`
	TestType        []string `json:"test_type"`
	Score           float64  `json:"score"`
	Reason          string   `json:"reason,omitempty"`
}

type RecommendResponse struct {
	ID                     string               `json:"id"`
	RecommendedAssessments []AssessmentResponse `json:"recommended_assessments"`
	Diagnostics            Diagnostics          `json:"diagnostics"`
}

type CatalogStatsResponse struct {
	Backend             string  `json:"backend"`
	Collection          string  `json:"collection"`
	Count               int     `json:"count"`
	EmbeddingModel      string  `json:"embedding_model"`
	EmbeddingDimension  int     `json:"embedding_dimension"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	FallbackThreshold   float64 `json:"fallback_threshold"`
	SelectionPolicy     string  `json:"selection_policy"`
}

// NewAssessmentResponse converts a candidate to its wire form. Labels are expanded from
// test-type codes and support flags render as "Yes"/"No".
func NewAssessmentResponse(c Candidate) AssessmentResponse {
	labels := make([]string, 0, len(c.Item.TestTypes))
	for _, code := range c.Item.TestTypes {
		if label, ok := TestTypeLabels[code]; ok {
			labels = append(labels, label)
		} else {
			labels = append(labels, code)
		}
	}

	duration := 0
	if c.Item.DurationMinutes != nil {
		duration = *c.Item.DurationMinutes
	}

	return AssessmentResponse{
		URL:             c.Item.URL,
		Name:            c.Item.Name,
		AdaptiveSupport: yesNo(c.Item.AdaptiveSupport),
		Description:     c.Item.Description,
		Duration:        duration,
		RemoteSupport:   yesNo(c.Item.RemoteSupport),
		TestType:        labels,
		Score:           c.Score(),
		Reason:          c.JudgeReason,
	}
}

// NewRecommendResponse builds the HTTP body for a finished recommendation.
func NewRecommendResponse(id string, rec *Recommendation) RecommendResponse {
	final := rec.FinalList
	if len(final) > MaxResponseItems {
		final = final[:MaxResponseItems]
	}

	out := make([]AssessmentResponse, 0, len(final))
	for _, c := range final {
		out = append(out, NewAssessmentResponse(c))
	}

	return RecommendResponse{
		ID:                     id,
		RecommendedAssessments: out,
		Diagnostics:            rec.Diagnostics,
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
