package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/models"
)

const (
	searchClauseSeparator = " | "
	maxSearchSkills       = 15
	maxKeyRequirements    = 5
	fallbackPrefixChars   = 200
	fallbackSuffix        = "assessment test evaluation"
)

var (
	fallbackJobLevels = []string{"Mid-Professional"}
	fallbackTestTypes = []string{models.TestTypeKnowledge, models.TestTypePersonality}

	fallbackKeywords = []string{
		"java", "python", "sql", "javascript", "testing",
		"qa", "selenium", "data", "analyst", "excel",
		"communication", "leadership", "sales", "marketing", "finance",
	}

	// Searched in order; the first pattern that matches wins.
	durationPatterns = []struct {
		re         *regexp.Regexp
		multiplier int
	}{
		{regexp.MustCompile(`(?i)(\d+)\s*(?:minutes?|mins?)`), 1},
		{regexp.MustCompile(`(?i)(\d+)\s*(?:hours?|hrs?)`), 60},
		{regexp.MustCompile(`(?i)about\s+(\d+)\s*(?:minutes?|mins?)`), 1},
		{regexp.MustCompile(`(?i)(?:at most|maximum|max)\s+(\d+)\s*(?:minutes?|mins?)`), 1},
	}
)

// RequirementExtractor produces a structured requirement from raw query text.
type RequirementExtractor interface {
	Extract(ctx context.Context, text string) (*models.EnrichedRequirement, error)
}

// EnrichResult is the outcome of enrichment. Requirement is never nil.
type EnrichResult struct {
	Requirement    *models.EnrichedRequirement
	UsedFallback   bool
	FallbackReason string
}

type QueryEnricher struct {
	extractor RequirementExtractor
	expansion *QueryExpander
	log       *zap.Logger
}

// NewQueryEnricher wires an extractor. A nil extractor always yields the fallback requirement.
// A nil expander disables query expansion.
func NewQueryEnricher(extractor RequirementExtractor, expander *QueryExpander, log *zap.Logger) *QueryEnricher {
	return &QueryEnricher{
		extractor: extractor,
		expansion: expander,
		log:       logger.OrNop(log),
	}
}

// Enrich never fails. Extraction errors are reported through UsedFallback and FallbackReason.
func (e *QueryEnricher) Enrich(ctx context.Context, text string) EnrichResult {
	if e.extractor == nil {
		return EnrichResult{Requirement: FallbackRequirement(text), UsedFallback: true, FallbackReason: "no extractor configured"}
	}

	req, err := e.extract(ctx, text)
	if err != nil {
		e.log.Warn("query enrichment failed, using fallback requirement", zap.Error(err))
		return EnrichResult{Requirement: FallbackRequirement(text), UsedFallback: true, FallbackReason: err.Error()}
	}

	return EnrichResult{Requirement: req}
}

func (e *QueryEnricher) extract(ctx context.Context, text string) (req *models.EnrichedRequirement, err error) {
	defer func() {
		if r := recover(); r != nil {
			req, err = nil, fmt.Errorf("extractor panicked: %v", r)
		}
	}()

	req, err = e.extractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("extractor returned no requirement")
	}

	out := *req
	out.OriginalText = text
	out.RequiredTestTypes = models.NormalizeTestTypes(out.RequiredTestTypes)
	if out.DurationCeiling == nil {
		out.DurationCeiling = ExtractDuration(text)
	}

	primary := strings.TrimSpace(out.SearchText)
	if primary == "" {
		primary = strings.TrimSpace(text)
	}

	var related []string
	if e.expansion != nil {
		related = e.expansion.Expand(text, out.Skills)
	}
	out.SearchText = BuildSearchText(primary, &out, related)

	return &out, nil
}

// BuildSearchText joins the primary query with optional requirement clauses.
func BuildSearchText(primary string, req *models.EnrichedRequirement, related []string) string {
	clauses := []string{}
	if p := strings.TrimSpace(primary); p != "" {
		clauses = append(clauses, p)
	}

	if skills := req.TopSkills(maxSearchSkills); len(skills) > 0 {
		clauses = append(clauses, "Required skills: "+strings.Join(skills, ", "))
	}
	if len(req.JobLevels) > 0 {
		clauses = append(clauses, "Job levels: "+strings.Join(req.JobLevels, ", "))
	}
	if len(req.RequiredTestTypes) > 0 {
		labels := make([]string, 0, len(req.RequiredTestTypes))
		for _, code := range req.RequiredTestTypes {
			if label, ok := models.TestTypeLabels[code]; ok {
				labels = append(labels, label)
			} else {
				labels = append(labels, code)
			}
		}
		clauses = append(clauses, "Assessment types: "+strings.Join(labels, ", "))
	}
	if len(req.KeyRequirements) > 0 {
		keys := req.KeyRequirements
		if len(keys) > maxKeyRequirements {
			keys = keys[:maxKeyRequirements]
		}
		clauses = append(clauses, "Key requirements: "+strings.Join(keys, ", "))
	}
	if len(related) > 0 {
		clauses = append(clauses, "Related terms: "+strings.Join(related, ", "))
	}

	return strings.Join(clauses, searchClauseSeparator)
}

// FallbackRequirement builds the deterministic requirement used when extraction fails.
func FallbackRequirement(text string) *models.EnrichedRequirement {
	return &models.EnrichedRequirement{
		OriginalText:      text,
		SearchText:        FallbackSearchText(text),
		Skills:            []string{},
		DurationCeiling:   ExtractDuration(text),
		JobLevels:         append([]string(nil), fallbackJobLevels...),
		RequiredTestTypes: append([]string(nil), fallbackTestTypes...),
		KeyRequirements:   []string{},
	}
}

// FallbackSearchText reduces raw text to known keywords, or to its first 200 characters.
func FallbackSearchText(text string) string {
	lower := strings.ToLower(text)

	var matched []string
	for _, kw := range fallbackKeywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	if len(matched) > 0 {
		return strings.Join(matched, " ") + " " + fallbackSuffix
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) > fallbackPrefixChars {
		runes = runes[:fallbackPrefixChars]
	}
	return string(runes)
}

// ExtractDuration finds a duration limit in minutes in free text. It returns nil when none is found.
func ExtractDuration(text string) *int {
	for _, p := range durationPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		minutes := n * p.multiplier
		return &minutes
	}
	return nil
}

type extractionOutput struct {
	CleanedQuery    string   `json:"cleaned_query" validate:"required"`
	Skills          []string `json:"skills"`
	DurationMinutes *int     `json:"duration_minutes" validate:"omitempty,gte=1,lte=600"`
	JobLevels       []string `json:"job_levels"`
	TestTypes       []string `json:"test_types"`
	KeyRequirements []string `json:"key_requirements"`
}

func normalizeExtraction(out *extractionOutput) {
	out.CleanedQuery = strings.TrimSpace(out.CleanedQuery)
	out.Skills = compactStrings(out.Skills)
	out.JobLevels = compactStrings(out.JobLevels)
	out.TestTypes = models.NormalizeTestTypes(out.TestTypes)
	out.KeyRequirements = compactStrings(out.KeyRequirements)
	if out.DurationMinutes != nil && *out.DurationMinutes <= 0 {
		out.DurationMinutes = nil
	}
}

type llmExtractor struct {
	llm         LLMService
	prompts     *PromptBuilder
	maxAttempts int
	log         *zap.Logger
}

// NewLLMExtractor returns a RequirementExtractor backed by structured generation.
func NewLLMExtractor(llm LLMService, maxAttempts int, log *zap.Logger) RequirementExtractor {
	return &llmExtractor{
		llm:         llm,
		prompts:     NewPromptBuilder(),
		maxAttempts: maxAttempts,
		log:         logger.OrNop(log),
	}
}

// Extract implements RequirementExtractor.
func (x *llmExtractor) Extract(ctx context.Context, text string) (*models.EnrichedRequirement, error) {
	out, err := GenerateStructured(ctx, x.llm, StructuredRequest{
		Prompt:            x.prompts.BuildExtractionPrompt(text),
		SystemInstruction: extractionSystemInstruction,
		Schema:            extractionSchema(),
		MaxAttempts:       x.maxAttempts,
	}, normalizeExtraction, x.log)
	if err != nil {
		return nil, err
	}

	return &models.EnrichedRequirement{
		OriginalText:      text,
		SearchText:        out.CleanedQuery,
		Skills:            out.Skills,
		DurationCeiling:   out.DurationMinutes,
		JobLevels:         out.JobLevels,
		RequiredTestTypes: out.TestTypes,
		KeyRequirements:   out.KeyRequirements,
	}, nil
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
