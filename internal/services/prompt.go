package services

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"alfredoptarigan/assessment-recommender/internal/models"
)

const extractionSystemInstruction = `You extract hiring requirements from job descriptions and translate them into the vocabulary of an assessment catalog.
Assessments are named after what they test: "English Comprehension", "Computer Literacy", "Manual Testing", "Java", "Data Analysis".
Prefer those names over generic HR terms such as "proficiency" or "awareness".`

const judgeSystemInstruction = `You are an expert at matching job requirements to pre-built assessments.
Rank the candidate assessments by how well they predict success in the described role.
Foundational skills rank before specialised ones. Implicit needs count: sales roles need communication, admin roles need computer basics, entry-level roles need aptitude.
An assessment whose name matches an explicit requirement is a strong signal.
An assessment longer than the duration limit scores 0.
Scores: foundation need 0.8-1.0, explicit skill 0.7-0.9, level fit 0.6-0.8, supporting skill 0.4-0.6, loosely related 0.2-0.4, unrelated 0.0-0.2.`

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildExtractionPrompt creates the prompt that turns raw query text into structured requirements.
func (pb *PromptBuilder) BuildExtractionPrompt(text string) string {
	return fmt.Sprintf(`Extract job requirements and assessment search terms.

JOB QUERY:
%s

TASKS:
1. Identify the role and its level (Entry-Level, Graduate, Mid-Professional, Professional Individual Contributor, Manager, Director, Executive).
2. List explicit and implicit skills, each written as an assessment catalog would name it, most important first.
3. Pick assessment type codes: A Ability & Aptitude, B Biodata & Situational Judgement, C Competencies, D Development & 360, E Assessment Exercises, K Knowledge & Skills, P Personality & Behavior, S Simulations.
4. Extract the maximum test duration in minutes if one is stated, otherwise null.
5. Write a cleaned search query using assessment terminology.

Return JSON:
{
  "cleaned_query": "<search query>",
  "skills": ["<skill>", ...],
  "duration_minutes": <integer or null>,
  "job_levels": ["<level>", ...],
  "test_types": ["K", "P", ...],
  "key_requirements": ["<requirement>", ...]
}`, text)
}

// BuildRerankPrompt creates the judge prompt for the serialized candidate list.
func (pb *PromptBuilder) BuildRerankPrompt(req *models.EnrichedRequirement, candidates []models.Candidate, topK int) string {
	query := req.OriginalText
	if r := []rune(query); len(r) > 500 {
		query = string(r[:500])
	}

	durationLimit := "No limit"
	if ceiling, ok := req.Ceiling(); ok {
		durationLimit = fmt.Sprintf("%d minutes", ceiling)
	}

	return fmt.Sprintf(`Rank assessments for this job requirement.

JOB REQUIREMENT:
%s

KEY SKILLS:
%s

TEST TYPES:
%s

JOB LEVEL:
%s

DURATION LIMIT:
%s

CANDIDATE ASSESSMENTS:
%s

Return a JSON array with up to %d entries sorted by score descending:
[{"id": <candidate ID>, "score": <0.0-1.0>, "reason": "<one sentence>"}]
Only use IDs from the list above.`,
		query,
		joinOrDefault(req.TopSkills(10)),
		joinOrDefault(req.RequiredTestTypes),
		joinOrDefault(req.JobLevels),
		durationLimit,
		SerializeCandidates(candidates),
		topK,
	)
}

// SerializeCandidates renders candidates for the judge. The ID of each entry is its position.
func SerializeCandidates(candidates []models.Candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		desc := c.Item.Description
		if r := []rune(desc); len(r) > 300 {
			desc = string(r[:300]) + "..."
		}

		duration := "Unknown"
		if c.Item.DurationMinutes != nil {
			duration = fmt.Sprintf("%d minutes", *c.Item.DurationMinutes)
		}

		fmt.Fprintf(&b, "ID: %d\nName: %s\nDescription: %s\nTest Types: %s\nDuration: %s\nJob Levels: %s\nVector Score: %.3f\n\n",
			i,
			c.Item.Name,
			desc,
			joinOrDefault(c.Item.TestTypes),
			duration,
			orDefault(c.Item.JobLevels),
			c.SimilarityScore,
		)
	}
	return strings.TrimSpace(b.String())
}

func joinOrDefault(values []string) string {
	if len(values) == 0 {
		return "Not specified"
	}
	return strings.Join(values, ", ")
}

func orDefault(value string) string {
	if strings.TrimSpace(value) == "" {
		return "Not specified"
	}
	return value
}

func extractionSchema() *genai.Schema {
	stringList := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"cleaned_query":    {Type: genai.TypeString},
			"skills":           stringList,
			"duration_minutes": {Type: genai.TypeInteger, Nullable: genai.Ptr(true)},
			"job_levels":       stringList,
			"test_types":       stringList,
			"key_requirements": stringList,
		},
		Required: []string{"cleaned_query", "skills", "test_types"},
	}
}

func judgeSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"id":     {Type: genai.TypeInteger},
				"score":  {Type: genai.TypeNumber},
				"reason": {Type: genai.TypeString},
			},
			Required: []string{"id", "score"},
		},
	}
}
