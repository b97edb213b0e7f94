package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/models"
)

type RefinerOptions struct {
	Enabled          bool
	SkipWhenFits     bool
	MaxSelect        int
	CandidateLimit   int
	WeightSimilarity float64
	WeightJudge      float64
	Timeout          time.Duration

	// MaxAttempts bounds judge calls per request. The n-th retry waits n*RetryBackoff.
	MaxAttempts  int
	RetryBackoff time.Duration
}

// RefineResult is the refinement outcome. Candidates is always populated from the input.
type RefineResult struct {
	Candidates []models.Candidate
	Refined    bool
	Failed     bool
	Note       string
}

// JudgeScore is one validated judge ranking entry.
type JudgeScore struct {
	Index  int
	Score  float64
	Reason string
}

// Refiner re-scores candidates with the judge and blends the judge score with similarity.
type Refiner struct {
	llm     LLMService
	prompts *PromptBuilder
	opts    RefinerOptions
	log     *zap.Logger
}

func NewRefiner(llm LLMService, opts RefinerOptions, log *zap.Logger) *Refiner {
	if opts.CandidateLimit < 1 {
		opts.CandidateLimit = 20
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Refiner{
		llm:     llm,
		prompts: NewPromptBuilder(),
		opts:    opts,
		log:     logger.OrNop(log),
	}
}

// Refine never fails. Judge errors, unparseable output and empty rankings all return the
// input ordered by similarity with Refined=false.
func (r *Refiner) Refine(ctx context.Context, req *models.EnrichedRequirement, cands []models.Candidate) RefineResult {
	unrefined := func(note string) RefineResult {
		out := models.CloneCandidates(cands)
		models.SortBySimilarity(out)
		return RefineResult{Candidates: out, Note: note}
	}

	switch {
	case len(cands) == 0:
		return unrefined("")
	case !r.opts.Enabled || r.llm == nil:
		return unrefined("refinement disabled")
	case r.opts.SkipWhenFits && len(cands) <= r.opts.MaxSelect:
		return unrefined("refinement skipped: candidates fit within max_select")
	}

	judged := cands
	if len(judged) > r.opts.CandidateLimit {
		judged = judged[:r.opts.CandidateLimit]
	}

	raw, err := r.callJudge(ctx, req, judged)
	if err != nil {
		r.log.Warn("judge call failed, keeping similarity order", zap.Error(err))
		res := unrefined(fmt.Sprintf("refinement failed: %v", err))
		res.Failed = true
		return res
	}

	scores, err := ParseJudgeScores(raw, len(judged))
	if err != nil {
		r.log.Warn("judge output unusable, keeping similarity order",
			zap.Error(err), zap.String("response", logger.TruncateForLog(raw, 300)))
		res := unrefined(fmt.Sprintf("refinement failed: %v", err))
		res.Failed = true
		return res
	}

	return RefineResult{Candidates: r.blend(cands, scores), Refined: true}
}

func (r *Refiner) callJudge(ctx context.Context, req *models.EnrichedRequirement, judged []models.Candidate) (raw string, err error) {
	defer func() {
		if p := recover(); p != nil {
			raw, err = "", fmt.Errorf("judge panicked: %v", p)
		}
	}()

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	topK := r.opts.MaxSelect
	if topK <= 0 || topK > len(judged) {
		topK = len(judged)
	}

	prompt := r.prompts.BuildRerankPrompt(req, judged, topK)

	for attempt := 1; ; attempt++ {
		raw, err = r.llm.GenerateJSON(ctx, prompt, judgeSystemInstruction, judgeSchema())
		if err == nil || attempt >= r.opts.MaxAttempts {
			break
		}

		r.log.Warn("judge attempt failed, retrying", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("judge cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-time.After(time.Duration(attempt) * r.opts.RetryBackoff):
		}
	}

	if err != nil && r.opts.MaxAttempts > 1 {
		return "", fmt.Errorf("judge failed after %d attempts: %w", r.opts.MaxAttempts, err)
	}
	return raw, err
}

// blend applies judge scores and orders the whole list by combined score. Candidates the judge
// skipped keep combined = w_sim * similarity and compete with the judged ones.
func (r *Refiner) blend(cands []models.Candidate, scores []JudgeScore) []models.Candidate {
	byIndex := make(map[int]JudgeScore, len(scores))
	for _, s := range scores {
		byIndex[s.Index] = s
	}

	out := make([]models.Candidate, 0, len(cands))
	for i, c := range cands {
		combined := r.opts.WeightSimilarity * c.SimilarityScore
		if s, ok := byIndex[i]; ok {
			judge := s.Score
			combined += r.opts.WeightJudge * judge
			c.JudgeScore = &judge
			c.JudgeReason = s.Reason
		}
		c.CombinedScore = &combined
		out = append(out, c)
	}

	models.SortByScore(out)
	return out
}

type rawJudgeEntry struct {
	ID     json.RawMessage `json:"id"`
	Index  json.RawMessage `json:"index"`
	Score  json.RawMessage `json:"score"`
	Reason string          `json:"reason"`
}

// ParseJudgeScores decodes judge output, a JSON array or an object with a "rankings" array,
// possibly wrapped in prose or code fences. Every JSON span in the output is tried in order
// until one yields a usable entry. Entries with an index outside [0,n), a missing score or a
// repeated index are dropped. An error means no usable entry remained.
func ParseJudgeScores(raw string, n int) ([]JudgeScore, error) {
	var scores []JudgeScore
	err := DecodeJSONWith(raw, func(candidate string) error {
		parsed, err := parseJudgePayload([]byte(candidate), n)
		if err != nil {
			return err
		}
		scores = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func parseJudgePayload(payload []byte, n int) ([]JudgeScore, error) {
	var entries []rawJudgeEntry
	trimmed := bytes.TrimSpace(payload)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode rankings: %w", err)
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var wrapped struct {
			Rankings []rawJudgeEntry `json:"rankings"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode rankings: %w", err)
		}
		entries = wrapped.Rankings
	default:
		return nil, fmt.Errorf("judge output is not a JSON object or array")
	}

	seen := make(map[int]bool, len(entries))
	scores := make([]JudgeScore, 0, len(entries))
	for _, e := range entries {
		idRaw := e.ID
		if len(idRaw) == 0 || string(idRaw) == "null" {
			idRaw = e.Index
		}
		idf, ok := coerceFloat(idRaw)
		if !ok || idf != math.Trunc(idf) {
			continue
		}
		idx := int(idf)
		if idx < 0 || idx >= n || seen[idx] {
			continue
		}

		score, ok := coerceFloat(e.Score)
		if !ok {
			continue
		}

		seen[idx] = true
		scores = append(scores, JudgeScore{
			Index:  idx,
			Score:  models.ClampUnit(score),
			Reason: strings.TrimSpace(e.Reason),
		})
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("judge returned no valid rankings")
	}

	return scores, nil
}

// coerceFloat reads a JSON number or a numeric string.
func coerceFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
