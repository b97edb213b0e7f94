package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/models"
)

// DefaultRecallKs are the cut-offs reported by the evaluation command.
var DefaultRecallKs = []int{1, 3, 5, 8, 10}

// missCutoff is the K below which a query counts as a miss in the report.
const missCutoff = 5

// LabeledQuery pairs a query with the URL of its known-correct assessment.
type LabeledQuery struct {
	Query       string `json:"query"`
	ExpectedURL string `json:"expected_url"`
}

// QueryResult is the evaluation of one labeled query.
type QueryResult struct {
	Query         string          `json:"query"`
	ExpectedURL   string          `json:"expected_url"`
	PredictedURLs []string        `json:"predicted_urls"`
	Recall        map[int]float64 `json:"recall"`
	Error         string          `json:"error,omitempty"`
}

// EvaluationReport aggregates Recall@K over a labeled set.
type EvaluationReport struct {
	StartedAt  time.Time       `json:"started_at"`
	Duration   time.Duration   `json:"duration"`
	Total      int             `json:"total"`
	MeanRecall map[int]float64 `json:"mean_recall"`
	Results    []QueryResult   `json:"results"`
	Misses     []QueryResult   `json:"misses"`
}

// NormalizeURL lowercases and drops a trailing slash so URLs compare loosely.
func NormalizeURL(u string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(u), "/"))
}

// RecallAtK is 1 when expected appears among the first k predictions, otherwise 0.
func RecallAtK(predicted []string, expected string, k int) float64 {
	if len(predicted) == 0 || strings.TrimSpace(expected) == "" || k <= 0 {
		return 0
	}
	want := NormalizeURL(expected)
	if len(predicted) > k {
		predicted = predicted[:k]
	}
	for _, p := range predicted {
		if NormalizeURL(p) == want {
			return 1
		}
	}
	return 0
}

// LoadLabeledSet reads {"query": "expected url"} or a list of {query, expected_url}.
// Queries are sorted so runs are reproducible.
func LoadLabeledSet(path string) ([]LabeledQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labeled set: %w", err)
	}

	var byQuery map[string]string
	if err := json.Unmarshal(data, &byQuery); err == nil {
		out := make([]LabeledQuery, 0, len(byQuery))
		for q, u := range byQuery {
			out = append(out, LabeledQuery{Query: q, ExpectedURL: u})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Query < out[j].Query })
		return out, nil
	}

	var list []LabeledQuery
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode labeled set: %w", err)
	}
	return list, nil
}

// QueryRunner is the part of the Recommender the evaluator needs.
type QueryRunner interface {
	RecommendQuery(ctx context.Context, text string) (*models.Recommendation, error)
}

type Evaluator struct {
	runner      QueryRunner
	concurrency int
	ks          []int
	log         *zap.Logger
}

func NewEvaluator(runner QueryRunner, concurrency int, log *zap.Logger) *Evaluator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Evaluator{runner: runner, concurrency: concurrency, ks: DefaultRecallKs, log: logger.OrNop(log)}
}

// Run evaluates every query with bounded concurrency. Per-query failures are recorded as zero
// recall; only context cancellation aborts the run.
func (e *Evaluator) Run(ctx context.Context, set []LabeledQuery) (*EvaluationReport, error) {
	report := &EvaluationReport{
		StartedAt:  time.Now(),
		Total:      len(set),
		MeanRecall: make(map[int]float64, len(e.ks)),
		Results:    make([]QueryResult, len(set)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	var mu sync.Mutex
	done := 0

	for i, lq := range set {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res := e.evaluateOne(gctx, lq)
			report.Results[i] = res

			mu.Lock()
			done++
			e.log.Info("evaluated query",
				zap.Int("done", done),
				zap.Int("total", len(set)),
				zap.Float64("recall_at_5", res.Recall[missCutoff]),
				zap.String("query", logger.TruncateForLog(lq.Query, 80)))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluation aborted: %w", err)
	}

	for _, k := range e.ks {
		var sum float64
		for _, r := range report.Results {
			sum += r.Recall[k]
		}
		if len(report.Results) > 0 {
			report.MeanRecall[k] = sum / float64(len(report.Results))
		}
	}

	for _, r := range report.Results {
		if r.Recall[missCutoff] == 0 {
			report.Misses = append(report.Misses, r)
		}
	}

	report.Duration = time.Since(report.StartedAt)
	return report, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, lq LabeledQuery) QueryResult {
	res := QueryResult{
		Query:       lq.Query,
		ExpectedURL: lq.ExpectedURL,
		Recall:      make(map[int]float64, len(e.ks)),
	}

	rec, err := e.runner.RecommendQuery(ctx, lq.Query)
	if err != nil {
		res.Error = err.Error()
		for _, k := range e.ks {
			res.Recall[k] = 0
		}
		return res
	}

	final := rec.FinalList
	if len(final) > models.MaxResponseItems {
		final = final[:models.MaxResponseItems]
	}
	for _, c := range final {
		res.PredictedURLs = append(res.PredictedURLs, c.Item.URL)
	}

	for _, k := range e.ks {
		res.Recall[k] = RecallAtK(res.PredictedURLs, lq.ExpectedURL, k)
	}
	return res
}

// WriteReport stores the report as indented JSON.
func WriteReport(path string, report *EvaluationReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
