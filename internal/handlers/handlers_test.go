package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/assessment-recommender/internal/models"
	"alfredoptarigan/assessment-recommender/internal/services"
)

type runnerFunc func(ctx context.Context, text string) (*models.Recommendation, error)

func (f runnerFunc) RecommendQuery(ctx context.Context, text string) (*models.Recommendation, error) {
	return f(ctx, text)
}

type stubParser struct {
	text string
	err  error
	path string
}

func (p *stubParser) ExtractJobDescription(path string) (*services.JobDescription, error) {
	p.path = path
	if p.err != nil {
		return nil, p.err
	}
	return &services.JobDescription{Text: p.text, PageCount: 1}, nil
}

type unavailableIndex struct{}

func (unavailableIndex) Upsert(context.Context, []models.IndexedItem) (int, error) {
	return 0, services.ErrIndexUnavailable
}

func (unavailableIndex) Query(context.Context, []float32, int, *services.IndexFilter) ([]services.IndexHit, error) {
	return nil, services.ErrIndexUnavailable
}

func (unavailableIndex) Count(context.Context) (int, error) { return 0, services.ErrIndexUnavailable }
func (unavailableIndex) Clear(context.Context) error        { return services.ErrIndexUnavailable }
func (unavailableIndex) Name() string                       { return "unavailable" }

func twelveResults(context.Context, string) (*models.Recommendation, error) {
	rec := &models.Recommendation{Diagnostics: models.Diagnostics{Stage: models.StageSelected}}
	for i := 0; i < 12; i++ {
		score := 1 - float64(i)/100
		rec.FinalList = append(rec.FinalList, models.Candidate{
			Item: models.CatalogItem{
				URL:             fmt.Sprintf("https://catalog.example.com/%d", i),
				Name:            fmt.Sprintf("Assessment %d", i),
				TestTypes:       []string{"K"},
				RemoteSupport:   true,
				DurationMinutes: nil,
			},
			SimilarityScore: score,
		})
	}
	return rec, nil
}

func newTestApp(runner services.QueryRunner) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	h := NewRecommendHandler(runner, nil)
	app.Post("/recommend", h.HandleRecommend)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp, out
}

func TestHandleRecommend_OK(t *testing.T) {
	app := newTestApp(runnerFunc(twelveResults))

	resp, body := postJSON(t, app, "/recommend", `{"query":"Java developer who collaborates"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["id"])
	items, ok := body["recommended_assessments"].([]any)
	require.True(t, ok)
	assert.Len(t, items, models.MaxResponseItems)

	first := items[0].(map[string]any)
	assert.Equal(t, "Assessment 0", first["name"])
	assert.Equal(t, "Yes", first["remote_support"])
	assert.Equal(t, "No", first["adaptive_support"])
	assert.Equal(t, []any{"Knowledge & Skills"}, first["test_type"])
}

func TestHandleRecommend_BadRequest(t *testing.T) {
	app := newTestApp(runnerFunc(twelveResults))

	for _, body := range []string{`{"query":"short"}`, `{}`, `not json`} {
		resp, out := postJSON(t, app, "/recommend", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.NotEmpty(t, out["error"])
	}
}

func TestHandleRecommend_NoMatches(t *testing.T) {
	app := newTestApp(runnerFunc(func(context.Context, string) (*models.Recommendation, error) {
		return &models.Recommendation{
			FinalList:   []models.Candidate{},
			Diagnostics: models.Diagnostics{Stage: models.StageNoCandidates, NoMatches: true},
		}, nil
	}))

	resp, body := postJSON(t, app, "/recommend", `{"query":"underwater basket weaving"}`)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	diag, ok := body["diagnostics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, diag["no_matches"])
}

func TestHandleRecommend_Errors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("query failed: %w", services.ErrIndexUnavailable), http.StatusServiceUnavailable},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		app := newTestApp(runnerFunc(func(context.Context, string) (*models.Recommendation, error) {
			return nil, tc.err
		}))

		resp, body := postJSON(t, app, "/recommend", `{"query":"Java developer who collaborates"}`)

		assert.Equal(t, tc.code, resp.StatusCode)
		assert.Equal(t, float64(tc.code), body["code"])
	}
}

func TestCatalogHandler(t *testing.T) {
	index := services.NewMemoryIndex()
	_, err := index.Upsert(context.Background(), []models.IndexedItem{{
		Item:   models.CatalogItem{ID: "a", Name: "A", URL: "https://catalog.example.com/a"},
		Vector: []float32{1, 0},
	}})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	h := NewCatalogHandler(index, CatalogInfo{Backend: "memory", SelectionPolicy: services.PolicyDiversity})
	app.Get("/health", h.HandleHealth)
	app.Get("/catalog/stats", h.HandleStats)

	down := NewCatalogHandler(unavailableIndex{}, CatalogInfo{})
	app.Get("/down/health", down.HandleHealth)
	app.Get("/down/stats", down.HandleStats)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/catalog/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stats models.CatalogStatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, "memory", stats.Backend)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/down/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/down/stats", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/recommend/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHandleUpload(t *testing.T) {
	dir := t.TempDir()
	uploads := services.NewUploadStore(dir, 1024)
	parser := &stubParser{text: "Hiring a Java developer with SQL"}

	var gotQuery string
	runner := runnerFunc(func(ctx context.Context, text string) (*models.Recommendation, error) {
		gotQuery = text
		return twelveResults(ctx, text)
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/recommend/upload", NewUploadHandler(runner, uploads, parser, nil).HandleUpload)

	resp, err := app.Test(uploadRequest(t, "job_description", "jd.pdf", []byte("%PDF-1.4")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hiring a Java developer with SQL", gotQuery)

	_, statErr := os.Stat(parser.path)
	assert.True(t, os.IsNotExist(statErr), "uploaded file should be removed")

	resp, err = app.Test(uploadRequest(t, "other", "jd.pdf", []byte("%PDF-1.4")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(uploadRequest(t, "job_description", "jd.txt", []byte("text")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(uploadRequest(t, "job_description", "big.pdf", bytes.Repeat([]byte("x"), 2048)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(uploadRequest(t, "job_description", "renamed.pdf", []byte("plain text")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	parser.err = errors.New("encrypted document")
	resp, err = app.Test(uploadRequest(t, "job_description", "jd.pdf", []byte("%PDF-1.4")), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
