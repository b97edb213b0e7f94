package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"alfredoptarigan/assessment-recommender/internal/logger"
)

const maxEmbedChars = 40000

// truncateEmbedText caps text at maxEmbedChars bytes without splitting a UTF-8 sequence.
func truncateEmbedText(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := maxEmbedChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// Embedder turns text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch never fails as a whole: items that cannot be embedded get a zero vector.
	EmbedBatch(ctx context.Context, texts []string) [][]float32
	Dimension() int
	ModelName() string
}

// LLMService is the text and structured generation black box used by extraction and judging.
type LLMService interface {
	GenerateText(ctx context.Context, prompt, systemInstruction string) (string, error)
	GenerateJSON(ctx context.Context, prompt, systemInstruction string, schema *genai.Schema) (string, error)
}

// GeminiService is backed by one genai client serving both embeddings and generation.
type GeminiService interface {
	Embedder
	LLMService
}

type GeminiOptions struct {
	APIKey          string
	Model           string
	EmbeddingModel  string
	Dimension       int
	Temperature     float32
	MaxOutputTokens int
	CacheSize       int
}

type geminiService struct {
	client     *genai.Client
	modelName  string
	embedModel string
	dimension  int
	opts       GeminiOptions
	cache      *lru.Cache[string, []float32]
	log        *zap.Logger
}

func NewGeminiService(ctx context.Context, opts GeminiOptions, log *zap.Logger) (GeminiService, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	var cache *lru.Cache[string, []float32]
	if opts.CacheSize > 0 {
		cache, err = lru.New[string, []float32](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
	}

	return &geminiService{
		client:     client,
		modelName:  opts.Model,
		embedModel: opts.EmbeddingModel,
		dimension:  opts.Dimension,
		opts:       opts,
		cache:      cache,
		log:        logger.WithModel(log, "gemini", opts.Model),
	}, nil
}

// Dimension implements Embedder.
func (g *geminiService) Dimension() int { return g.dimension }

// ModelName implements Embedder.
func (g *geminiService) ModelName() string { return g.embedModel }

func (g *geminiService) embedConfig() *genai.EmbedContentConfig {
	if g.dimension <= 0 {
		return nil
	}
	dim := int32(g.dimension)
	return &genai.EmbedContentConfig{OutputDimensionality: &dim}
}

// Embed implements Embedder. Results are cached by exact text.
func (g *geminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	text = truncateEmbedText(text)

	if g.cache != nil {
		if vec, ok := g.cache.Get(text); ok {
			return vec, nil
		}
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), g.embedConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vec := result.Embeddings[0].Values
	if g.cache != nil {
		g.cache.Add(text, vec)
	}

	return vec, nil
}

// EmbedBatch implements Embedder. One request carries the whole batch; when it fails each
// text is retried alone so a single bad item only costs its own vector.
func (g *geminiService) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		t = truncateEmbedText(t)
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: t}},
		})
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents, g.embedConfig())
	if err == nil && result != nil && len(result.Embeddings) == len(texts) {
		for i, e := range result.Embeddings {
			if e == nil || len(e.Values) == 0 {
				out[i] = make([]float32, g.dimension)
				continue
			}
			out[i] = e.Values
		}
		return out
	}

	g.log.Warn("batch embedding failed, falling back to single requests",
		zap.Int("batch_size", len(texts)), zap.Error(err))

	for i, t := range texts {
		vec, err := g.Embed(ctx, t)
		if err != nil {
			g.log.Warn("embedding failed, using zero vector", zap.Int("position", i), zap.Error(err))
			out[i] = make([]float32, g.dimension)
			continue
		}
		out[i] = vec
	}

	return out
}

func (g *geminiService) generateConfig(systemInstruction string) *genai.GenerateContentConfig {
	temperature := g.opts.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(g.opts.MaxOutputTokens),
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}
	return config
}

// GenerateText implements LLMService.
func (g *geminiService) GenerateText(ctx context.Context, prompt, systemInstruction string) (string, error) {
	return g.generate(ctx, prompt, g.generateConfig(systemInstruction))
}

// GenerateJSON implements LLMService. The model is asked for application/json, constrained by
// schema when one is given.
func (g *geminiService) GenerateJSON(ctx context.Context, prompt, systemInstruction string, schema *genai.Schema) (string, error) {
	config := g.generateConfig(systemInstruction)
	config.ResponseMIMEType = "application/json"
	config.ResponseSchema = schema

	text, err := g.generate(ctx, prompt, config)
	if err != nil {
		return "", err
	}

	return StripCodeFence(text), nil
}

func (g *geminiService) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	g.log.Debug("gemini request", zap.String("prompt", logger.TruncateForLog(prompt, 500)))

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if resp == nil {
		return "", fmt.Errorf("no response generated (nil response)")
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content in response")
	}

	g.log.Debug("gemini response", zap.String("response", logger.TruncateForLog(text, 500)))

	return text, nil
}
