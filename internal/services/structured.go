package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"alfredoptarigan/assessment-recommender/internal/logger"
)

var validate = validator.New()

// StructuredRequest describes one structured generation call.
type StructuredRequest struct {
	Prompt            string
	SystemInstruction string
	Schema            *genai.Schema
	MaxAttempts       int
}

// GenerateStructured decodes a model response into T. Each attempt first asks for schema-constrained
// JSON, then falls back to free text with tolerant JSON extraction. Decoded values are normalized
// and validated. When every attempt fails the error wraps ErrStructuredOutput.
func GenerateStructured[T any](ctx context.Context, llm LLMService, req StructuredRequest, normalize func(*T), log *zap.Logger) (*T, error) {
	log = logger.OrNop(log)
	attempts := req.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStructuredOutput, err)
		}

		raw, err := llm.GenerateJSON(ctx, req.Prompt, req.SystemInstruction, req.Schema)
		if err == nil {
			out, decodeErr := decodeStructured(raw, normalize)
			if decodeErr == nil {
				return out, nil
			}
			err = decodeErr
		}
		log.Debug("structured generation failed, trying text extraction", zap.Int("attempt", attempt), zap.Error(err))

		raw, err = llm.GenerateText(ctx, req.Prompt, req.SystemInstruction)
		if err == nil {
			out, decodeErr := decodeStructured(raw, normalize)
			if decodeErr == nil {
				return out, nil
			}
			err = decodeErr
		}

		lastErr = err
		log.Warn("structured extraction attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrStructuredOutput, attempts, lastErr)
}

func decodeStructured[T any](raw string, normalize func(*T)) (*T, error) {
	var result *T
	err := DecodeJSONWith(raw, func(candidate string) error {
		var out T
		if err := json.Unmarshal([]byte(candidate), &out); err != nil {
			return err
		}

		if normalize != nil {
			normalize(&out)
		}

		if err := validate.Struct(&out); err != nil {
			return fmt.Errorf("structured output failed validation: %w", err)
		}

		result = &out
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
