package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type structuredOut struct {
	Name  string `json:"name" validate:"required"`
	Level int    `json:"level" validate:"gte=0,lte=5"`
}

func TestGenerateStructured_JSONTier(t *testing.T) {
	llm := &stubLLM{jsonFn: func(string) (string, error) { return `{"name":" ok ","level":2}`, nil }}

	out, err := GenerateStructured(context.Background(), llm, StructuredRequest{Prompt: "p", MaxAttempts: 3},
		func(o *structuredOut) { o.Name = strings.TrimSpace(o.Name) }, nil)

	require.NoError(t, err)
	assert.Equal(t, &structuredOut{Name: "ok", Level: 2}, out)
	assert.Equal(t, 1, llm.jsonCalls)
	assert.Zero(t, llm.textCalls)
}

func TestGenerateStructured_TextTier(t *testing.T) {
	llm := &stubLLM{
		jsonFn: func(string) (string, error) { return "", errors.New("schema mode unsupported") },
		textFn: func(string) (string, error) {
			return "Sure, here it is:\n```json\n{\"name\":\"fallback\",\"level\":1}\n```", nil
		},
	}

	out, err := GenerateStructured[structuredOut](context.Background(), llm, StructuredRequest{Prompt: "p", MaxAttempts: 2}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "fallback", out.Name)
	assert.Equal(t, 1, llm.textCalls)
}

func TestGenerateStructured_SkipsSpansThatDoNotFit(t *testing.T) {
	llm := &stubLLM{
		jsonFn: func(string) (string, error) { return "", errors.New("schema mode unsupported") },
		textFn: func(string) (string, error) {
			return `Levels range over [0, 5]. Draft {"level":1} was incomplete. Final: {"name":"Java","level":3}`, nil
		},
	}

	out, err := GenerateStructured[structuredOut](context.Background(), llm, StructuredRequest{Prompt: "p", MaxAttempts: 1}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, &structuredOut{Name: "Java", Level: 3}, out)
}

func TestGenerateStructured_ExhaustsAttempts(t *testing.T) {
	llm := &stubLLM{
		jsonFn: func(string) (string, error) { return `{"name":"","level":9}`, nil },
		textFn: func(string) (string, error) { return "no json at all", nil },
	}

	_, err := GenerateStructured[structuredOut](context.Background(), llm, StructuredRequest{Prompt: "p", MaxAttempts: 3}, nil, nil)

	assert.ErrorIs(t, err, ErrStructuredOutput)
	assert.Equal(t, 3, llm.jsonCalls)
	assert.Equal(t, 3, llm.textCalls)
}

func TestGenerateStructured_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	llm := &stubLLM{jsonFn: func(string) (string, error) { return `{"name":"x"}`, nil }}

	_, err := GenerateStructured[structuredOut](ctx, llm, StructuredRequest{Prompt: "p"}, nil, nil)

	assert.ErrorIs(t, err, ErrStructuredOutput)
	assert.Zero(t, llm.jsonCalls)
}
