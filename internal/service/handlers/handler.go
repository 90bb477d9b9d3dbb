package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fitcoach/internal/config"
	"fitcoach/internal/repository/db"
	"fitcoach/internal/service/llm"
	"fmt"
)

// ErrInvalidInput is returned when a handler cannot use the request input
var ErrInvalidInput = errors.New("invalid input")

// Input is the request payload handed to a handler. Which fields are
// required depends on the request type.
type Input struct {
	Text      string          `json:"text,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Image     string          `json:"image,omitempty"`
	MediaType string          `json:"media_type,omitempty"`
}

// Result is the handler output before cost accounting
type Result struct {
	Data         any
	Confidence   float64
	Model        string
	InputTokens  int
	OutputTokens int
}

// TokensUsed returns input plus output tokens
func (r *Result) TokensUsed() int {
	return r.InputTokens + r.OutputTokens
}

// Handler processes one request kind against a loaded user context
type Handler interface {
	Process(ctx context.Context, input Input, uc *db.ContextCache, cfg config.ModelConfig) (*Result, error)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// complete sends one prompt through the gateway with the per-type model settings
func complete(ctx context.Context, gateway llm.Gateway, cfg config.ModelConfig, system, message string, prior []llm.Message, images []llm.Image) (*llm.Completion, error) {
	completion, err := gateway.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		PriorTurns:   prior,
		Message:      message,
		Images:       images,
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
		Temperature:  cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("model gateway: %w", err)
	}
	return completion, nil
}

func resultFrom(data any, confidence float64, cfg config.ModelConfig, completion *llm.Completion) *Result {
	r := &Result{Data: data, Confidence: clamp01(confidence), Model: cfg.Model}
	if completion != nil {
		r.InputTokens = completion.InputTokens
		r.OutputTokens = completion.OutputTokens
		if completion.Model != "" {
			r.Model = completion.Model
		}
	}
	return r
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
