package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a gateway has no credentials
var ErrNotConfigured = errors.New("model gateway not configured")

// Message is one prior conversation turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Image is an inline image attached to the new user message
type Image struct {
	MediaType string // e.g. image/jpeg
	Data      string // base64, no data: prefix
}

// CompletionRequest is a single text-completion call
type CompletionRequest struct {
	SystemPrompt string
	PriorTurns   []Message
	Message      string
	Images       []Image
	Model        string
	MaxTokens    int
	Temperature  float64
}

// Completion is the gateway result
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// TotalTokens returns input plus output tokens
func (c *Completion) TotalTokens() int {
	return c.InputTokens + c.OutputTokens
}

// Gateway is the opaque text-completion service used by the AI handlers
type Gateway interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Name() string
}
