package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fitcoach/internal/config"
	"fitcoach/internal/logger"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	anthropicVersion = "2023-06-01"

	// maxErrorBodySize caps how much of an error response is read
	maxErrorBodySize = 1 << 20
)

// AnthropicGateway implements Gateway over the Anthropic Messages API
type AnthropicGateway struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAnthropicGateway creates a new Anthropic gateway with config
func NewAnthropicGateway(llmConfig *config.LLMConfig) *AnthropicGateway {
	return &AnthropicGateway{
		apiKey:  llmConfig.AnthropicAPIKey,
		baseURL: strings.TrimRight(llmConfig.AnthropicBaseURL, "/"),
		client:  &http.Client{Timeout: llmConfig.Timeout},
	}
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	ID         string `json:"id"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Name returns the gateway identifier
func (g *AnthropicGateway) Name() string {
	return "anthropic"
}

func buildAnthropicMessages(req CompletionRequest) []anthropicMessage {
	messages := make([]anthropicMessage, 0, len(req.PriorTurns)+1)
	for _, turn := range req.PriorTurns {
		messages = append(messages, anthropicMessage{
			Role:    turn.Role,
			Content: []anthropicContent{{Type: "text", Text: turn.Content}},
		})
	}

	content := make([]anthropicContent, 0, len(req.Images)+1)
	for _, img := range req.Images {
		content = append(content, anthropicContent{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: img.MediaType,
				Data:      img.Data,
			},
		})
	}
	content = append(content, anthropicContent{Type: "text", Text: req.Message})

	return append(messages, anthropicMessage{Role: "user", Content: content})
}

// Complete sends one Messages API call and returns text plus token counts
func (g *AnthropicGateway) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         req.Model,
		"max_tokens":    req.MaxTokens,
		"temperature":   req.Temperature,
		"message_count": len(req.PriorTurns) + 1,
		"images":        len(req.Images),
	}).Info("Calling Anthropic API")

	body, err := json.Marshal(anthropicRequest{
		Model:       req.Model,
		System:      req.SystemPrompt,
		Messages:    buildAnthropicMessages(req),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", g.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(errBody))
	}

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("no text content in response")
	}

	model := apiResp.Model
	if model == "" {
		model = req.Model
	}

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"input_tokens":  apiResp.Usage.InputTokens,
		"output_tokens": apiResp.Usage.OutputTokens,
		"stop_reason":   apiResp.StopReason,
	}).Debug("Received Anthropic response")

	return &Completion{
		Text:         text.String(),
		Model:        model,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}
