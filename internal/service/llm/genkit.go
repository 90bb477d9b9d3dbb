package llm

import (
	"context"
	"fitcoach/internal/config"
	"fitcoach/internal/logger"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// GenkitGateway implements Gateway using Firebase Genkit with OpenRouter via compat_oai
type GenkitGateway struct {
	genkit *genkit.Genkit
}

// NewGenkitGateway creates a Genkit gateway configured for OpenRouter
func NewGenkitGateway(ctx context.Context, llmConfig *config.LLMConfig) (*GenkitGateway, error) {
	if llmConfig.OpenRouterAPIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not configured")
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&compat_oai.OpenAICompatible{
			Provider: "openrouter",
			APIKey:   llmConfig.OpenRouterAPIKey,
			BaseURL:  openRouterBaseURL,
		}),
	)

	logger.Log.Info("Initialized Genkit with OpenRouter provider")

	return &GenkitGateway{genkit: g}, nil
}

// Name returns the gateway identifier
func (g *GenkitGateway) Name() string {
	return "genkit"
}

// openRouterModel maps a bare model id onto the plugin namespace
func openRouterModel(model string) string {
	if strings.HasPrefix(model, "openrouter/") {
		return model
	}
	if !strings.Contains(model, "/") && strings.HasPrefix(model, "claude") {
		model = "anthropic/" + model
	}
	return "openrouter/" + model
}

// Complete runs one generation through Genkit
func (g *GenkitGateway) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := openRouterModel(req.Model)

	logger.Log.WithFields(logrus.Fields{
		"model":         model,
		"max_tokens":    req.MaxTokens,
		"temperature":   req.Temperature,
		"message_count": len(req.PriorTurns) + 1,
	}).Info("Calling Genkit")

	var messages []*ai.Message
	if req.SystemPrompt != "" {
		messages = append(messages, &ai.Message{
			Role:    ai.RoleSystem,
			Content: []*ai.Part{ai.NewTextPart(req.SystemPrompt)},
		})
	}
	for _, turn := range req.PriorTurns {
		role := ai.RoleUser
		if turn.Role == "assistant" {
			role = ai.RoleModel
		}
		messages = append(messages, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(turn.Content)},
		})
	}

	parts := make([]*ai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, ai.NewMediaPart(img.MediaType, "data:"+img.MediaType+";base64,"+img.Data))
	}
	parts = append(parts, ai.NewTextPart(req.Message))
	messages = append(messages, &ai.Message{Role: ai.RoleUser, Content: parts})

	params := &openai.ChatCompletionNewParams{
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := genkit.Generate(ctx, g.genkit,
		ai.WithMessages(messages...),
		ai.WithModelName(model),
		ai.WithConfig(params),
	)
	if err != nil {
		return nil, fmt.Errorf("genkit generation failed: %w", err)
	}

	completion := &Completion{
		Text:  resp.Text(),
		Model: req.Model,
	}
	if resp.Usage != nil {
		completion.InputTokens = int(resp.Usage.InputTokens)
		completion.OutputTokens = int(resp.Usage.OutputTokens)
	}
	return completion, nil
}
