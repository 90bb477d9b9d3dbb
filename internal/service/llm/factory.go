package llm

import (
	"context"
	"fitcoach/internal/config"
	"fitcoach/internal/logger"
	"fmt"
)

// ProviderType represents the type of model gateway
type ProviderType string

const (
	ProviderAnthropic ProviderType = "anthropic"
	ProviderGenkit    ProviderType = "genkit"
)

// ParseProviderType parses a string into a ProviderType
func ParseProviderType(s string) (ProviderType, error) {
	switch s {
	case "anthropic", "":
		return ProviderAnthropic, nil
	case "genkit":
		return ProviderGenkit, nil
	default:
		return "", fmt.Errorf("unknown provider type: %s", s)
	}
}

// NewGateway creates the gateway selected by llmConfig.Provider
func NewGateway(ctx context.Context, llmConfig *config.LLMConfig) (Gateway, error) {
	providerType, err := ParseProviderType(llmConfig.Provider)
	if err != nil {
		return nil, err
	}

	switch providerType {
	case ProviderGenkit:
		logger.Log.Info("Creating Genkit gateway")
		return NewGenkitGateway(ctx, llmConfig)
	default:
		logger.Log.Info("Creating Anthropic gateway")
		return NewAnthropicGateway(llmConfig), nil
	}
}
