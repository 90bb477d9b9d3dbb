package config

import (
	"encoding/json"
	"fitcoach/internal/repository/db"
	"fmt"
	"os"
)

// ModelConfig is the per-request-type model configuration handed to handlers
type ModelConfig struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// ModelPrice holds USD prices per 1000 tokens
type ModelPrice struct {
	InputPer1K  float64 `json:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k"`
}

// AIConfig holds the model, quota and pricing tables of the AI layer.
// A nil limit means unlimited for that tier.
type AIConfig struct {
	Tiers        []string                           `json:"tiers"`
	RequestTypes map[db.RequestType]ModelConfig     `json:"request_types"`
	TierLimits   map[db.RequestType]map[string]*int `json:"tier_limits"`
	ModelPricing map[string]ModelPrice              `json:"model_pricing"`
}

const (
	TierFree    = "free"
	TierBasic   = "basic"
	TierPremium = "premium"
	TierElite   = "elite"

	defaultSmartModel = "claude-3-5-sonnet-20241022"
	defaultFastModel  = "claude-3-5-haiku-20241022"
)

// LoadAIConfig reads the AI config from a JSON file.
// An empty path returns DefaultAIConfig.
func LoadAIConfig(path string) (*AIConfig, error) {
	if path == "" {
		return DefaultAIConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg AIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = []string{TierFree, TierBasic, TierPremium, TierElite}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown request types, negative limits and empty model settings
func (c *AIConfig) Validate() error {
	for t, mc := range c.RequestTypes {
		if !t.Valid() {
			return fmt.Errorf("unknown request type in request_types: %s", t)
		}
		if mc.Model == "" {
			return fmt.Errorf("request type %s has no model", t)
		}
		if mc.MaxTokens <= 0 {
			return fmt.Errorf("request type %s: max_tokens must be positive, got %d", t, mc.MaxTokens)
		}
	}
	for t, limits := range c.TierLimits {
		if !t.Valid() {
			return fmt.Errorf("unknown request type in tier_limits: %s", t)
		}
		for tier, limit := range limits {
			if limit != nil && *limit < 0 {
				return fmt.Errorf("request type %s tier %s: limit must not be negative", t, tier)
			}
		}
	}
	return nil
}

// ModelFor returns the model configuration for a request type
func (c *AIConfig) ModelFor(t db.RequestType) (ModelConfig, bool) {
	mc, ok := c.RequestTypes[t]
	return mc, ok
}

// LimitFor returns the monthly limit for a request type and tier.
// Unknown tiers fall back to the lowest tier; request types without a
// limit table are unlimited.
func (c *AIConfig) LimitFor(t db.RequestType, tier string) *int {
	limits, ok := c.TierLimits[t]
	if !ok {
		return nil
	}
	if limit, ok := limits[tier]; ok {
		return limit
	}
	if len(c.Tiers) > 0 {
		if limit, ok := limits[c.Tiers[0]]; ok {
			return limit
		}
	}
	return nil
}

// PriceFor returns the pricing entry of a model
func (c *AIConfig) PriceFor(model string) (ModelPrice, bool) {
	p, ok := c.ModelPricing[model]
	return p, ok
}

// NextTier returns the tier above the given one, or "" at the top.
// Unknown tiers are treated as the lowest tier.
func (c *AIConfig) NextTier(tier string) string {
	for i, name := range c.Tiers {
		if name == tier {
			if i+1 < len(c.Tiers) {
				return c.Tiers[i+1]
			}
			return ""
		}
	}
	if len(c.Tiers) > 1 {
		return c.Tiers[1]
	}
	return ""
}

func intPtr(v int) *int {
	return &v
}

func limits(free, basic, premium int) map[string]*int {
	return map[string]*int{
		TierFree:    intPtr(free),
		TierBasic:   intPtr(basic),
		TierPremium: intPtr(premium),
		TierElite:   nil,
	}
}

// DefaultAIConfig returns the built-in tables used when no config file is given
func DefaultAIConfig() *AIConfig {
	return &AIConfig{
		Tiers: []string{TierFree, TierBasic, TierPremium, TierElite},
		RequestTypes: map[db.RequestType]ModelConfig{
			db.RequestParseWorkout:       {Model: defaultFastModel, MaxTokens: 1000, Temperature: 0.2},
			db.RequestParseFood:          {Model: defaultFastModel, MaxTokens: 1000, Temperature: 0.2},
			db.RequestCoachChat:          {Model: defaultSmartModel, MaxTokens: 1500, Temperature: 0.7},
			db.RequestVoiceTranscription: {Model: defaultFastModel, MaxTokens: 800, Temperature: 0.3},
			db.RequestPhotoAnalysis:      {Model: defaultSmartModel, MaxTokens: 1000, Temperature: 0.3},
			db.RequestPatternDetection:   {Model: defaultFastModel, MaxTokens: 500, Temperature: 0.3},
			db.RequestLoadAnalysis:       {Model: defaultSmartModel, MaxTokens: 800, Temperature: 0.4},
			db.RequestRecoveryPrediction: {Model: defaultSmartModel, MaxTokens: 800, Temperature: 0.4},
		},
		TierLimits: map[db.RequestType]map[string]*int{
			db.RequestParseWorkout:       limits(50, 200, 1000),
			db.RequestParseFood:          limits(50, 200, 1000),
			db.RequestCoachChat:          limits(10, 50, 200),
			db.RequestVoiceTranscription: limits(5, 50, 200),
			db.RequestPhotoAnalysis:      limits(5, 30, 100),
			db.RequestPatternDetection:   limits(5, 20, 100),
			db.RequestLoadAnalysis:       limits(5, 20, 100),
			db.RequestRecoveryPrediction: limits(5, 20, 100),
		},
		ModelPricing: map[string]ModelPrice{
			defaultSmartModel: {InputPer1K: 0.003, OutputPer1K: 0.015},
			defaultFastModel:  {InputPer1K: 0.0008, OutputPer1K: 0.004},
		},
	}
}
