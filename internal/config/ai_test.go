package config

import (
	"fitcoach/internal/repository/db"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "ai.json")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return configPath
}

func TestLoadAIConfig_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `{
		"request_types": {
			"parse_food": {"model": "model-a", "max_tokens": 500, "temperature": 0.2}
		},
		"tier_limits": {
			"parse_food": {"free": 5, "basic": 20, "elite": null}
		},
		"model_pricing": {
			"model-a": {"input_per_1k": 0.001, "output_per_1k": 0.002}
		}
	}`)

	cfg, err := LoadAIConfig(configPath)
	if err != nil {
		t.Fatalf("LoadAIConfig() error = %v, want nil", err)
	}

	mc, ok := cfg.ModelFor(db.RequestParseFood)
	if !ok {
		t.Fatal("ModelFor(parse_food) not found")
	}
	if mc.Model != "model-a" || mc.MaxTokens != 500 {
		t.Errorf("ModelFor(parse_food) = %+v", mc)
	}

	if len(cfg.Tiers) != 4 {
		t.Errorf("Tiers defaulted to %v, want 4 tiers", cfg.Tiers)
	}

	if limit := cfg.LimitFor(db.RequestParseFood, "free"); limit == nil || *limit != 5 {
		t.Errorf("LimitFor(parse_food, free) = %v, want 5", limit)
	}
	if limit := cfg.LimitFor(db.RequestParseFood, "elite"); limit != nil {
		t.Errorf("LimitFor(parse_food, elite) = %v, want nil (unlimited)", *limit)
	}

	price, ok := cfg.PriceFor("model-a")
	if !ok || price.InputPer1K != 0.001 || price.OutputPer1K != 0.002 {
		t.Errorf("PriceFor(model-a) = %+v, %v", price, ok)
	}
}

func TestLoadAIConfig_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := LoadAIConfig("")
	if err != nil {
		t.Fatalf("LoadAIConfig(\"\") error = %v", err)
	}
	for _, rt := range db.AllRequestTypes {
		if _, ok := cfg.ModelFor(rt); !ok {
			t.Errorf("default config has no model for %s", rt)
		}
	}
}

func TestLoadAIConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadAIConfig("/nonexistent/path/ai.json")
	if err == nil {
		t.Error("LoadAIConfig() error = nil, want error for nonexistent file")
	}
	if cfg != nil {
		t.Error("LoadAIConfig() returned non-nil config for nonexistent file")
	}
}

func TestLoadAIConfig_InvalidJSON(t *testing.T) {
	configPath := writeConfig(t, `{ this is not valid json }`)

	cfg, err := LoadAIConfig(configPath)
	if err == nil {
		t.Error("LoadAIConfig() error = nil, want error for invalid JSON")
	}
	if cfg != nil {
		t.Error("LoadAIConfig() returned non-nil config for invalid JSON")
	}
}

func TestAIConfig_Validate(t *testing.T) {
	negative := -1

	tests := []struct {
		name    string
		config  *AIConfig
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			config:  DefaultAIConfig(),
			wantErr: false,
		},
		{
			name: "unknown request type",
			config: &AIConfig{
				RequestTypes: map[db.RequestType]ModelConfig{
					"summarize": {Model: "m", MaxTokens: 10},
				},
			},
			wantErr: true,
		},
		{
			name: "missing model",
			config: &AIConfig{
				RequestTypes: map[db.RequestType]ModelConfig{
					db.RequestCoachChat: {MaxTokens: 10},
				},
			},
			wantErr: true,
		},
		{
			name: "non-positive max tokens",
			config: &AIConfig{
				RequestTypes: map[db.RequestType]ModelConfig{
					db.RequestCoachChat: {Model: "m", MaxTokens: 0},
				},
			},
			wantErr: true,
		},
		{
			name: "negative limit",
			config: &AIConfig{
				TierLimits: map[db.RequestType]map[string]*int{
					db.RequestCoachChat: {"free": &negative},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAIConfig_LimitFor(t *testing.T) {
	cfg := DefaultAIConfig()

	tests := []struct {
		name        string
		requestType db.RequestType
		tier        string
		want        *int
	}{
		{name: "free tier", requestType: db.RequestCoachChat, tier: "free", want: intPtr(10)},
		{name: "premium tier", requestType: db.RequestCoachChat, tier: "premium", want: intPtr(200)},
		{name: "elite unlimited", requestType: db.RequestCoachChat, tier: "elite", want: nil},
		{name: "unknown tier falls back to free", requestType: db.RequestCoachChat, tier: "platinum", want: intPtr(10)},
		{name: "unknown type unlimited", requestType: "unknown", tier: "free", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.LimitFor(tt.requestType, tt.tier)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("LimitFor() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("LimitFor() = %d, want %d", *got, *tt.want)
			}
		})
	}
}

func TestAIConfig_NextTier(t *testing.T) {
	cfg := DefaultAIConfig()

	tests := []struct {
		tier string
		want string
	}{
		{tier: "free", want: "basic"},
		{tier: "basic", want: "premium"},
		{tier: "premium", want: "elite"},
		{tier: "elite", want: ""},
		{tier: "", want: "basic"},
	}

	for _, tt := range tests {
		t.Run(tt.tier, func(t *testing.T) {
			if got := cfg.NextTier(tt.tier); got != tt.want {
				t.Errorf("NextTier(%q) = %q, want %q", tt.tier, got, tt.want)
			}
		})
	}
}

func TestLoadAIConfig_RepositoryFile(t *testing.T) {
	cfg, err := LoadAIConfig(filepath.Join("..", "..", "config", "ai.json"))
	if err != nil {
		t.Fatalf("LoadAIConfig(config/ai.json) error = %v", err)
	}
	if limit := cfg.LimitFor(db.RequestParseFood, "free"); limit == nil || *limit != 50 {
		t.Errorf("LimitFor(parse_food, free) = %v, want 50", limit)
	}
}
