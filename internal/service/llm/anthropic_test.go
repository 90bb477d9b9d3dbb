package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fitcoach/internal/config"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestGateway(url, key string) *AnthropicGateway {
	return NewAnthropicGateway(&config.LLMConfig{
		AnthropicAPIKey:  key,
		AnthropicBaseURL: url,
		Timeout:          5 * time.Second,
	})
}

func TestAnthropicGateway_Complete_Success(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s, want /v1/messages", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("x-api-key = %q, want test-key", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "msg_1",
			"model": "claude-test",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}],
			"usage": {"input_tokens": 120, "output_tokens": 30}
		}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL, "test-key")
	completion, err := gw.Complete(context.Background(), CompletionRequest{
		SystemPrompt: "You are a coach.",
		PriorTurns: []Message{
			{Role: "user", Content: "Hi"},
			{Role: "assistant", Content: "Hello!"},
		},
		Message:     "How was my week?",
		Model:       "claude-test",
		MaxTokens:   256,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if completion.Text != "Hello there" {
		t.Errorf("Text = %q, want %q", completion.Text, "Hello there")
	}
	if completion.InputTokens != 120 || completion.OutputTokens != 30 {
		t.Errorf("tokens = %d/%d, want 120/30", completion.InputTokens, completion.OutputTokens)
	}
	if completion.TotalTokens() != 150 {
		t.Errorf("TotalTokens() = %d, want 150", completion.TotalTokens())
	}

	if captured.System != "You are a coach." {
		t.Errorf("system = %q", captured.System)
	}
	if len(captured.Messages) != 3 {
		t.Fatalf("messages = %d, want 3 (2 prior + new)", len(captured.Messages))
	}
	last := captured.Messages[2]
	if last.Role != "user" || last.Content[0].Text != "How was my week?" {
		t.Errorf("last message = %+v", last)
	}
	if captured.MaxTokens != 256 {
		t.Errorf("max_tokens = %d, want 256", captured.MaxTokens)
	}
}

func TestAnthropicGateway_Complete_WithImage(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"content": [{"type": "text", "text": "{}"}], "usage": {"input_tokens": 1, "output_tokens": 1}}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL, "k")
	_, err := gw.Complete(context.Background(), CompletionRequest{
		Message: "What is on this plate?",
		Images:  []Image{{MediaType: "image/jpeg", Data: "aGVsbG8="}},
		Model:   "m",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	content := captured.Messages[0].Content
	if len(content) != 2 {
		t.Fatalf("content blocks = %d, want 2", len(content))
	}
	if content[0].Type != "image" || content[0].Source == nil || content[0].Source.MediaType != "image/jpeg" {
		t.Errorf("image block = %+v", content[0])
	}
	if content[1].Type != "text" {
		t.Errorf("second block type = %s, want text", content[1].Type)
	}
}

func TestAnthropicGateway_Complete_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL, "k")
	_, err := gw.Complete(context.Background(), CompletionRequest{Message: "hi", Model: "m"})
	if err == nil {
		t.Fatal("Complete() error = nil, want error for 429")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestAnthropicGateway_Complete_NoAPIKey(t *testing.T) {
	gw := newTestGateway("http://unused", "")
	_, err := gw.Complete(context.Background(), CompletionRequest{Message: "hi"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Complete() error = %v, want ErrNotConfigured", err)
	}
}

func TestAnthropicGateway_Complete_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content": [], "usage": {"input_tokens": 5, "output_tokens": 0}}`))
	}))
	defer server.Close()

	gw := newTestGateway(server.URL, "k")
	if _, err := gw.Complete(context.Background(), CompletionRequest{Message: "hi", Model: "m"}); err == nil {
		t.Error("Complete() error = nil, want error for empty content")
	}
}

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		input   string
		want    ProviderType
		wantErr bool
	}{
		{input: "", want: ProviderAnthropic},
		{input: "anthropic", want: ProviderAnthropic},
		{input: "genkit", want: ProviderGenkit},
		{input: "openai", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProviderType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProviderType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseProviderType(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestOpenRouterModel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "claude-3-5-haiku-20241022", want: "openrouter/anthropic/claude-3-5-haiku-20241022"},
		{in: "meta-llama/llama-3.3-8b-instruct", want: "openrouter/meta-llama/llama-3.3-8b-instruct"},
		{in: "openrouter/openai/gpt-4o", want: "openrouter/openai/gpt-4o"},
	}
	for _, tt := range tests {
		if got := openRouterModel(tt.in); got != tt.want {
			t.Errorf("openRouterModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
