package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestOpenAIClient_Generate_SendsParams(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(&Config{Endpoint: server.URL, Model: "test-model", APIKey: "k"}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := client.Generate(context.Background(), "hello", "be brief", GenerationParams{
		Temperature:   0.5,
		MaxTokens:     64,
		StopSequences: []string{"###"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hi" {
		t.Errorf("expected 'hi', got %q", text)
	}

	if captured["model"] != "test-model" {
		t.Errorf("expected model test-model, got %v", captured["model"])
	}
	if captured["max_tokens"] != float64(64) {
		t.Errorf("expected max_tokens 64, got %v", captured["max_tokens"])
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(messages))
	}
	if first, _ := messages[0].(map[string]any); first["role"] != "system" {
		t.Errorf("expected system message first, got %v", first["role"])
	}
}

func TestOpenAIClient_Generate_NoChoicesIsInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	client, _ := NewOpenAIClient(&Config{Endpoint: server.URL, Model: "m"}, zap.NewNop())
	_, err := client.Generate(context.Background(), "hello", "", GenerationParams{})

	if GetErrorType(err) != ErrorTypeInvalidResponse {
		t.Errorf("expected invalid_response, got %v", err)
	}
}

func TestOpenAIClient_Generate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	client, _ := NewOpenAIClient(&Config{Endpoint: server.URL, Model: "m"}, zap.NewNop())
	_, err := client.Generate(context.Background(), "hello", "", GenerationParams{})

	if GetErrorType(err) != ErrorTypeRateLimited {
		t.Errorf("expected rate_limited, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("rate limits should be retryable")
	}
}

func TestNewOpenAIClient_RequiresEndpointAndModel(t *testing.T) {
	if _, err := NewOpenAIClient(&Config{Model: "m"}, zap.NewNop()); err == nil {
		t.Error("expected error without endpoint")
	}
	if _, err := NewOpenAIClient(&Config{Endpoint: "http://localhost"}, zap.NewNop()); err == nil {
		t.Error("expected error without model")
	}
}
