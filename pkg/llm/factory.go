package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Supported back-end providers.
const (
	ProviderOpenAI           = "openai"
	ProviderOllama           = "ollama"
	ProviderOpenAICompatible = "openai-compatible"
	ProviderAnthropic        = "anthropic"
)

const (
	defaultOpenAIEndpoint = "https://api.openai.com/v1"
	defaultOllamaEndpoint = "http://localhost:11434/v1"
)

// ProviderConfig selects and configures a back-end.
type ProviderConfig struct {
	Provider string
	Model    string
	Endpoint string
	APIKey   string

	// CircuitBreaker enables fail-fast behavior when set.
	CircuitBreaker *CircuitBreakerConfig
	// Recorder, when set, receives a transcript of every call.
	Recorder ConversationRecorder
}

// NewTextGenerator builds the configured back-end. Selection happens once,
// here; callers only ever see the TextGenerator interface.
func NewTextGenerator(cfg ProviderConfig, logger *zap.Logger) (TextGenerator, error) {
	var (
		gen TextGenerator
		err error
	)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		gen, err = NewOpenAIClient(&Config{
			Endpoint: firstNonEmpty(cfg.Endpoint, defaultOpenAIEndpoint),
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
	case ProviderOllama:
		// Ollama serves an OpenAI-compatible API under /v1 and ignores the key.
		gen, err = NewOpenAIClient(&Config{
			Endpoint: firstNonEmpty(cfg.Endpoint, defaultOllamaEndpoint),
			Model:    cfg.Model,
			APIKey:   firstNonEmpty(cfg.APIKey, "ollama"),
		}, logger)
	case ProviderOpenAICompatible:
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("endpoint is required for provider %q", cfg.Provider)
		}
		gen, err = NewOpenAIClient(&Config{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
	case ProviderAnthropic:
		gen, err = NewAnthropicClient(&Config{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	if cfg.Recorder != nil {
		gen = NewRecordingGenerator(gen, cfg.Recorder)
	}
	if cfg.CircuitBreaker != nil {
		gen = NewBreakerGenerator(gen, NewCircuitBreaker(*cfg.CircuitBreaker))
	}

	return gen, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
