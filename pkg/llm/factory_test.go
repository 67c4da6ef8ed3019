package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTextGenerator_OpenAIDefaultsEndpoint(t *testing.T) {
	gen, err := NewTextGenerator(ProviderConfig{Provider: ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-test"}, zap.NewNop())
	require.NoError(t, err)

	client, ok := gen.(*OpenAIClient)
	require.True(t, ok, "expected *OpenAIClient, got %T", gen)
	assert.Equal(t, "https://api.openai.com/v1", client.Endpoint())
	assert.Equal(t, "gpt-4o", gen.ModelID())
}

func TestNewTextGenerator_OllamaDefaultsEndpoint(t *testing.T) {
	gen, err := NewTextGenerator(ProviderConfig{Provider: "Ollama", Model: "llama3"}, zap.NewNop())
	require.NoError(t, err)

	client, ok := gen.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434/v1", client.Endpoint())
}

func TestNewTextGenerator_CompatibleRequiresEndpoint(t *testing.T) {
	_, err := NewTextGenerator(ProviderConfig{Provider: ProviderOpenAICompatible, Model: "m"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewTextGenerator_AnthropicRequiresKey(t *testing.T) {
	_, err := NewTextGenerator(ProviderConfig{Provider: ProviderAnthropic, Model: "claude-x"}, zap.NewNop())
	assert.Error(t, err)

	gen, err := NewTextGenerator(ProviderConfig{Provider: ProviderAnthropic, Model: "claude-x", APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, gen)
}

func TestNewTextGenerator_MissingModel(t *testing.T) {
	_, err := NewTextGenerator(ProviderConfig{Provider: ProviderOpenAI}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewTextGenerator_UnknownProvider(t *testing.T) {
	_, err := NewTextGenerator(ProviderConfig{Provider: "carrier-pigeon", Model: "m"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported provider")
}

func TestNewTextGenerator_WrapsWithRecorderAndBreaker(t *testing.T) {
	breaker := CircuitBreakerConfig{Threshold: 3, ResetAfter: time.Second}
	gen, err := NewTextGenerator(ProviderConfig{
		Provider:       ProviderOllama,
		Model:          "llama3",
		CircuitBreaker: &breaker,
		Recorder:       &mockRecorder{},
	}, zap.NewNop())
	require.NoError(t, err)

	outer, ok := gen.(*BreakerGenerator)
	require.True(t, ok, "expected breaker outermost, got %T", gen)
	assert.IsType(t, &RecordingGenerator{}, outer.inner)
	assert.Equal(t, "llama3", gen.ModelID())
}
