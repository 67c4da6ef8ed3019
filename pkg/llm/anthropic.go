package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClient reaches the Anthropic Messages API.
type AnthropicClient struct {
	client   *anthropic.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
// An empty Endpoint uses the library default.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for anthropic")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.Endpoint))
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey, opts...),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm"),
	}, nil
}

// Generate sends a single user message and returns the first text block.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, systemMessage string, params GenerationParams) (string, error) {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	temperature := float32(params.Temperature)

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", params.Temperature))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:         anthropic.Model(c.model),
		System:        systemMessage,
		MaxTokens:     maxTokens,
		Temperature:   &temperature,
		StopSequences: params.StopSequences,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Warn("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", c.classify(err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			c.logger.Debug("LLM request completed", zap.Duration("elapsed", time.Since(start)))
			return *block.Text, nil
		}
	}
	return "", c.annotate(NewInvalidResponseError("no text content in response", nil))
}

// ModelID returns the configured model name.
func (c *AnthropicClient) ModelID() string {
	return c.model
}

func (c *AnthropicClient) classify(err error) error {
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode > 0 {
		if classified := classifyStatus(reqErr.StatusCode, err); classified != nil {
			return c.annotate(classified)
		}
	}
	return c.annotate(ClassifyError(err))
}

func (c *AnthropicClient) annotate(e *Error) *Error {
	return e.annotated(c.model, c.endpoint)
}

var _ TextGenerator = (*AnthropicClient)(nil)
