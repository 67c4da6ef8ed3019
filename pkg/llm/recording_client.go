package llm

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// RecordingGenerator wraps a TextGenerator and records every call verbatim.
type RecordingGenerator struct {
	inner    TextGenerator
	recorder ConversationRecorder
}

// NewRecordingGenerator creates a recording wrapper around inner.
func NewRecordingGenerator(inner TextGenerator, recorder ConversationRecorder) *RecordingGenerator {
	return &RecordingGenerator{inner: inner, recorder: recorder}
}

// Generate calls the inner generator and records the exchange.
func (g *RecordingGenerator) Generate(ctx context.Context, prompt string, systemMessage string, params GenerationParams) (string, error) {
	conv := &models.LLMConversation{
		ID:            uuid.New(),
		RunID:         RunIDFromContext(ctx),
		Context:       GetContext(ctx),
		Model:         g.inner.ModelID(),
		SystemMessage: systemMessage,
		Prompt:        prompt,
		Temperature:   params.Temperature,
		MaxTokens:     params.MaxTokens,
		StopSequences: params.StopSequences,
		CreatedAt:     time.Now().UTC(),
	}

	start := time.Now()
	text, err := g.inner.Generate(ctx, prompt, systemMessage, params)
	conv.DurationMs = time.Since(start).Milliseconds()

	switch {
	case err == nil:
		conv.Status = models.LLMConversationStatusSuccess
		conv.ResponseContent = text
	case GetErrorType(err) == ErrorTypeTimeout:
		conv.Status = models.LLMConversationStatusTimeout
		conv.ErrorMessage = err.Error()
	default:
		conv.Status = models.LLMConversationStatusError
		conv.ErrorMessage = err.Error()
	}

	g.recorder.Record(conv)
	return text, err
}

// ModelID returns the inner generator's model.
func (g *RecordingGenerator) ModelID() string {
	return g.inner.ModelID()
}

var _ TextGenerator = (*RecordingGenerator)(nil)
