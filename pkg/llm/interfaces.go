// Package llm provides the text-generation port and its back-ends.
package llm

import "context"

// TextGenerator produces text for a prompt. Implementations must respect ctx
// deadlines and return an *Error classified by ClassifyError on failure.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, systemMessage string, params GenerationParams) (string, error)

	// ModelID identifies the model for cache fingerprints and logs.
	ModelID() string
}

// GenerationParams are the sampling parameters of a single call.
type GenerationParams struct {
	Temperature   float64
	MaxTokens     int
	StopSequences []string
}
