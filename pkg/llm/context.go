package llm

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	llmContextKey contextKey = "llm_context"
	runIDKey      contextKey = "llm_run_id"
)

// WithContext returns a context carrying recording labels.
// The values are merged with any labels already present.
func WithContext(ctx context.Context, values map[string]any) context.Context {
	existing := GetContext(ctx)
	if existing == nil {
		existing = make(map[string]any)
	}
	for k, v := range values {
		existing[k] = v
	}
	return context.WithValue(ctx, llmContextKey, existing)
}

// GetContext returns a copy of the recording labels, or nil.
func GetContext(ctx context.Context) map[string]any {
	if c, ok := ctx.Value(llmContextKey).(map[string]any); ok {
		copy := make(map[string]any, len(c))
		for k, v := range c {
			copy[k] = v
		}
		return copy
	}
	return nil
}

// WithRunID tags calls made under ctx with a generation run ID.
func WithRunID(ctx context.Context, runID uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext returns the run ID set by WithRunID, or nil.
func RunIDFromContext(ctx context.Context) *uuid.UUID {
	if id, ok := ctx.Value(runIDKey).(uuid.UUID); ok {
		return &id
	}
	return nil
}

// WithSlotContext labels calls with the slot they serve.
func WithSlotContext(ctx context.Context, difficulty string, slot, attempt int, kind string) context.Context {
	return WithContext(ctx, map[string]any{
		"difficulty":  difficulty,
		"slot":        slot,
		"attempt":     attempt,
		"prompt_kind": kind,
	})
}
