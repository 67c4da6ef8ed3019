package llm

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithRunID_AddsIDToContext(t *testing.T) {
	ctx := context.Background()
	runID := uuid.New()

	newCtx := WithRunID(ctx, runID)

	// Verify original context is not modified
	if RunIDFromContext(ctx) != nil {
		t.Error("original context should not have run ID")
	}

	gotID := RunIDFromContext(newCtx)
	if gotID == nil {
		t.Fatal("expected run ID in context")
	}
	if *gotID != runID {
		t.Errorf("expected run ID %s, got %s", runID, *gotID)
	}
}

func TestWithContext_MergesValues(t *testing.T) {
	ctx := WithContext(context.Background(), map[string]any{"a": 1})
	ctx = WithContext(ctx, map[string]any{"b": 2})

	got := GetContext(ctx)
	if got["a"] != 1 || got["b"] != 2 {
		t.Errorf("expected merged labels, got %v", got)
	}
}

func TestWithSlotContext_AddsAllFields(t *testing.T) {
	ctx := WithSlotContext(context.Background(), "easy", 4, 1, "generate")

	got := GetContext(ctx)
	if got["difficulty"] != "easy" {
		t.Errorf("expected difficulty easy, got %v", got["difficulty"])
	}
	if got["slot"] != 4 {
		t.Errorf("expected slot 4, got %v", got["slot"])
	}
	if got["attempt"] != 1 {
		t.Errorf("expected attempt 1, got %v", got["attempt"])
	}
	if got["prompt_kind"] != "generate" {
		t.Errorf("expected prompt_kind generate, got %v", got["prompt_kind"])
	}
}

func TestGetContext_ReturnsNilForEmptyContext(t *testing.T) {
	if got := GetContext(context.Background()); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestGetContext_ReturnsCopy(t *testing.T) {
	ctx := WithContext(context.Background(), map[string]any{"key": "value"})

	got := GetContext(ctx)
	got["key"] = "modified"

	if GetContext(ctx)["key"] != "value" {
		t.Error("modifying the returned map should not affect the context")
	}
}
