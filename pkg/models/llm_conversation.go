package models

import (
	"time"

	"github.com/google/uuid"
)

// LLMConversation is one back-end call with its verbatim input and output.
type LLMConversation struct {
	ID      uuid.UUID      `json:"id"`
	RunID   *uuid.UUID     `json:"run_id,omitempty"`
	Context map[string]any `json:"context,omitempty"` // difficulty, slot, attempt, prompt kind

	Model string `json:"model"`

	SystemMessage string   `json:"system_message,omitempty"`
	Prompt        string   `json:"prompt"`
	Temperature   float64  `json:"temperature"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`

	ResponseContent string `json:"response_content,omitempty"`
	DurationMs      int64  `json:"duration_ms"`

	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Status values for LLM conversations.
const (
	LLMConversationStatusSuccess = "success"
	LLMConversationStatusError   = "error"
	LLMConversationStatusTimeout = "timeout"
)
