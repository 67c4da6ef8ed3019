package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
)

func TestParseGenerationResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     parsedTriple
	}{
		{
			name:     "plain object",
			response: `{"question": "How many orders?", "answer": "The order count.", "sql": "SELECT COUNT(*) FROM orders"}`,
			want:     parsedTriple{Question: "How many orders?", Answer: "The order count.", SQL: "SELECT COUNT(*) FROM orders"},
		},
		{
			name: "fenced with think block",
			response: "<think>schema has orders</think>\nHere you go:\n```json\n" +
				`{"question": "Q", "answer": "A", "sql": "SELECT id FROM orders"}` + "\n```",
			want: parsedTriple{Question: "Q", Answer: "A", SQL: "SELECT id FROM orders"},
		},
		{
			name:     "array uses first element",
			response: `[{"question": "First", "answer": "A1", "sql": "SELECT 1"}, {"question": "Second", "answer": "A2", "sql": "SELECT 2"}]`,
			want:     parsedTriple{Question: "First", Answer: "A1", SQL: "SELECT 1"},
		},
		{
			name:     "query alias",
			response: `{"question": "Q", "answer": "A", "query": "SELECT name FROM customers"}`,
			want:     parsedTriple{Question: "Q", Answer: "A", SQL: "SELECT name FROM customers"},
		},
		{
			name:     "numeric answer",
			response: `{"question": "How many customers?", "answer": 42, "sql": "SELECT COUNT(*) FROM customers"}`,
			want:     parsedTriple{Question: "How many customers?", Answer: "42", SQL: "SELECT COUNT(*) FROM customers"},
		},
		{
			name:     "row as answer",
			response: `{"question": "Top country?", "answer": {"country": "DE", "total": 10}, "sql": "SELECT country FROM customers"}`,
			want:     parsedTriple{Question: "Top country?", Answer: `{"country":"DE","total":10}`, SQL: "SELECT country FROM customers"},
		},
		{
			name:     "fence inside sql field",
			response: `{"question": "Q", "answer": "A", "sql": "` + "```sql\\nSELECT 1\\n```" + `"}`,
			want:     parsedTriple{Question: "Q", Answer: "A", SQL: "SELECT 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGenerationResponse(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGenerationResponse_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		response string
		contains string
	}{
		{"prose only", "Sorry, I can't do that.", "no valid JSON"},
		{"empty array", "[]", "empty array"},
		{"missing sql", `{"question": "Q", "answer": "A"}`, "missing sql"},
		{"missing everything", `{"note": "hi"}`, "missing question, answer, sql"},
		{"wrong type", `{"question": ["Q"], "answer": "A", "sql": "SELECT 1"}`, "unmarshal object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseGenerationResponse(tt.response)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidResponse))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestParseRepairResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"json", `{"sql": "SELECT id FROM orders"}`, "SELECT id FROM orders"},
		{"json query alias", `{"query": "SELECT id FROM orders"}`, "SELECT id FROM orders"},
		{"fenced sql", "```sql\nSELECT id FROM orders\n```", "SELECT id FROM orders"},
		{"bare sql", "SELECT id FROM orders", "SELECT id FROM orders"},
		{"think then json", "<think>fix the column</think>{\"sql\": \"SELECT name FROM customers\"}", "SELECT name FROM customers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRepairResponse(tt.response)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseRepairResponse(`{"explanation": "no sql here"}`)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidResponse))
}
