package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggest(t *testing.T) {
	tables := []string{"customers", "order_items", "orders"}

	tests := []struct {
		name       string
		input      string
		candidates []string
		want       string
	}{
		{name: "singular to plural", input: "customer", candidates: tables, want: "customers"},
		{name: "plural to singular", input: "orders", candidates: []string{"order", "invoice"}, want: "order"},
		{name: "typo", input: "ordrs", candidates: tables, want: "orders"},
		{name: "prefix", input: "order_items_archive", candidates: tables, want: "order_items"},
		{name: "nothing close", input: "payments", candidates: tables, want: ""},
		{name: "exact match is not a suggestion", input: "orders", candidates: []string{"orders"}, want: ""},
		{name: "no candidates", input: "orders", candidates: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suggest(tt.input, tt.candidates))
		})
	}
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("ordrs", "orders"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 4, levenshtein("", "name"))
}
