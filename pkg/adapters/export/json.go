package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

type jsonDocument struct {
	Items   []models.GeneratedItem `json:"items"`
	Summary *models.RunSummary     `json:"summary,omitempty"`
}

// WriteJSON writes {"items": [...], "summary": {...}}. The summary is left
// out when withSummary is false.
func WriteJSON(w io.Writer, result *models.RunResult, withSummary bool) error {
	doc := jsonDocument{Items: result.Dataset.Items}
	if withSummary {
		doc.Summary = &result.Summary
	}
	if doc.Items == nil {
		doc.Items = []models.GeneratedItem{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json dataset: %w", err)
	}
	return nil
}

// ReadJSON reads an items document or a bare item list.
func ReadJSON(r io.Reader) ([]models.GeneratedItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json dataset: %w", err)
	}

	var items []models.GeneratedItem
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode json dataset: %w", err)
	}
	return doc.Items, nil
}
