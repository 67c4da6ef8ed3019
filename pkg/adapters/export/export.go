// Package export writes generated datasets to JSON, CSV or Parquet and reads
// them back for answer backfill.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// Supported formats.
const (
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Write encodes result in the given format. CSV and Parquet carry the items only.
func Write(w io.Writer, format string, result *models.RunResult) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, result, true)
	case FormatCSV:
		return WriteCSV(w, result.Dataset.Items)
	case FormatParquet:
		return WriteParquet(w, result.Dataset.Items)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteFile writes result to path, replacing any existing file.
func WriteFile(path, format string, result *models.RunResult) error {
	return writeFile(path, func(w io.Writer) error { return Write(w, format, result) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

// WriteItems encodes a bare item list. JSON output carries no summary.
func WriteItems(w io.Writer, format string, items []models.GeneratedItem) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, &models.RunResult{Dataset: models.Dataset{Items: items}}, false)
	case FormatCSV:
		return WriteCSV(w, items)
	case FormatParquet:
		return WriteParquet(w, items)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteItemsFile is WriteItems to a file.
func WriteItemsFile(path, format string, items []models.GeneratedItem) error {
	return writeFile(path, func(w io.Writer) error { return WriteItems(w, format, items) })
}

// FormatFromPath infers the format from a file extension, falling back to def.
func FormatFromPath(path, def string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	case ".parquet":
		return FormatParquet
	default:
		return def
	}
}

// ReadItemsFile reads items previously written by WriteFile. The format
// follows the file extension; JSON is assumed otherwise.
func ReadItemsFile(path string) ([]models.GeneratedItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	switch FormatFromPath(path, FormatJSON) {
	case FormatCSV:
		return ReadCSV(f)
	case FormatParquet:
		return ReadParquet(f)
	default:
		return ReadJSON(f)
	}
}
