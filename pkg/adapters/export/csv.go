package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// csvHeader starts with the seed columns so an export can be fed back as seeds.
var csvHeader = []string{"question", "sql", "answer", "difficulty", "slot", "sql_valid", "validation_errors"}

// validationErrorSeparator joins validation errors into one CSV cell.
const validationErrorSeparator = " | "

// WriteCSV writes one row per item.
func WriteCSV(w io.Writer, items []models.GeneratedItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range items {
		row := []string{
			item.Question,
			item.SQL,
			item.Answer,
			string(item.Difficulty),
			strconv.Itoa(item.Slot),
			strconv.FormatBool(item.SQLValid),
			strings.Join(item.ValidationErrors, validationErrorSeparator),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadCSV reads rows written by WriteCSV. Only question and sql are required.
func ReadCSV(r io.Reader) ([]models.GeneratedItem, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"question", "sql"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("csv header is missing the %q column", required)
		}
	}
	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var items []models.GeneratedItem
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		difficulty, err := models.ParseDifficulty(field(row, "difficulty"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		item := models.GeneratedItem{
			Question:   field(row, "question"),
			SQL:        field(row, "sql"),
			Answer:     field(row, "answer"),
			Difficulty: difficulty,
			SQLValid:   true,
		}
		if s := field(row, "slot"); s != "" {
			if item.Slot, err = strconv.Atoi(s); err != nil {
				return nil, fmt.Errorf("line %d: invalid slot %q", line, s)
			}
		}
		if s := field(row, "sql_valid"); s != "" {
			if item.SQLValid, err = strconv.ParseBool(s); err != nil {
				return nil, fmt.Errorf("line %d: invalid sql_valid %q", line, s)
			}
		}
		if s := field(row, "validation_errors"); s != "" {
			item.ValidationErrors = strings.Split(s, validationErrorSeparator)
		}
		items = append(items, item)
	}
	return items, nil
}
