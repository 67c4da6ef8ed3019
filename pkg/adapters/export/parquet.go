package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

type parquetItem struct {
	Question         string   `parquet:"question"`
	SQL              string   `parquet:"sql"`
	Answer           string   `parquet:"answer"`
	Difficulty       string   `parquet:"difficulty"`
	Slot             int64    `parquet:"slot"`
	SQLValid         bool     `parquet:"sql_valid"`
	ValidationErrors []string `parquet:"validation_errors,list"`
}

// WriteParquet writes one row per item.
func WriteParquet(w io.Writer, items []models.GeneratedItem) error {
	rows := make([]parquetItem, 0, len(items))
	for _, item := range items {
		rows = append(rows, parquetItem{
			Question:         item.Question,
			SQL:              item.SQL,
			Answer:           item.Answer,
			Difficulty:       string(item.Difficulty),
			Slot:             int64(item.Slot),
			SQLValid:         item.SQLValid,
			ValidationErrors: item.ValidationErrors,
		})
	}

	writer := parquet.NewGenericWriter[parquetItem](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet reads rows written by WriteParquet.
func ReadParquet(r io.Reader) ([]models.GeneratedItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read parquet dataset: %w", err)
	}

	reader := parquet.NewGenericReader[parquetItem](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	rows := make([]parquetItem, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	items := make([]models.GeneratedItem, 0, n)
	for _, row := range rows[:n] {
		difficulty, err := models.ParseDifficulty(row.Difficulty)
		if err != nil {
			return nil, err
		}
		items = append(items, models.GeneratedItem{
			Question:         row.Question,
			SQL:              row.SQL,
			Answer:           row.Answer,
			Difficulty:       difficulty,
			Slot:             int(row.Slot),
			SQLValid:         row.SQLValid,
			ValidationErrors: row.ValidationErrors,
		})
	}
	return items, nil
}
