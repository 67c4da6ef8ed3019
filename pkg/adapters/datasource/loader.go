package datasource

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// LoadSchemaFile reads a SchemaModel from a YAML or JSON file and validates it.
func LoadSchemaFile(path string) (*models.SchemaModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema decodes a SchemaModel. JSON input is accepted since it is valid YAML.
func ParseSchema(data []byte) (*models.SchemaModel, error) {
	var schema models.SchemaModel
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &schema, nil
}

// seedRecord is the on-disk shape of a seed. "query" is accepted for "sql".
type seedRecord struct {
	Question   string `yaml:"question"`
	SQL        string `yaml:"sql"`
	Query      string `yaml:"query"`
	Answer     string `yaml:"answer"`
	Difficulty string `yaml:"difficulty"`
}

// LoadSeedsFile reads seed examples. Files ending in .csv are read as CSV,
// everything else as a YAML/JSON list or a {qa_data: [...]} document.
func LoadSeedsFile(path string) ([]models.SeedExample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read seeds file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ParseSeedsCSV(f)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read seeds file: %w", err)
	}
	return ParseSeeds(data)
}

// ParseSeeds decodes a seed list or a {qa_data: [...]} document.
func ParseSeeds(data []byte) ([]models.SeedExample, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode seeds: %w", err)
	}

	var records []seedRecord
	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&records); err != nil {
			return nil, fmt.Errorf("decode seeds: %w", err)
		}
	case yaml.MappingNode:
		var doc struct {
			QAData []seedRecord `yaml:"qa_data"`
		}
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode seeds: %w", err)
		}
		if doc.QAData == nil {
			return nil, errors.New("decode seeds: expected a list or a qa_data key")
		}
		records = doc.QAData
	default:
		return nil, errors.New("decode seeds: expected a list or a qa_data key")
	}

	return toSeeds(records)
}

// ParseSeedsCSV reads seeds from CSV with a header row naming at least the
// question and sql columns. answer and difficulty are optional.
func ParseSeedsCSV(r io.Reader) ([]models.SeedExample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

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
	if _, ok := index["sql"]; !ok {
		if i, ok := index["query"]; ok {
			index["sql"] = i
		}
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

	var records []seedRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		records = append(records, seedRecord{
			Question:   field(row, "question"),
			SQL:        field(row, "sql"),
			Answer:     field(row, "answer"),
			Difficulty: field(row, "difficulty"),
		})
	}
	return toSeeds(records)
}

func toSeeds(records []seedRecord) ([]models.SeedExample, error) {
	seeds := make([]models.SeedExample, 0, len(records))
	for i, r := range records {
		sqlText := r.SQL
		if sqlText == "" {
			sqlText = r.Query
		}
		question := strings.TrimSpace(r.Question)
		sqlText = strings.TrimSpace(sqlText)
		if question == "" || sqlText == "" {
			return nil, fmt.Errorf("seed %d: question and sql are required", i+1)
		}
		difficulty, err := models.ParseDifficulty(r.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", i+1, err)
		}
		seeds = append(seeds, models.SeedExample{
			Question:   question,
			SQL:        sqlText,
			Answer:     strings.TrimSpace(r.Answer),
			Difficulty: difficulty,
		})
	}
	return seeds, nil
}
