package datasource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

func TestParseSchema(t *testing.T) {
	yamlSchema := `
database_name: shop
tables:
  - name: customers
    description: People who place orders
    columns:
      - {name: id, type: integer, primary_key: true}
      - {name: name, type: text}
  - name: orders
    columns:
      - {name: id, type: integer, primary_key: true}
      - {name: customer_id, type: integer}
relationships:
  - {from_table: orders, from_column: customer_id, to_table: customers, to_column: id}
`
	jsonSchema := `{"database_name":"shop","tables":[
		{"name":"customers","description":"People who place orders","columns":[{"name":"id","type":"integer","primary_key":true},{"name":"name","type":"text"}]},
		{"name":"orders","columns":[{"name":"id","type":"integer","primary_key":true},{"name":"customer_id","type":"integer"}]}],
		"relationships":[{"from_table":"orders","from_column":"customer_id","to_table":"customers","to_column":"id"}]}`

	fromYAML, err := ParseSchema([]byte(yamlSchema))
	require.NoError(t, err)
	fromJSON, err := ParseSchema([]byte(jsonSchema))
	require.NoError(t, err)

	assert.Equal(t, fromYAML.Digest(), fromJSON.Digest())
	assert.Equal(t, "People who place orders", fromYAML.Tables[0].Description)
	assert.True(t, fromYAML.Tables[0].Columns[0].IsPrimaryKey)
	assert.Len(t, fromYAML.Relationships, 1)
}

func TestParseSchema_Invalid(t *testing.T) {
	_, err := ParseSchema([]byte("tables: []"))
	assert.ErrorContains(t, err, "no tables")

	_, err = ParseSchema([]byte("tables: [{name: a, columns: [{name: id}]}]\nrelationships: [{from_table: a, from_column: id, to_table: b, to_column: id}]"))
	assert.ErrorContains(t, err, `unknown table "b"`)

	_, err = ParseSchema([]byte("tables: {"))
	assert.ErrorContains(t, err, "decode schema")
}

func TestParseSeeds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []models.SeedExample
	}{
		{
			name: "yaml list",
			input: `
- question: How many customers are there?
  sql: SELECT COUNT(*) FROM customers
  difficulty: easy
- question: Revenue by country?
  query: SELECT country, SUM(total) FROM orders GROUP BY country
`,
			want: []models.SeedExample{
				{Question: "How many customers are there?", SQL: "SELECT COUNT(*) FROM customers", Difficulty: models.DifficultyEasy},
				{Question: "Revenue by country?", SQL: "SELECT country, SUM(total) FROM orders GROUP BY country", Difficulty: models.DifficultyMedium},
			},
		},
		{
			name:  "json qa_data document",
			input: `{"qa_data":[{"question":"Top customer?","sql":"SELECT name FROM customers LIMIT 1","answer":"The best one.","difficulty":"HARD"}]}`,
			want: []models.SeedExample{
				{Question: "Top customer?", SQL: "SELECT name FROM customers LIMIT 1", Answer: "The best one.", Difficulty: models.DifficultyHard},
			},
		},
		{
			name:  "empty input",
			input: "  \n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeeds([]byte(tt.input))
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSeeds_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"unknown difficulty", "- {question: q, sql: SELECT 1, difficulty: extreme}", `unknown difficulty "extreme"`},
		{"missing sql", "- {question: q}", "seed 1: question and sql are required"},
		{"mapping without qa_data", "seeds: []", "expected a list or a qa_data key"},
		{"scalar", "just text", "expected a list or a qa_data key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeeds([]byte(tt.input))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseSeedsCSV(t *testing.T) {
	input := "question,sql,answer,difficulty\n" +
		"How many orders?,SELECT COUNT(*) FROM orders,The order count.,easy\n" +
		"\"Orders per customer, with names?\",\"SELECT c.name, COUNT(*) FROM customers c JOIN orders o ON o.customer_id = c.id GROUP BY c.name\",,\n"

	seeds, err := ParseSeedsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "The order count.", seeds[0].Answer)
	assert.Equal(t, models.DifficultyEasy, seeds[0].Difficulty)
	assert.Equal(t, "Orders per customer, with names?", seeds[1].Question)
	assert.Equal(t, models.DifficultyMedium, seeds[1].Difficulty, "missing difficulty defaults to medium")
}

func TestParseSeedsCSV_Header(t *testing.T) {
	seeds, err := ParseSeedsCSV(strings.NewReader("difficulty,query,question\nhard,SELECT 1,One?\n"))
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, "SELECT 1", seeds[0].SQL)

	_, err = ParseSeedsCSV(strings.NewReader("question,answer\nq,a\n"))
	assert.ErrorContains(t, err, `missing the "sql" column`)

	seeds, err = ParseSeedsCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, seeds)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "seeds.CSV")
	require.NoError(t, os.WriteFile(csvPath, []byte("question,sql\nq?,SELECT 1\n"), 0644))
	seeds, err := LoadSeedsFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, seeds, 1)

	yamlPath := filepath.Join(dir, "seeds.yaml")
	qaData := "qa_data:\n  - question: How many orders?\n    sql: SELECT COUNT(*) FROM orders\n    difficulty: easy\n"
	require.NoError(t, os.WriteFile(yamlPath, []byte(qaData), 0644))
	seeds, err = LoadSeedsFile(yamlPath)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, "How many orders?", seeds[0].Question)
	assert.Equal(t, "SELECT COUNT(*) FROM orders", seeds[0].SQL)
	assert.Equal(t, models.DifficultyEasy, seeds[0].Difficulty)

	_, err = LoadSeedsFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read seeds file")

	_, err = LoadSchemaFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read schema file")
}
