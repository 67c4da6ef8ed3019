package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// FormatSchema renders the schema as the plain-text summary embedded in
// every prompt. Tables are sorted by name; columns keep their declared order.
func FormatSchema(schema *models.SchemaModel) string {
	var b strings.Builder

	if schema.DatabaseName != "" {
		b.WriteString(fmt.Sprintf("Database: %s\n\n", schema.DatabaseName))
	}

	for _, table := range schema.SortedTables() {
		b.WriteString(fmt.Sprintf("Table: %s\n", table.Name))
		if table.Description != "" {
			b.WriteString(fmt.Sprintf("Description: %s\n", table.Description))
		}
		b.WriteString("Columns:\n")
		for _, col := range table.Columns {
			flags := ""
			if col.IsPrimaryKey {
				flags = " [PK]"
			}
			desc := ""
			if col.Description != "" {
				desc = " - " + col.Description
			}
			b.WriteString(fmt.Sprintf("- %s (%s)%s%s\n", col.Name, col.DataType, flags, desc))
		}

		if rels := schema.RelationshipsFrom(table.Name); len(rels) > 0 {
			b.WriteString("Foreign keys:\n")
			for _, r := range rels {
				b.WriteString(fmt.Sprintf("- %s -> %s.%s\n", r.FromColumn, r.ToTable, r.ToColumn))
			}
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// DifficultyDescription is the guidance given to the model for a difficulty.
func DifficultyDescription(d models.Difficulty) string {
	switch d {
	case models.DifficultyEasy:
		return "a single table with basic filter conditions"
	case models.DifficultyMedium:
		return "a JOIN of two tables with GROUP BY aggregation"
	case models.DifficultyHard:
		return "multi-table JOINs, subqueries or window functions"
	default:
		return "a query of moderate complexity"
	}
}

// SelectSeeds returns at most n seeds of the given difficulty in input order.
func SelectSeeds(seeds []models.SeedExample, d models.Difficulty, n int) []models.SeedExample {
	if n <= 0 {
		return nil
	}
	var out []models.SeedExample
	for _, s := range seeds {
		if s.Difficulty != d {
			continue
		}
		out = append(out, s)
		if len(out) == n {
			break
		}
	}
	return out
}
