// Package prompts builds the text sent to the generation back-end. Every
// builder is a pure function of its input, so equal inputs give byte-identical
// prompts and therefore equal cache fingerprints.
package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// GenerationInput is everything that shapes a question+SQL generation prompt.
type GenerationInput struct {
	Schema     *models.SchemaModel
	Seeds      []models.SeedExample // already filtered to Difficulty
	Difficulty models.Difficulty
	Slot       int

	// Variant is bumped when a slot retries after unusable output, so the
	// retry gets a fresh prompt instead of the cached failure.
	Variant int

	// Avoid lists questions already accepted; set only on uniqueness rounds.
	Avoid []string
	Round int
}

// GenerationSystemMessage is the system message for generation prompts.
func GenerationSystemMessage() string {
	return `You are a database expert and SQL tutor. You write realistic natural-language questions about a database together with a correct, read-only SQL query that answers each question. Always write valid SQL that uses only the tables and columns in the schema you are given.`
}

// BuildGenerationPrompt creates the prompt for one question/answer/SQL triple.
func BuildGenerationPrompt(in GenerationInput) string {
	var prompt strings.Builder

	prompt.WriteString("# Question and SQL Generation\n\n")

	prompt.WriteString("## Database Schema\n\n")
	prompt.WriteString(FormatSchema(in.Schema))
	prompt.WriteString("\n")

	prompt.WriteString("## Difficulty\n\n")
	prompt.WriteString(fmt.Sprintf("Difficulty: %s\n", in.Difficulty))
	prompt.WriteString(fmt.Sprintf("The SQL should use %s.\n\n", DifficultyDescription(in.Difficulty)))

	if len(in.Seeds) > 0 {
		prompt.WriteString("## Examples\n\n")
		for i, seed := range in.Seeds {
			prompt.WriteString(fmt.Sprintf("### Example %d\n", i+1))
			prompt.WriteString(fmt.Sprintf("Question: %s\n", seed.Question))
			prompt.WriteString("SQL:\n```sql\n")
			prompt.WriteString(strings.TrimSpace(seed.SQL))
			prompt.WriteString("\n```\n")
			if seed.Answer != "" {
				prompt.WriteString(fmt.Sprintf("Answer: %s\n", seed.Answer))
			}
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("- Reference only tables and columns listed in the schema above.\n")
	prompt.WriteString("- Write a single SELECT statement. CTEs (WITH) are allowed; INSERT, UPDATE, DELETE and DDL are not.\n")
	prompt.WriteString("- Qualify columns with a table alias whenever more than one table is involved.\n")
	prompt.WriteString("- The answer describes in plain language what the query returns.\n")
	prompt.WriteString("- Do not copy the examples; ask something new.\n\n")

	// Novelty hint: the slot ordinal keeps prompts for different slots apart.
	prompt.WriteString("## Variation\n\n")
	prompt.WriteString(fmt.Sprintf("This is question number %d for this difficulty", in.Slot+1))
	if in.Variant > 0 {
		prompt.WriteString(fmt.Sprintf(" (alternative %d; choose a different angle than before)", in.Variant))
	}
	prompt.WriteString(". Cover a different part of the schema than earlier questions would.\n\n")

	if len(in.Avoid) > 0 {
		prompt.WriteString(fmt.Sprintf("## Already Asked (round %d)\n\n", in.Round))
		prompt.WriteString("These questions already exist. Ask something clearly different:\n")
		for _, q := range in.Avoid {
			prompt.WriteString(fmt.Sprintf("- %s\n", q))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond with a single JSON object:\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "question": "How many orders did each customer place in 2023?",
  "answer": "One row per customer with the number of orders they placed during 2023.",
  "sql": "SELECT c.name, COUNT(o.id) AS order_count FROM customers c JOIN orders o ON o.customer_id = c.id WHERE o.created_at >= '2023-01-01' AND o.created_at < '2024-01-01' GROUP BY c.name"
}
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}
