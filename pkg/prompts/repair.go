package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// RepairInput carries a query that failed static validation.
type RepairInput struct {
	Schema   *models.SchemaModel
	Question string
	SQL      string
	Errors   []string
}

// RepairSystemMessage is the system message for repair prompts.
func RepairSystemMessage() string {
	return `You are a SQL reviewer. You fix queries so they only use the tables and columns of the given schema while still answering the original question.`
}

// BuildRepairPrompt asks for a corrected query, listing each validation error.
func BuildRepairPrompt(in RepairInput) string {
	var prompt strings.Builder

	prompt.WriteString("# SQL Repair\n\n")
	prompt.WriteString("The query below was written to answer a question but failed validation against the schema.\n\n")

	prompt.WriteString("## Database Schema\n\n")
	prompt.WriteString(FormatSchema(in.Schema))
	prompt.WriteString("\n")

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(in.Question)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Invalid SQL\n\n```sql\n")
	prompt.WriteString(strings.TrimSpace(in.SQL))
	prompt.WriteString("\n```\n\n")

	prompt.WriteString("## Validation Errors\n\n")
	for _, e := range in.Errors {
		prompt.WriteString(fmt.Sprintf("- %s\n", e))
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond with a single JSON object containing the corrected read-only query:\n")
	prompt.WriteString("```json\n{\"sql\": \"SELECT ...\"}\n```\n\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}
