package prompts

import (
	"strings"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// AnswerSystemMessage is the system message for answer backfill.
func AnswerSystemMessage() string {
	return `You are a SQL expert and data analyst. You explain in clear natural language what a query returns.`
}

// BuildAnswerPrompt asks for a plain-language answer to a question given its SQL.
func BuildAnswerPrompt(schema *models.SchemaModel, question, sql string) string {
	var prompt strings.Builder

	prompt.WriteString("# Answer Writing\n\n")

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(question)
	prompt.WriteString("\n\n")

	prompt.WriteString("## SQL\n\n```sql\n")
	prompt.WriteString(strings.TrimSpace(sql))
	prompt.WriteString("\n```\n\n")

	prompt.WriteString("## Database Schema\n\n")
	prompt.WriteString(FormatSchema(schema))
	prompt.WriteString("\n")

	prompt.WriteString("Describe what the query returns as the answer to the question, in one or two sentences. ")
	prompt.WriteString("Return only the answer text.\n")

	return prompt.String()
}
