package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/testhelpers"
)

func TestBuildGenerationPrompt(t *testing.T) {
	schema := testhelpers.ShopSchema()
	seeds := SelectSeeds(testhelpers.ShopSeeds(), models.DifficultyMedium, 3)

	prompt := BuildGenerationPrompt(GenerationInput{
		Schema:     schema,
		Seeds:      seeds,
		Difficulty: models.DifficultyMedium,
		Slot:       2,
	})

	// Schema context
	assert.Contains(t, prompt, "Table: customers")
	assert.Contains(t, prompt, "- id (integer) [PK]")
	assert.Contains(t, prompt, "- status (text) - pending, shipped or cancelled")
	assert.Contains(t, prompt, "- customer_id -> customers.id")

	// Difficulty guidance
	assert.Contains(t, prompt, "Difficulty: medium")
	assert.Contains(t, prompt, "JOIN of two tables with GROUP BY")

	// Seeds of the requested difficulty only
	assert.Contains(t, prompt, "What is the total order value per country?")
	assert.NotContains(t, prompt, "How many customers are there?")

	// Slot ordinal and output format
	assert.Contains(t, prompt, "question number 3")
	assert.Contains(t, prompt, `"question"`)
	assert.Contains(t, prompt, "Return ONLY the JSON")

	assert.NotContains(t, prompt, "alternative")
	assert.NotContains(t, prompt, "Already Asked")
}

func TestBuildGenerationPrompt_Deterministic(t *testing.T) {
	in := GenerationInput{
		Schema:     testhelpers.ShopSchema(),
		Seeds:      testhelpers.ShopSeeds(),
		Difficulty: models.DifficultyHard,
		Slot:       0,
	}

	// Table order in the input must not change the prompt
	reordered := testhelpers.ShopSchema()
	reordered.Tables[0], reordered.Tables[2] = reordered.Tables[2], reordered.Tables[0]
	in2 := in
	in2.Schema = reordered

	assert.Equal(t, BuildGenerationPrompt(in), BuildGenerationPrompt(in))
	assert.Equal(t, BuildGenerationPrompt(in), BuildGenerationPrompt(in2))
}

func TestBuildGenerationPrompt_SlotAndVariantChangePrompt(t *testing.T) {
	base := GenerationInput{Schema: testhelpers.ShopSchema(), Difficulty: models.DifficultyEasy}

	slot1 := base
	slot1.Slot = 1
	variant := base
	variant.Variant = 1

	p0 := BuildGenerationPrompt(base)
	assert.NotEqual(t, p0, BuildGenerationPrompt(slot1))
	assert.NotEqual(t, p0, BuildGenerationPrompt(variant))
	assert.Contains(t, BuildGenerationPrompt(variant), "alternative 1")
}

func TestBuildGenerationPrompt_AvoidList(t *testing.T) {
	prompt := BuildGenerationPrompt(GenerationInput{
		Schema:     testhelpers.ShopSchema(),
		Difficulty: models.DifficultyEasy,
		Avoid:      []string{"How many orders are there?"},
		Round:      1,
	})

	assert.Contains(t, prompt, "Already Asked (round 1)")
	assert.Contains(t, prompt, "- How many orders are there?")
}

func TestSelectSeeds(t *testing.T) {
	seeds := testhelpers.ShopSeeds()

	easy := SelectSeeds(seeds, models.DifficultyEasy, 1)
	if assert.Len(t, easy, 1) {
		assert.Equal(t, "How many customers are there?", easy[0].Question)
	}

	assert.Len(t, SelectSeeds(seeds, models.DifficultyEasy, 10), 2)
	assert.Nil(t, SelectSeeds(seeds, models.DifficultyEasy, 0))
}

func TestFormatSchema_SortsTables(t *testing.T) {
	out := FormatSchema(testhelpers.ShopSchema())

	customers := strings.Index(out, "Table: customers")
	items := strings.Index(out, "Table: order_items")
	orders := strings.Index(out, "Table: orders")
	assert.True(t, customers < items && items < orders, "tables should be sorted by name:\n%s", out)
	assert.True(t, strings.HasPrefix(out, "Database: shop\n"))
}

func TestDifficultyDescription(t *testing.T) {
	for _, d := range models.AllDifficulties {
		assert.NotEmpty(t, DifficultyDescription(d))
	}
	assert.Equal(t, "a query of moderate complexity", DifficultyDescription("weird"))
}

func TestSystemMessages(t *testing.T) {
	assert.Contains(t, GenerationSystemMessage(), "SQL")
	assert.Contains(t, RepairSystemMessage(), "schema")
	assert.Contains(t, AnswerSystemMessage(), "natural language")
}
