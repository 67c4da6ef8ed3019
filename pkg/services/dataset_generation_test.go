package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/cache"
	"github.com/ekaya-inc/ekaya-datagen/pkg/llm"
	"github.com/ekaya-inc/ekaya-datagen/pkg/metrics"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/retry"
	sqlvalidator "github.com/ekaya-inc/ekaya-datagen/pkg/sql"
	"github.com/ekaya-inc/ekaya-datagen/pkg/testhelpers"
)

var (
	difficultyLine = regexp.MustCompile(`Difficulty: (\w+)`)
	slotLine       = regexp.MustCompile(`This is question number (\d+)`)
)

// slotOf recovers the difficulty and 0-based slot from a generation prompt.
func slotOf(prompt string) (string, int) {
	d := difficultyLine.FindStringSubmatch(prompt)
	s := slotLine.FindStringSubmatch(prompt)
	if d == nil || s == nil {
		return "", -1
	}
	n, _ := strconv.Atoi(s[1])
	return d[1], n - 1
}

func isRepairPrompt(prompt string) bool {
	return strings.HasPrefix(prompt, "# SQL Repair")
}

func validTriple(difficulty string, slot int) string {
	return fmt.Sprintf(`{"question": "Question %s %d?", "answer": "Answer %s %d.", "sql": "SELECT id, name FROM customers WHERE id = %d"}`,
		difficulty, slot, difficulty, slot, slot)
}

// alwaysValid answers every generation prompt with a valid triple unique to its slot.
func alwaysValid() *llm.MockTextGenerator {
	return llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		d, slot := slotOf(prompt)
		return validTriple(d, slot), nil
	})
}

func testOptions(quotas models.Quotas) GenerationOptions {
	opts := DefaultGenerationOptions()
	opts.Quotas = quotas
	opts.RequestTimeout = time.Second
	opts.Backoff = &retry.Config{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	return opts
}

func newTestGenerationService(t *testing.T, gen llm.TextGenerator, opts GenerationOptions) DatasetGenerationService {
	t.Helper()
	svc, err := NewDatasetGenerationService(gen, nil, opts, sqlvalidator.Options{}, nil, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestGenerate_ZeroQuotaDifficultyIsSkipped(t *testing.T) {
	gen := alwaysValid()
	svc := newTestGenerationService(t, gen, testOptions(models.Quotas{
		models.DifficultyEasy:   2,
		models.DifficultyMedium: 1,
		models.DifficultyHard:   0,
	}))

	result, err := svc.Generate(context.Background(), testhelpers.ShopSchema(), testhelpers.ShopSeeds(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusComplete, result.Summary.Status)
	require.Len(t, result.Dataset.Items, 3)
	assert.Empty(t, result.Summary.Failures)
	assert.Equal(t, 0, result.Summary.Accepted[models.DifficultyHard])
	assert.Equal(t, 2, result.Summary.Accepted[models.DifficultyEasy])
	assert.Equal(t, 1, result.Summary.Accepted[models.DifficultyMedium])
	assert.Empty(t, result.Summary.Shortfall())
	assert.False(t, result.Summary.Aborted)

	for _, p := range gen.Prompts() {
		assert.NotContains(t, p, "Difficulty: hard", "no prompt should be built for a zero quota")
	}
}

func TestGenerate_ExactCountsInDifficultySlotOrder(t *testing.T) {
	quotas := models.Quotas{
		models.DifficultyEasy:   4,
		models.DifficultyMedium: 3,
		models.DifficultyHard:   5,
	}
	svc := newTestGenerationService(t, alwaysValid(), testOptions(quotas))

	result, err := svc.Generate(context.Background(), testhelpers.ShopSchema(), testhelpers.ShopSeeds(), nil)
	require.NoError(t, err)
	require.Len(t, result.Dataset.Items, quotas.Total())

	counts := result.Dataset.CountByDifficulty()
	for d, n := range quotas {
		assert.Equal(t, n, counts[d], "count for %s", d)
	}

	for i := 1; i < len(result.Dataset.Items); i++ {
		prev, cur := result.Dataset.Items[i-1], result.Dataset.Items[i]
		ordered := prev.Difficulty.Rank() < cur.Difficulty.Rank() ||
			(prev.Difficulty == cur.Difficulty && prev.Slot < cur.Slot)
		assert.True(t, ordered, "item %d (%s#%d) out of order after %s#%d", i, cur.Difficulty, cur.Slot, prev.Difficulty, prev.Slot)
	}
	for _, item := range result.Dataset.Items {
		assert.True(t, item.SQLValid)
		assert.Empty(t, item.ValidationErrors)
		assert.Equal(t, fmt.Sprintf("Question %s %d?", item.Difficulty, item.Slot), item.Question)
	}
}

func TestGenerate_PoolSizeDoesNotChangeDataset(t *testing.T) {
	quotas := models.Quotas{
		models.DifficultyEasy:   5,
		models.DifficultyMedium: 5,
		models.DifficultyHard:   5,
	}

	sequential := testOptions(quotas)
	sequential.Parallel = false
	parallel := testOptions(quotas)
	parallel.MaxWorkers = 6

	seqResult, err := newTestGenerationService(t, alwaysValid(), sequential).
		Generate(context.Background(), testhelpers.ShopSchema(), testhelpers.ShopSeeds(), nil)
	require.NoError(t, err)
	parResult, err := newTestGenerationService(t, alwaysValid(), parallel).
		Generate(context.Background(), testhelpers.ShopSchema(), testhelpers.ShopSeeds(), nil)
	require.NoError(t, err)

	assert.Equal(t, seqResult.Dataset, parResult.Dataset)
}

func TestGenerate_RepeatedRunHitsCache(t *testing.T) {
	gen := alwaysValid()
	svc := newTestGenerationService(t, gen, testOptions(models.Quotas{models.DifficultyEasy: 3}))

	first, err := svc.Generate(context.Background(), testhelpers.ShopSchema(), testhelpers.ShopSeeds(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first.Summary.BackendCalls)
	assert.Equal(t, int64(0), first.Summary.CacheHits)

	second, err := svc.Generate(context.Background(), testhelpers.ShopSchema(), testhelpers.ShopSeeds(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), second.Summary.BackendCalls, "identical requests must not reach the back-end again")
	assert.Equal(t, int64(3), second.Summary.CacheHits)
	assert.Equal(t, 3, gen.Calls())
	assert.Equal(t, first.Dataset, second.Dataset)
}

func TestGenerate_TransientFailuresRetryWithBackoff(t *testing.T) {
	var calls atomic.Int32
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		if calls.Add(1) <= 2 {
			return "", llm.NewError(llm.ErrorTypeRateLimited, "rate limited", true, errors.New("HTTP 429"))
		}
		d, slot := slotOf(prompt)
		return validTriple(d, slot), nil
	})
	opts := testOptions(models.Quotas{models.DifficultyEasy: 1})
	opts.Limits.TransientMax = 3

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusComplete, result.Summary.Status)
	assert.Len(t, result.Dataset.Items, 1)
	assert.Empty(t, result.Summary.Failures)
	assert.Equal(t, 3, gen.Calls())
}

func TestGenerate_TransientRetriesExhausted(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		return "", llm.NewError(llm.ErrorTypeUnavailable, "server error", true, errors.New("HTTP 503"))
	})
	opts := testOptions(models.Quotas{models.DifficultyMedium: 1})
	opts.Limits.TransientMax = 2

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err, "a shortfall is not an error")

	assert.Equal(t, models.RunStatusPartiallyComplete, result.Summary.Status)
	require.Len(t, result.Summary.Failures, 1)
	failure := result.Summary.Failures[0]
	assert.Equal(t, "transient", failure.Kind)
	assert.Equal(t, 3, failure.Attempts)
	assert.Contains(t, failure.LastError, "503")
	assert.Equal(t, map[models.Difficulty]int{models.DifficultyMedium: 1}, result.Summary.Shortfall())
}

func TestGenerate_UnknownColumnBecomesTerminalFailure(t *testing.T) {
	const badSQL = "SELECT nonexistent_col FROM customers"
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		if isRepairPrompt(prompt) {
			return fmt.Sprintf(`{"sql": %q}`, badSQL), nil
		}
		return fmt.Sprintf(`{"question": "Q?", "answer": "A.", "sql": %q}`, badSQL), nil
	})
	opts := testOptions(models.Quotas{models.DifficultyEasy: 1})
	opts.Limits.ValidationMax = 1

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusPartiallyComplete, result.Summary.Status)
	assert.Empty(t, result.Dataset.Items)
	require.Len(t, result.Summary.Failures, 1)
	failure := result.Summary.Failures[0]
	assert.Equal(t, "validation_failed", failure.Kind)
	assert.Equal(t, 2, failure.Attempts)
	assert.Contains(t, failure.LastError, "nonexistent_col")

	// two generation calls with distinct prompts; the identical second repair is served from cache
	assert.Equal(t, 3, gen.Calls())
}

func TestGenerate_RepairFixesInvalidSQL(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		if isRepairPrompt(prompt) {
			if !strings.Contains(prompt, "full_name") {
				t.Errorf("repair prompt should name the offending column:\n%s", prompt)
			}
			return "```sql\nSELECT name FROM customers;\n```", nil
		}
		return `{"question": "List customer names", "answer": "All names.", "sql": "SELECT full_name FROM customers"}`, nil
	})

	result, err := newTestGenerationService(t, gen, testOptions(models.Quotas{models.DifficultyEasy: 1})).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)

	require.Len(t, result.Dataset.Items, 1)
	item := result.Dataset.Items[0]
	assert.Equal(t, "SELECT name FROM customers", item.SQL)
	assert.True(t, item.SQLValid)
	assert.Equal(t, 2, gen.Calls())
}

func TestGenerate_RepairDisabled(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		if isRepairPrompt(prompt) {
			t.Error("no repair prompt expected")
		}
		return `{"question": "Q", "answer": "A", "sql": "SELECT nope FROM customers"}`, nil
	})
	opts := testOptions(models.Quotas{models.DifficultyEasy: 1})
	opts.Repair = false
	opts.Limits.ValidationMax = 0

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Summary.Failures, 1)
	assert.Equal(t, 1, gen.Calls())
}

func TestGenerate_InvalidSQLAcceptedWhenNotRequired(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		if isRepairPrompt(prompt) {
			return `{"sql": "SELECT still_wrong FROM customers"}`, nil
		}
		return `{"question": "Q", "answer": "A", "sql": "SELECT wrong FROM customers"}`, nil
	})
	opts := testOptions(models.Quotas{models.DifficultyEasy: 1})
	opts.RequireValidSQL = false

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)

	require.Len(t, result.Dataset.Items, 1)
	item := result.Dataset.Items[0]
	assert.False(t, item.SQLValid)
	assert.Equal(t, "SELECT still_wrong FROM customers", item.SQL)
	require.NotEmpty(t, item.ValidationErrors)
	assert.Contains(t, item.ValidationErrors[0], "still_wrong")
	assert.Equal(t, models.RunStatusComplete, result.Summary.Status)
}

func TestGenerate_MissingFieldRetriesWithNewPrompt(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(seen) == 0 {
			seen[prompt] = true
			return `{"question": "Q without SQL", "answer": "A"}`, nil
		}
		if seen[prompt] {
			t.Error("retry after an unusable response must use a different prompt")
		}
		return validTriple("easy", 0), nil
	})
	opts := testOptions(models.Quotas{models.DifficultyEasy: 1})
	opts.Limits.ValidationMax = 1

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, result.Dataset.Items, 1)
	assert.Equal(t, 2, gen.Calls())
}

func TestGenerate_InvalidResponseExhausted(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		return "I cannot help with that.", nil
	})
	opts := testOptions(models.Quotas{models.DifficultyHard: 2})
	opts.Limits.ValidationMax = 1

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)

	require.Len(t, result.Summary.Failures, 2)
	for i, f := range result.Summary.Failures {
		assert.Equal(t, "invalid_response", f.Kind)
		assert.Equal(t, i, f.Slot)
		assert.Equal(t, 2, f.Attempts)
	}
}

func TestGenerate_AuthErrorIsFatal(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		return "", llm.NewError(llm.ErrorTypeAuth, "authentication failed", false, errors.New("HTTP 401"))
	})
	opts := testOptions(models.Quotas{models.DifficultyEasy: 5})
	opts.Parallel = false

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration), "got %v", err)
	assert.Nil(t, result)
	assert.Equal(t, 1, gen.Calls(), "no slot may be dispatched after a fatal error")
}

func TestGenerate_AttemptBudgetAbortsRun(t *testing.T) {
	opts := testOptions(models.Quotas{models.DifficultyEasy: 5})
	opts.Parallel = false
	opts.AttemptBudget = 2
	gen := alwaysValid()

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrAttemptBudgetExhausted), "got %v", err)
	require.NotNil(t, result, "an aborted run still returns what it produced")

	assert.True(t, result.Summary.Aborted)
	assert.Equal(t, models.RunStatusPartiallyComplete, result.Summary.Status)
	assert.Len(t, result.Dataset.Items, 2)
	assert.Len(t, result.Summary.Failures, 3)
	assert.Equal(t, 2, gen.Calls())
}

func TestGenerate_ExternalStopReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	gen := llm.NewMockTextGenerator(func(c context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		if calls.Add(1) == 2 {
			cancel()
		}
		d, slot := slotOf(prompt)
		return validTriple(d, slot), nil
	})
	opts := testOptions(models.Quotas{models.DifficultyEasy: 6})
	opts.Parallel = false

	result, err := newTestGenerationService(t, gen, opts).
		Generate(ctx, testhelpers.ShopSchema(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	require.NotNil(t, result)

	assert.Len(t, result.Dataset.Items, 2, "the in-flight attempt finishes after the stop")
	assert.Equal(t, 2, gen.Calls())
	for _, f := range result.Summary.Failures {
		assert.Equal(t, "not_dispatched", f.Kind)
	}
}

func TestGenerate_ProgressReported(t *testing.T) {
	var mu sync.Mutex
	var reports [][2]int
	onProgress := func(completed, total int) {
		mu.Lock()
		reports = append(reports, [2]int{completed, total})
		mu.Unlock()
	}

	_, err := newTestGenerationService(t, alwaysValid(), testOptions(models.Quotas{models.DifficultyEasy: 2, models.DifficultyHard: 2})).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, onProgress)
	require.NoError(t, err)

	require.Len(t, reports, 4)
	assert.Equal(t, [2]int{4, 4}, reports[3])
}

func TestGenerate_UniquenessRoundsReplaceDuplicates(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		d, slot := slotOf(prompt)
		if !strings.Contains(prompt, "## Already Asked") {
			return `{"question": "How many customers are there?", "answer": "A count.", "sql": "SELECT COUNT(*) FROM customers"}`, nil
		}
		if !strings.Contains(prompt, "- How many customers are there?") {
			t.Errorf("avoid-list should carry the accepted question:\n%s", prompt)
		}
		return validTriple(d, slot), nil
	})
	opts := testOptions(models.Quotas{models.DifficultyEasy: 3})
	opts.UniqueQuestions = true
	opts.UniqueRounds = 1

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusComplete, result.Summary.Status)
	require.Len(t, result.Dataset.Items, 3)
	assert.Equal(t, "How many customers are there?", result.Dataset.Items[0].Question)
	assert.Equal(t, "Question easy 1?", result.Dataset.Items[1].Question)
	assert.Equal(t, "Question easy 2?", result.Dataset.Items[2].Question)
}

func TestGenerate_PersistentDuplicatesFail(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		return `{"question": "Same question?", "answer": "A.", "sql": "SELECT id FROM orders"}`, nil
	})
	opts := testOptions(models.Quotas{models.DifficultyMedium: 2})
	opts.UniqueQuestions = true
	opts.UniqueRounds = 2

	result, err := newTestGenerationService(t, gen, opts).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusPartiallyComplete, result.Summary.Status)
	require.Len(t, result.Dataset.Items, 1)
	require.Len(t, result.Summary.Failures, 1)
	f := result.Summary.Failures[0]
	assert.Equal(t, "duplicate", f.Kind)
	assert.Equal(t, 1, f.Slot)
	assert.Equal(t, 3, f.Attempts)
	assert.Contains(t, f.LastError, apperrors.ErrDuplicateQuestion.Error())
}

func TestGenerate_SlotMetricsCountFinalOutcomeOnly(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		return `{"question": "Same question?", "answer": "A.", "sql": "SELECT id FROM orders"}`, nil
	})
	opts := testOptions(models.Quotas{models.DifficultyMedium: 2})
	opts.UniqueQuestions = true
	opts.UniqueRounds = 2
	m := metrics.New()

	svc, err := NewDatasetGenerationService(gen, nil, opts, sqlvalidator.Options{}, m, zap.NewNop())
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)

	expected := `
# HELP datagen_slots_total Finished slots by difficulty and terminal status.
# TYPE datagen_slots_total counter
datagen_slots_total{difficulty="medium",status="accepted"} 1
datagen_slots_total{difficulty="medium",status="failed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "datagen_slots_total"))
}

func TestGenerate_DuplicatesKeptWithoutUniqueness(t *testing.T) {
	gen := llm.NewMockTextGenerator(func(ctx context.Context, prompt, system string, params llm.GenerationParams) (string, error) {
		return `{"question": "Same question?", "answer": "A.", "sql": "SELECT id FROM orders"}`, nil
	})

	result, err := newTestGenerationService(t, gen, testOptions(models.Quotas{models.DifficultyEasy: 3})).
		Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, result.Dataset.Items, 3)
}

func TestGenerate_SharedCacheAndMetrics(t *testing.T) {
	resultCache, err := cache.NewResultCache(16, zap.NewNop())
	require.NoError(t, err)
	m := metrics.New()

	svc, err := NewDatasetGenerationService(alwaysValid(), resultCache, testOptions(models.Quotas{models.DifficultyEasy: 2}), sqlvalidator.Options{}, m, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), testhelpers.ShopSchema(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resultCache.Len())
}

func TestGenerate_RejectsInvalidInput(t *testing.T) {
	svc := newTestGenerationService(t, alwaysValid(), testOptions(models.Quotas{models.DifficultyEasy: 1}))

	_, err := svc.Generate(context.Background(), nil, nil, nil)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))

	_, err = svc.Generate(context.Background(), &models.SchemaModel{}, nil, nil)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}

func TestNewDatasetGenerationService_RejectsBadOptions(t *testing.T) {
	opts := testOptions(models.Quotas{models.DifficultyEasy: -1})
	opts.Sampling.Temperature = 1.5

	_, err := NewDatasetGenerationService(alwaysValid(), nil, opts, sqlvalidator.Options{}, nil, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	assert.Contains(t, err.Error(), "temperature")
	assert.Contains(t, err.Error(), "quota for easy")

	unbounded := testOptions(models.Quotas{models.DifficultyEasy: 1})
	unbounded.RequestTimeout = 0
	_, err = NewDatasetGenerationService(alwaysValid(), nil, unbounded, sqlvalidator.Options{}, nil, zap.NewNop())
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
	assert.Contains(t, err.Error(), "request_timeout must be > 0")

	_, err = NewDatasetGenerationService(nil, nil, testOptions(models.Quotas{models.DifficultyEasy: 1}), sqlvalidator.Options{}, nil, zap.NewNop())
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}
