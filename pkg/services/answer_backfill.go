package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/cache"
	"github.com/ekaya-inc/ekaya-datagen/pkg/llm"
	"github.com/ekaya-inc/ekaya-datagen/pkg/logging"
	"github.com/ekaya-inc/ekaya-datagen/pkg/metrics"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/prompts"
	"github.com/ekaya-inc/ekaya-datagen/pkg/retry"
)

// AnswerService writes natural-language answers for items that lack one.
type AnswerService interface {
	// BackfillAnswers fills the Answer of every item that has a question and
	// SQL but no answer. Items whose answer cannot be generated keep an empty
	// answer; the returned slice is always in input order.
	BackfillAnswers(ctx context.Context, schema *models.SchemaModel, items []models.GeneratedItem, onProgress ProgressCallback) (*BackfillResult, error)
}

// BackfillResult reports what BackfillAnswers changed.
type BackfillResult struct {
	Items  []models.GeneratedItem `json:"items"`
	Filled int                    `json:"filled"`
	Failed int                    `json:"failed"`
}

type answerService struct {
	gen     llm.TextGenerator
	cache   *cache.ResultCache
	opts    GenerationOptions
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewAnswerService creates an AnswerService. It shares the sampling, timeout,
// retry and worker settings of opts.
func NewAnswerService(gen llm.TextGenerator, resultCache *cache.ResultCache, opts GenerationOptions, m *metrics.Metrics, logger *zap.Logger) (AnswerService, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: text generator is required", apperrors.ErrConfiguration)
	}
	if opts.Backoff == nil {
		opts.Backoff = retry.DefaultConfig()
	}
	if resultCache == nil {
		var err error
		if resultCache, err = cache.NewResultCache(cache.DefaultCapacity, logger); err != nil {
			return nil, fmt.Errorf("create result cache: %w", err)
		}
	}
	return &answerService{
		gen:     gen,
		cache:   resultCache,
		opts:    opts,
		metrics: m,
		logger:  logger.Named("answers"),
	}, nil
}

var _ AnswerService = (*answerService)(nil)

func (s *answerService) BackfillAnswers(ctx context.Context, schema *models.SchemaModel, items []models.GeneratedItem, onProgress ProgressCallback) (*BackfillResult, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema is required", apperrors.ErrConfiguration)
	}

	out := make([]models.GeneratedItem, len(items))
	copy(out, items)
	result := &BackfillResult{Items: out}

	var pending []int
	for i, item := range out {
		if strings.TrimSpace(item.Answer) == "" && strings.TrimSpace(item.Question) != "" && strings.TrimSpace(item.SQL) != "" {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return result, nil
	}

	caller := &backendCaller{
		gen:          s.gen,
		cache:        s.cache,
		params:       s.opts.Sampling,
		timeout:      s.opts.RequestTimeout,
		schemaDigest: schema.Digest(),
		metrics:      s.metrics,
		logger:       s.logger,
	}
	retryCfg := *s.opts.Backoff
	retryCfg.MaxRetries = s.opts.Limits.TransientMax

	work := make([]llm.WorkItem[string], len(pending))
	for i, idx := range pending {
		item := out[idx]
		work[i] = llm.WorkItem[string]{
			ID: fmt.Sprintf("%s#%d", item.Difficulty, item.Slot),
			Execute: func(ctx context.Context) (string, error) {
				ctx = llm.WithSlotContext(ctx, string(item.Difficulty), item.Slot, 1, "answer")
				prompt := prompts.BuildAnswerPrompt(schema, item.Question, item.SQL)
				return retry.DoWithResult(ctx, &retryCfg, func() (string, error) {
					response, err := caller.complete(ctx, metrics.CallAnswer, prompts.AnswerSystemMessage(), prompt)
					if err != nil {
						return "", err
					}
					answer := llm.StripCodeFence(llm.StripThinking(response))
					if answer == "" {
						return "", llm.NewInvalidResponseError("empty answer", nil)
					}
					return answer, nil
				})
			},
		}
	}

	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: s.opts.Workers()}, s.logger)
	results := llm.Process(ctx, pool, work, onProgress)

	for i, res := range results {
		idx := pending[i]
		if res.Err != nil || !res.Dispatched {
			result.Failed++
			s.logger.Warn("Answer backfill failed; leaving answer empty",
				zap.String("item", res.ID),
				zap.String("error", logging.SanitizeError(res.Err)))
			continue
		}
		out[idx].Answer = res.Result
		result.Filled++
	}

	s.logger.Info("Answer backfill finished",
		zap.Int("filled", result.Filled),
		zap.Int("failed", result.Failed))
	return result, nil
}
