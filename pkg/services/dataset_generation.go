package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/cache"
	"github.com/ekaya-inc/ekaya-datagen/pkg/llm"
	"github.com/ekaya-inc/ekaya-datagen/pkg/logging"
	"github.com/ekaya-inc/ekaya-datagen/pkg/metrics"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/prompts"
	"github.com/ekaya-inc/ekaya-datagen/pkg/retry"
	sqlvalidator "github.com/ekaya-inc/ekaya-datagen/pkg/sql"
)

// ProgressCallback is called after every finished slot. During uniqueness
// rounds completed and total count the slots of the current round.
type ProgressCallback func(completed, total int)

// DatasetGenerationService produces a validation dataset for a schema.
type DatasetGenerationService interface {
	// Generate fills every quota slot it can.
	//
	// A shortfall is not an error: the result reports it through
	// Summary.Status and Summary.Failures. Errors are returned for invalid
	// input and for aborted runs. A configuration error returns no result;
	// an aborted run (attempt budget exhausted, ctx cancelled) returns the
	// partial result together with the abort cause.
	Generate(ctx context.Context, schema *models.SchemaModel, seeds []models.SeedExample, onProgress ProgressCallback) (*models.RunResult, error)
}

type datasetGenerationService struct {
	gen        llm.TextGenerator
	cache      *cache.ResultCache
	opts       GenerationOptions
	validation sqlvalidator.Options
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewDatasetGenerationService creates the generator. A nil cache gets a
// private one of default capacity; m may be nil.
func NewDatasetGenerationService(
	gen llm.TextGenerator,
	resultCache *cache.ResultCache,
	opts GenerationOptions,
	validation sqlvalidator.Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) (DatasetGenerationService, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: text generator is required", apperrors.ErrConfiguration)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
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

	return &datasetGenerationService{
		gen:        gen,
		cache:      resultCache,
		opts:       opts,
		validation: validation,
		metrics:    m,
		logger:     logger.Named("generation"),
	}, nil
}

var _ DatasetGenerationService = (*datasetGenerationService)(nil)

func (s *datasetGenerationService) Generate(
	ctx context.Context,
	schema *models.SchemaModel,
	seeds []models.SeedExample,
	onProgress ProgressCallback,
) (*models.RunResult, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema is required", apperrors.ErrConfiguration)
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}

	startedAt := time.Now()
	runID := uuid.New()
	dispatchCtx, abort := context.WithCancelCause(ctx)
	defer abort(nil)

	run := &generationRun{
		id:        runID,
		schema:    schema,
		seeds:     make(map[models.Difficulty][]models.SeedExample),
		opts:      s.opts,
		validator: sqlvalidator.NewValidator(schema, s.validation, s.logger),
		caller: &backendCaller{
			gen:          s.gen,
			cache:        s.cache,
			params:       s.opts.Sampling,
			timeout:      s.opts.RequestTimeout,
			schemaDigest: schema.Digest(),
			metrics:      s.metrics,
			logger:       s.logger,
		},
		metrics:     s.metrics,
		logger:      s.logger.With(zap.String("run_id", runID.String())),
		dispatchCtx: dispatchCtx,
		abort:       abort,
		onProgress:  onProgress,
	}
	for _, d := range models.AllDifficulties {
		run.seeds[d] = prompts.SelectSeeds(seeds, d, s.opts.SeedExamplesPerPrompt)
	}

	requests := planRequests(s.opts.Quotas)
	run.logger.Info("Starting dataset generation",
		zap.Int("slots", len(requests)),
		zap.Int("workers", s.opts.Workers()),
		zap.String("model", s.gen.ModelID()))

	outcomes := run.dispatch(requests, 0, nil)
	if s.opts.UniqueQuestions {
		run.enforceUniqueness(requests, outcomes)
	}

	cause := context.Cause(dispatchCtx)
	if cause != nil && errors.Is(cause, apperrors.ErrConfiguration) {
		run.logger.Error("Generation aborted by configuration error", zap.String("error", logging.SanitizeError(cause)))
		return nil, cause
	}

	result := run.finalize(requests, outcomes, startedAt)
	s.metrics.ObserveRun(time.Since(startedAt))

	run.logger.Info("Dataset generation finished",
		zap.String("status", string(result.Summary.Status)),
		zap.Int("accepted", len(result.Dataset.Items)),
		zap.Int("failed", len(result.Summary.Failures)),
		zap.Int64("backend_calls", result.Summary.BackendCalls),
		zap.Int64("cache_hits", result.Summary.CacheHits),
		zap.Duration("elapsed", time.Since(startedAt)))

	if cause != nil {
		return result, fmt.Errorf("generation aborted: %w", cause)
	}
	return result, nil
}

// planRequests lists every slot in output order. Zero quotas add nothing.
func planRequests(quotas models.Quotas) []models.GenerationRequest {
	var requests []models.GenerationRequest
	for _, d := range models.AllDifficulties {
		for slot := 0; slot < quotas[d]; slot++ {
			requests = append(requests, models.GenerationRequest{Difficulty: d, Slot: slot})
		}
	}
	return requests
}

// generationRun is the per-run context: everything a slot needs, and nothing
// shared between slots except the cache behind caller.
type generationRun struct {
	id        uuid.UUID
	schema    *models.SchemaModel
	seeds     map[models.Difficulty][]models.SeedExample
	opts      GenerationOptions
	validator *sqlvalidator.Validator
	caller    *backendCaller
	metrics   *metrics.Metrics
	logger    *zap.Logger

	// dispatchCtx is cancelled with a cause on abort; in-flight attempts run
	// detached from it and end on their own timeouts.
	dispatchCtx context.Context
	abort       context.CancelCauseFunc
	onProgress  ProgressCallback

	attempts atomic.Int64
}

type slotOutcome struct {
	item     *models.GeneratedItem
	failure  *models.SlotFailure
	attempts int
}

// dispatch runs requests on the worker pool and returns one outcome per
// request, in request order.
func (r *generationRun) dispatch(requests []models.GenerationRequest, round int, avoid map[models.Difficulty][]string) []slotOutcome {
	items := make([]llm.WorkItem[slotOutcome], len(requests))
	for i, req := range requests {
		items[i] = llm.WorkItem[slotOutcome]{
			ID: req.String(),
			Execute: func(ctx context.Context) (slotOutcome, error) {
				return r.runSlot(ctx, req, round, avoid[req.Difficulty]), nil
			},
		}
	}

	pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: r.opts.Workers()}, r.logger)
	ctx := llm.WithRunID(r.dispatchCtx, r.id)
	results := llm.Process(ctx, pool, items, r.onProgress)

	outcomes := make([]slotOutcome, len(requests))
	for i, res := range results {
		if res.Dispatched {
			outcomes[i] = res.Result
			continue
		}
		req := requests[i]
		outcomes[i] = slotOutcome{failure: &models.SlotFailure{
			Difficulty: req.Difficulty,
			Slot:       req.Slot,
			Kind:       "not_dispatched",
			LastError:  fmt.Errorf("%w: %w", apperrors.ErrNotDispatched, res.Err).Error(),
		}}
	}
	return outcomes
}

// runSlot drives one slot through its attempts until it is accepted or its
// retries run out.
func (r *generationRun) runSlot(ctx context.Context, req models.GenerationRequest, round int, avoid []string) slotOutcome {
	r.metrics.WorkerStarted()
	defer r.metrics.WorkerFinished()

	logger := r.logger.With(zap.String("slot", req.String()))
	difficulty := string(req.Difficulty)

	var (
		counts    retry.Counts
		variant   int
		attempts  int
		lastErr   error
		lastLabel string
	)
	fail := func() slotOutcome {
		return slotOutcome{attempts: attempts, failure: &models.SlotFailure{
			Difficulty: req.Difficulty,
			Slot:       req.Slot,
			Attempts:   attempts,
			Kind:       lastLabel,
			LastError:  logging.SanitizeError(lastErr),
		}}
	}

	for {
		if attempts > 0 {
			if cause := context.Cause(r.dispatchCtx); cause != nil {
				logger.Debug("Run aborted; no further attempts", zap.Error(cause))
				return fail()
			}
		}
		if err := r.reserveAttempt(); err != nil {
			if lastErr == nil {
				lastErr, lastLabel = err, "aborted"
			}
			return fail()
		}
		attempts++

		item, err := r.attempt(ctx, req, attempts, variant, round, avoid)
		if err == nil {
			r.metrics.ObserveAttempt(difficulty, "accepted")
			if attempts > 1 {
				logger.Debug("Slot accepted after retries", zap.Int("attempts", attempts))
			}
			return slotOutcome{item: item, attempts: attempts}
		}

		kind, err := classifyFailure(err)
		counts = counts.Record(kind)
		lastErr, lastLabel = err, kind.String()
		r.metrics.ObserveAttempt(difficulty, kind.String())

		if kind == retry.KindFatal {
			logger.Error("Fatal back-end error; aborting run", zap.String("error", logging.SanitizeError(err)))
			r.abort(err)
			return fail()
		}

		decision := retry.Decide(kind, counts, r.opts.Limits)
		if !decision.Retry {
			logger.Warn("Slot failed",
				zap.String("kind", kind.String()),
				zap.Int("attempts", attempts),
				zap.String("error", logging.SanitizeError(err)))
			return fail()
		}

		if kind != retry.KindTransient {
			variant++
		}
		if decision.BackoffN > 0 {
			delay := retry.Backoff(r.opts.Backoff, decision.BackoffN)
			logger.Debug("Transient failure; backing off",
				zap.Duration("delay", delay),
				zap.Int("retry", decision.BackoffN),
				zap.String("error", logging.SanitizeError(err)))
			if werr := retry.Wait(r.dispatchCtx, delay); werr != nil {
				return fail()
			}
		}
	}
}

// reserveAttempt takes one attempt from the run's budget, aborting the run
// when the budget is spent.
func (r *generationRun) reserveAttempt() error {
	n := r.attempts.Add(1)
	if r.opts.AttemptBudget > 0 && n > int64(r.opts.AttemptBudget) {
		err := fmt.Errorf("%w: %d attempts used", apperrors.ErrAttemptBudgetExhausted, r.opts.AttemptBudget)
		r.abort(err)
		return err
	}
	return nil
}

// attempt is one generate/parse/validate pass, with at most one repair call.
func (r *generationRun) attempt(ctx context.Context, req models.GenerationRequest, attemptNo, variant, round int, avoid []string) (*models.GeneratedItem, error) {
	genCtx := llm.WithSlotContext(ctx, string(req.Difficulty), req.Slot, attemptNo, "generation")
	prompt := prompts.BuildGenerationPrompt(prompts.GenerationInput{
		Schema:     r.schema,
		Seeds:      r.seeds[req.Difficulty],
		Difficulty: req.Difficulty,
		Slot:       req.Slot,
		Variant:    variant,
		Avoid:      avoid,
		Round:      round,
	})

	response, err := r.caller.complete(genCtx, metrics.CallGenerate, prompts.GenerationSystemMessage(), prompt)
	if err != nil {
		return nil, err
	}
	triple, err := parseGenerationResponse(response)
	if err != nil {
		return nil, err
	}

	query := normalizeSQL(triple.SQL)
	report := r.validate(query)

	if !report.IsValid && r.opts.Repair {
		repairCtx := llm.WithSlotContext(ctx, string(req.Difficulty), req.Slot, attemptNo, "repair")
		repaired, rerr := r.repair(repairCtx, triple.Question, query, report.Errors)
		switch {
		case rerr == nil:
			repairedReport := r.validate(repaired)
			r.metrics.ObserveRepair(repairedReport.IsValid)
			query, report = repaired, repairedReport
		case isInvalidResponse(rerr):
			// unusable repair output; the attempt stands on the original errors
			r.metrics.ObserveRepair(false)
		default:
			return nil, rerr
		}
	}

	if !report.IsValid && r.opts.RequireValidSQL {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidationFailed, strings.Join(report.Errors, "; "))
	}

	return &models.GeneratedItem{
		Question:         triple.Question,
		Answer:           triple.Answer,
		SQL:              query,
		Difficulty:       req.Difficulty,
		SQLValid:         report.IsValid,
		ValidationErrors: report.Errors,
		Slot:             req.Slot,
	}, nil
}

func (r *generationRun) repair(ctx context.Context, question, query string, validationErrors []string) (string, error) {
	prompt := prompts.BuildRepairPrompt(prompts.RepairInput{
		Schema:   r.schema,
		Question: question,
		SQL:      query,
		Errors:   validationErrors,
	})
	response, err := r.caller.complete(ctx, metrics.CallRepair, prompts.RepairSystemMessage(), prompt)
	if err != nil {
		return "", err
	}
	repaired, err := parseRepairResponse(response)
	if err != nil {
		return "", err
	}
	return normalizeSQL(repaired), nil
}

func (r *generationRun) validate(query string) sqlvalidator.ValidationReport {
	report := r.validator.Validate(query)
	r.metrics.ObserveValidation(report.IsValid)
	return report
}

// normalizeSQL drops trailing semicolons. Input that does not normalize is
// returned unchanged so the validator can report it.
func normalizeSQL(query string) string {
	if n, err := sqlvalidator.Normalize(query); err == nil {
		return n
	}
	return query
}

// finalize assembles the dataset in (difficulty, slot) order and the summary.
func (r *generationRun) finalize(requests []models.GenerationRequest, outcomes []slotOutcome, startedAt time.Time) *models.RunResult {
	summary := models.RunSummary{
		RunID:     r.id,
		Requested: make(map[models.Difficulty]int),
		Accepted:  make(map[models.Difficulty]int),
		Failures:  []models.SlotFailure{},
		StartedAt: startedAt,
	}
	for _, d := range models.AllDifficulties {
		summary.Requested[d] = r.opts.Quotas[d]
		summary.Accepted[d] = 0
	}

	items := make([]models.GeneratedItem, 0, len(requests))
	for _, out := range outcomes {
		switch {
		case out.item != nil:
			items = append(items, *out.item)
			summary.Accepted[out.item.Difficulty]++
			r.metrics.ObserveSlot(string(out.item.Difficulty), true)
		case out.failure != nil:
			summary.Failures = append(summary.Failures, *out.failure)
			r.metrics.ObserveSlot(string(out.failure.Difficulty), false)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if ri, rj := items[i].Difficulty.Rank(), items[j].Difficulty.Rank(); ri != rj {
			return ri < rj
		}
		return items[i].Slot < items[j].Slot
	})
	sort.SliceStable(summary.Failures, func(i, j int) bool {
		fi, fj := summary.Failures[i], summary.Failures[j]
		if ri, rj := fi.Difficulty.Rank(), fj.Difficulty.Rank(); ri != rj {
			return ri < rj
		}
		return fi.Slot < fj.Slot
	})

	if cause := context.Cause(r.dispatchCtx); cause != nil {
		summary.Aborted = true
		summary.AbortReason = logging.SanitizeError(cause)
	}

	summary.Status = models.RunStatusComplete
	if len(items) < len(requests) {
		summary.Status = models.RunStatusPartiallyComplete
	}
	summary.BackendCalls = r.caller.calls.Load()
	summary.CacheHits = r.caller.hits.Load()
	summary.CacheMisses = r.caller.misses.Load()
	summary.CompletedAt = time.Now()

	return &models.RunResult{
		Dataset: models.Dataset{Items: items},
		Summary: summary,
	}
}
