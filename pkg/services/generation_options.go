package services

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/llm"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/retry"
)

// GenerationOptions is the run configuration of the dataset generator.
type GenerationOptions struct {
	Quotas   models.Quotas
	Sampling llm.GenerationParams

	// RequestTimeout bounds every back-end call.
	RequestTimeout time.Duration

	Parallel   bool
	MaxWorkers int

	Limits  retry.Limits
	Backoff *retry.Config

	// Repair issues one repair prompt per attempt whose SQL fails validation.
	Repair bool
	// RequireValidSQL rejects items whose SQL is still invalid after repair.
	// When false they are accepted with SQLValid=false.
	RequireValidSQL bool

	// AttemptBudget caps attempts across the whole run. Zero means unlimited.
	AttemptBudget int

	UniqueQuestions bool
	UniqueRounds    int

	SeedExamplesPerPrompt int
}

// DefaultGenerationOptions returns the defaults used when no config file overrides them.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Quotas: models.Quotas{
			models.DifficultyEasy:   10,
			models.DifficultyMedium: 10,
			models.DifficultyHard:   10,
		},
		Sampling: llm.GenerationParams{
			Temperature: 0.7,
			MaxTokens:   2048,
		},
		RequestTimeout:        60 * time.Second,
		Parallel:              true,
		MaxWorkers:            4,
		Limits:                retry.Limits{TransientMax: 3, ValidationMax: 1},
		Backoff:               retry.DefaultConfig(),
		Repair:                true,
		RequireValidSQL:       true,
		UniqueRounds:          2,
		SeedExamplesPerPrompt: 3,
	}
}

// Workers returns the pool size: 1 when parallelism is off.
func (o GenerationOptions) Workers() int {
	if !o.Parallel || o.MaxWorkers < 1 {
		return 1
	}
	return o.MaxWorkers
}

// Validate reports every invalid setting at once, wrapped in apperrors.ErrConfiguration.
func (o GenerationOptions) Validate() error {
	var result *multierror.Error

	for d, n := range o.Quotas {
		if d.Rank() == len(models.AllDifficulties) {
			result = multierror.Append(result, fmt.Errorf("unknown difficulty %q in quotas", d))
		}
		if n < 0 {
			result = multierror.Append(result, fmt.Errorf("quota for %s must be >= 0, got %d", d, n))
		}
	}
	if o.Quotas.Total() <= 0 {
		result = multierror.Append(result, fmt.Errorf("quotas must request at least one item"))
	}
	if o.Sampling.Temperature < 0 || o.Sampling.Temperature > 1 {
		result = multierror.Append(result, fmt.Errorf("temperature must be within [0,1], got %g", o.Sampling.Temperature))
	}
	if o.Sampling.MaxTokens <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_tokens must be > 0, got %d", o.Sampling.MaxTokens))
	}
	if o.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("request_timeout must be > 0, got %s", o.RequestTimeout))
	}
	if o.Parallel && o.MaxWorkers < 1 {
		result = multierror.Append(result, fmt.Errorf("max_workers must be >= 1 when parallel, got %d", o.MaxWorkers))
	}
	if o.Limits.TransientMax < 0 {
		result = multierror.Append(result, fmt.Errorf("transient_max must be >= 0, got %d", o.Limits.TransientMax))
	}
	if o.Limits.ValidationMax < 0 {
		result = multierror.Append(result, fmt.Errorf("validation_max must be >= 0, got %d", o.Limits.ValidationMax))
	}
	if o.AttemptBudget < 0 {
		result = multierror.Append(result, fmt.Errorf("attempt_budget must be >= 0, got %d", o.AttemptBudget))
	}
	if o.UniqueQuestions && o.UniqueRounds < 0 {
		result = multierror.Append(result, fmt.Errorf("unique_rounds must be >= 0, got %d", o.UniqueRounds))
	}
	if o.SeedExamplesPerPrompt < 0 {
		result = multierror.Append(result, fmt.Errorf("seed_examples_per_prompt must be >= 0, got %d", o.SeedExamplesPerPrompt))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}
	return nil
}
