package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/cache"
	"github.com/ekaya-inc/ekaya-datagen/pkg/llm"
	"github.com/ekaya-inc/ekaya-datagen/pkg/logging"
	"github.com/ekaya-inc/ekaya-datagen/pkg/metrics"
	"github.com/ekaya-inc/ekaya-datagen/pkg/retry"
)

// backendCaller sends prompts to the port through the result cache, so equal
// prompts under equal parameters reach the back-end once.
type backendCaller struct {
	gen          llm.TextGenerator
	cache        *cache.ResultCache
	params       llm.GenerationParams
	timeout      time.Duration
	schemaDigest string
	metrics      *metrics.Metrics
	logger       *zap.Logger

	calls  atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
}

func (b *backendCaller) complete(ctx context.Context, kind, systemMessage, prompt string) (string, error) {
	fp := cache.Fingerprint(cache.FingerprintInput{
		SchemaDigest:  b.schemaDigest,
		Model:         b.gen.ModelID(),
		SystemMessage: systemMessage,
		Prompt:        prompt,
		Temperature:   b.params.Temperature,
		MaxTokens:     b.params.MaxTokens,
		StopSequences: b.params.StopSequences,
	})

	text, hit, err := b.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (string, error) {
		b.calls.Add(1)
		start := time.Now()
		out, err := llm.GenerateWithTimeout(ctx, b.gen, prompt, systemMessage, b.params, b.timeout)
		b.metrics.ObserveBackendCall(kind, time.Since(start), err)
		if err != nil {
			b.logger.Debug("Back-end call failed",
				zap.String("kind", kind),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("error", logging.SanitizeError(err)))
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", llm.NewInvalidResponseError("empty response", nil)
		}
		return out, nil
	})
	if err != nil {
		return "", err
	}

	if hit {
		b.hits.Add(1)
	} else {
		b.misses.Add(1)
	}
	b.metrics.ObserveCacheLookup(hit)
	return text, nil
}

// classifyFailure maps an attempt error onto the retry taxonomy. Back-end
// errors that no retry can fix (bad key, unknown model, wrong endpoint) are
// fatal and come back wrapped in apperrors.ErrConfiguration.
func classifyFailure(err error) (retry.Kind, error) {
	switch {
	case errors.Is(err, apperrors.ErrConfiguration):
		return retry.KindFatal, err
	case errors.Is(err, apperrors.ErrInvalidResponse):
		return retry.KindInvalidResponse, err
	case errors.Is(err, apperrors.ErrValidationFailed):
		return retry.KindValidationFailed, err
	}

	e := llm.ClassifyError(err)
	switch e.Type {
	case llm.ErrorTypeInvalidResponse:
		return retry.KindInvalidResponse, err
	case llm.ErrorTypeAuth, llm.ErrorTypeModel, llm.ErrorTypeEndpoint:
		return retry.KindFatal, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	default:
		// unknown failures are bounded by transient_max like outages
		return retry.KindTransient, err
	}
}

func isInvalidResponse(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidResponse) || llm.GetErrorType(err) == llm.ErrorTypeInvalidResponse
}
