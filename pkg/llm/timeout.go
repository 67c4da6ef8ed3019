package llm

import (
	"context"
	"time"
)

// DefaultRequestTimeout bounds calls made without an explicit timeout.
const DefaultRequestTimeout = 60 * time.Second

// GenerateWithTimeout bounds a single Generate call. The call runs on its own
// goroutine so a back-end that ignores ctx still cannot block the caller past
// the deadline; such a call fails with ErrorTypeTimeout and its eventual
// result is discarded. A non-positive timeout means DefaultRequestTimeout.
func GenerateWithTimeout(
	ctx context.Context,
	gen TextGenerator,
	prompt string,
	systemMessage string,
	params GenerationParams,
	timeout time.Duration,
) (string, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		text, err := gen.Generate(callCtx, prompt, systemMessage, params)
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return "", ClassifyError(out.err).annotated(gen.ModelID(), "")
		}
		return out.text, nil
	case <-callCtx.Done():
		return "", ClassifyError(callCtx.Err()).annotated(gen.ModelID(), "")
	}
}

