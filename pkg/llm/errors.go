package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType classifies back-end failures.
type ErrorType string

const (
	// Transient: worth retrying after backoff.
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeRateLimited ErrorType = "rate_limited"
	ErrorTypeTimeout     ErrorType = "timeout"

	// The back-end answered but the output is unusable.
	ErrorTypeInvalidResponse ErrorType = "invalid_response"

	// Configuration problems; retrying will not help.
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int    // HTTP status code if applicable
	Model      string // Model name if known
	Endpoint   string // Endpoint URL if known; only the host is printed
}

// Error implements the error interface.
func (e *Error) Error() string {
	parts := []string{string(e.Type)}

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}
	if e.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", e.Model))
	}
	if host := endpointHost(e.Endpoint); host != "" {
		parts = append(parts, fmt.Sprintf("endpoint=%s", host))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

// NewError creates a new structured LLM error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// annotated returns e with empty Model and Endpoint filled in. e may be
// shared between calls, so a copy is made whenever a field changes.
func (e *Error) annotated(model, endpoint string) *Error {
	if (e.Model != "" || model == "") && (e.Endpoint != "" || endpoint == "") {
		return e
	}
	cp := *e
	if cp.Model == "" {
		cp.Model = model
	}
	if cp.Endpoint == "" {
		cp.Endpoint = endpoint
	}
	return &cp
}

// NewInvalidResponseError reports a response that could not be used.
func NewInvalidResponseError(message string, cause error) *Error {
	return NewError(ErrorTypeInvalidResponse, message, true, cause)
}

// NewTimeoutError reports a call that exceeded its deadline.
func NewTimeoutError(cause error) *Error {
	return NewError(ErrorTypeTimeout, "request timeout", true, cause)
}

// ClassifyError categorizes an error and returns a structured Error.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorTypeUnknown, "request canceled", false, err)
	}

	if code := statusCodeOf(err); code > 0 {
		if classified := classifyStatus(code, err); classified != nil {
			return classified
		}
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504, 529} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	withStatus := func(e *Error) *Error {
		e.StatusCode = statusCode
		return e
	}

	switch {
	case strings.Contains(errStr, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") || strings.Contains(lower, "authentication_error"):
		return withStatus(NewError(ErrorTypeAuth, "authentication failed", false, err))

	case strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")):
		return withStatus(NewError(ErrorTypeModel, "model not found", false, err))

	case strings.Contains(errStr, "404"):
		return withStatus(NewError(ErrorTypeEndpoint, "endpoint not found", false, err))

	case strings.Contains(errStr, "429") || strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit") || strings.Contains(lower, "too many requests"):
		return withStatus(NewError(ErrorTypeRateLimited, "rate limited", true, err))

	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "deadline exceeded"):
		return withStatus(NewTimeoutError(err))

	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connection reset") || strings.Contains(lower, "eof"):
		return withStatus(NewError(ErrorTypeUnavailable, "connection failed", true, err))

	case strings.Contains(lower, "overloaded") || strings.Contains(lower, "cuda error") ||
		strings.Contains(lower, "gpu error") || strings.Contains(lower, "out of memory"):
		return withStatus(NewError(ErrorTypeUnavailable, "server overloaded", true, err))

	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "529"):
		return withStatus(NewError(ErrorTypeUnavailable, "server error", true, err))
	}

	return withStatus(NewError(ErrorTypeUnknown, "llm error", false, err))
}

// statusCodeOf extracts an HTTP status from typed go-openai errors.
func statusCodeOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classifyStatus(code int, err error) *Error {
	var e *Error
	switch {
	case code == 401 || code == 403:
		e = NewError(ErrorTypeAuth, "authentication failed", false, err)
	case code == 404:
		e = NewError(ErrorTypeEndpoint, "endpoint or model not found", false, err)
	case code == 408:
		e = NewTimeoutError(err)
	case code == 429:
		e = NewError(ErrorTypeRateLimited, "rate limited", true, err)
	case code >= 500:
		e = NewError(ErrorTypeUnavailable, "server error", true, err)
	default:
		return nil
	}
	e.StatusCode = code
	return e
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// IsTransient reports whether the error type is expected to clear on retry.
func (t ErrorType) IsTransient() bool {
	switch t {
	case ErrorTypeUnavailable, ErrorTypeRateLimited, ErrorTypeTimeout:
		return true
	}
	return false
}
