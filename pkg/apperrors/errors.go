package apperrors

import "errors"

var (
	ErrConfiguration          = errors.New("configuration error")
	ErrInvalidResponse        = errors.New("invalid generation response")
	ErrValidationFailed       = errors.New("sql validation failed")
	ErrAttemptBudgetExhausted = errors.New("attempt budget exhausted")
	ErrDuplicateQuestion      = errors.New("duplicate question")
	ErrNotDispatched          = errors.New("run aborted before slot was dispatched")
)
