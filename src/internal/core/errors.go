// FILE: src/internal/core/errors.go
package core

import (
	"fmt"
)

// Code is a machine-readable error classification
type Code string

const (
	CodeValidationFailure         Code = "validation_failure"
	CodeDuplicateRecord           Code = "duplicate_record"
	CodeRateLimitExceeded         Code = "rate_limit_exceeded"
	CodePayloadTooLarge           Code = "payload_too_large"
	CodeTooManyRecords            Code = "too_many_records"
	CodeSubscriptionLimitExceeded Code = "subscription_limit_exceeded"
	CodeSubscriptionNotFound      Code = "subscription_not_found"
	CodeAuthRequired              Code = "auth_required"
	CodeAccessDenied              Code = "access_denied"
	CodeConnectionStale           Code = "connection_stale"
	CodeInvalidRequest            Code = "invalid_request"
)

// Error is the externally visible structured error. Per-record validation
// failures are reported as Rejection values instead; Error covers batch- and
// connection-level failures.
type Error struct {
	Code          Code   `json:"code"`
	Message       string `json:"message"`
	Field         string `json:"field,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	RetryAfterMs  int64  `json:"retry_after_ms,omitempty"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a structured error with the given code
func NewError(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// RateLimited creates a rate-limit error carrying a retry-after hint
func RateLimited(retryAfterMs int64) *Error {
	return &Error{
		Code:         CodeRateLimitExceeded,
		Message:      "rate limit exceeded",
		RetryAfterMs: retryAfterMs,
	}
}
