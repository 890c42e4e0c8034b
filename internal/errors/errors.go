package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation = "E100"
	CodeBackend    = "E200"
	CodeExternal   = "E300"
	CodeState      = "E400"
	CodeRateLimit  = "E500"
	CodeAuth       = "E600"
)

const defaultUserMessage = "문제가 발생했습니다. 잠시 후 다시 시도해주세요."

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	Status      int
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// StatusCoder is implemented by errors that carry an HTTP status from the backend.
type StatusCoder interface {
	StatusCode() int
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: "입력값을 확인해주세요.",
		Severity:    SeverityLow,
		Retryable:   false,
		Status:      http.StatusUnprocessableEntity,
	}
}

func NewBackendError(status int, cause error) *AppError {
	retryable := status == 0 || status >= http.StatusInternalServerError
	severity := SeverityMedium
	if retryable {
		severity = SeverityHigh
	}

	return &AppError{
		Code:        CodeBackend,
		Message:     fmt.Sprintf("Backend error: status %d", status),
		UserMessage: "서비스가 일시적으로 불안정합니다. 잠시 후 다시 시도해주세요.",
		Severity:    severity,
		Retryable:   retryable,
		Status:      status,
		cause:       cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:        CodeExternal,
		Message:     fmt.Sprintf("External API error: %s", apiName),
		UserMessage: "외부 서비스에 연결할 수 없습니다.",
		Severity:    SeverityMedium,
		Retryable:   true,
		Status:      http.StatusBadGateway,
		cause:       cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        CodeState,
		Message:     msg,
		UserMessage: "지금은 처리할 수 없는 요청입니다.",
		Severity:    SeverityMedium,
		Retryable:   false,
		Status:      http.StatusConflict,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("요청이 너무 많습니다. %d초 후에 다시 시도해주세요.", retryAfter),
		Severity:    SeverityLow,
		Retryable:   false,
		Status:      http.StatusTooManyRequests,
	}
}

func NewAuthError(status int, cause error) *AppError {
	msg := "로그인이 필요합니다."
	if status == http.StatusForbidden {
		msg = "접근 권한이 없습니다."
	}

	return &AppError{
		Code:        CodeAuth,
		Message:     fmt.Sprintf("Authorization failed: status %d", status),
		UserMessage: msg,
		Severity:    SeverityLow,
		Retryable:   false,
		Status:      status,
		cause:       cause,
	}
}

// IsAuth reports whether err is an authorization failure (401/403).
func IsAuth(err error) bool {
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// StatusOf extracts the backend HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil && appErr.Status != 0 && appErr.Code != CodeValidation {
		return appErr.Status
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}

	return 0
}

// Classify maps any error onto the application taxonomy.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewBackendError(0, err)
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.StatusCode()
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return NewAuthError(status, err)
		case status == http.StatusTooManyRequests:
			return NewRateLimitError(60)
		default:
			return NewBackendError(status, err)
		}
	}

	return NewBackendError(0, err)
}

// IsRetryable reports whether a retry has a chance of succeeding.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	return Classify(err).Retryable
}
