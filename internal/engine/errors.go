// Package engine holds the provider-agnostic chat types, error classification,
// retry policy and token estimation shared by the model capability.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RetryClass indicates whether an error should be retried.
type RetryClass string

const (
	RetryClassRetryable    RetryClass = "retryable"     // Definitely retry
	RetryClassMaybe        RetryClass = "maybe"         // Retry with caution (limited attempts)
	RetryClassNonRetryable RetryClass = "non_retryable" // Never retry
)

// EngineError wraps a provider error with classification metadata.
type EngineError struct {
	Err         error
	Class       RetryClass
	HTTPStatus  int    // HTTP status code if known
	RetryAfter  string // Retry-After value if present
	IsRateLimit bool
	IsAuth      bool
	IsNetwork   bool
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("engine error: %s", e.Class)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// errorPattern maps a set of lowercase substrings to a retry class.
// Patterns are checked in order; the first match wins.
type errorPattern struct {
	class  RetryClass
	needle []string
}

var llmErrorPatterns = []errorPattern{
	{RetryClassRetryable, []string{"429", "rate limit", "too many requests"}},
	{RetryClassRetryable, []string{"500", "502", "503", "504", "internal server error", "bad gateway", "service unavailable", "gateway timeout"}},
	{RetryClassRetryable, []string{"timeout", "connection reset", "connection refused", "no such host", "temporary failure", "eof"}},
	{RetryClassMaybe, []string{"deadline exceeded"}},
	{RetryClassNonRetryable, []string{"context length", "maximum context", "token limit"}},
	{RetryClassNonRetryable, []string{"401", "403", "unauthorized", "forbidden", "invalid api key"}},
	{RetryClassNonRetryable, []string{"400", "bad request", "invalid request", "model not found"}},
}

// ClassifyLLMError classifies an error from an LLM provider call.
// A local model server that is still loading usually answers with 503 or
// refuses connections, both of which are retried.
func ClassifyLLMError(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Class
	}

	if errors.Is(err, context.Canceled) {
		return RetryClassNonRetryable
	}

	msg := strings.ToLower(err.Error())
	for _, p := range llmErrorPatterns {
		for _, n := range p.needle {
			if strings.Contains(msg, n) {
				return p.class
			}
		}
	}
	return RetryClassNonRetryable
}

// WrapLLMError wraps a provider error with classification metadata.
func WrapLLMError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}
	return &EngineError{
		Err:         err,
		Class:       ClassifyLLMError(err),
		HTTPStatus:  httpStatus,
		RetryAfter:  retryAfter,
		IsRateLimit: httpStatus == http.StatusTooManyRequests,
		IsAuth:      httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden,
		IsNetwork:   httpStatus == 0 || httpStatus >= 500,
	}
}

// ExtractRetryAfter returns the Retry-After hint carried by err, or 0.
func ExtractRetryAfter(err error) time.Duration {
	var engineErr *EngineError
	if !errors.As(err, &engineErr) || engineErr.RetryAfter == "" {
		return 0
	}
	if seconds, convErr := strconv.Atoi(strings.TrimSpace(engineErr.RetryAfter)); convErr == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, parseErr := time.Parse(time.RFC1123, engineErr.RetryAfter); parseErr == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// StatusFromError guesses the HTTP status of an SDK error from its message.
// Both SDKs format errors as text that embeds the status code.
func StatusFromError(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	msg := err.Error()
	status := 0
	for _, code := range []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusBadRequest,
		http.StatusNotFound,
	} {
		if strings.Contains(msg, strconv.Itoa(code)) {
			status = code
			break
		}
	}

	retryAfter := ""
	lower := strings.ToLower(msg)
	for _, marker := range []string{"retry-after", "retry after"} {
		if idx := strings.Index(lower, marker); idx != -1 {
			fields := strings.Fields(strings.TrimLeft(msg[idx+len(marker):], ": "))
			if len(fields) > 0 {
				retryAfter = fields[0]
			}
			break
		}
	}
	return status, retryAfter
}

// RetryExhaustedError indicates that all retry attempts have been exhausted.
type RetryExhaustedError struct {
	Err         error
	Attempts    int
	MaxAttempts int
	IsGuarded   bool // "maybe" class error with limited retries
}

func (e *RetryExhaustedError) Error() string {
	if e.IsGuarded {
		return fmt.Sprintf("guarded retries exhausted after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// IsRetryExhausted checks if an error is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var retryExhausted *RetryExhaustedError
	return errors.As(err, &retryExhausted)
}
