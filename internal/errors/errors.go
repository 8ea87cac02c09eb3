// Package errors provides structured error types for the DevStory engine.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the generation pipeline and its collaborators.
var (
	// ErrInvalidRequest means required input was missing. No record is
	// created for an invalid request; this is the only failure surfaced
	// synchronously to the caller.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrGenerationFailure means the AI invocation failed. The record is
	// moved to the error state; the cause is logged, not persisted.
	ErrGenerationFailure = errors.New("generation failed")

	// ErrMalformedResponse means the model response could not be decoded
	// after the single normalization retry.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrRewardDispatch means the gamification collaborator rejected an
	// XP award. Best-effort only; never surfaced to the caller.
	ErrRewardDispatch = errors.New("reward dispatch failed")

	ErrNotFound    = errors.New("resource not found")
	ErrTimeout     = errors.New("operation timed out")
	ErrRateLimit   = errors.New("rate limit exceeded")
	ErrUnavailable = errors.New("service unavailable")
)

// APIError represents an error from an external API call (the generative
// service or the reward collaborator).
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
