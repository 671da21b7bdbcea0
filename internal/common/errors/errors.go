// Package errors provides standardized error handling for the nudge engine's
// periodic tasks.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeEmailSendFailed        ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeEmailSendTimeout       ErrorCode = "EMAIL_SEND_TIMEOUT"
	ErrCodeRecipientInvalid       ErrorCode = "RECIPIENT_INVALID"
	ErrCodeDraftInvalidTransition ErrorCode = "DRAFT_INVALID_TRANSITION"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsRetryable reports whether err should be retried. Unknown error types are
// treated as retryable so transient provider failures default to the backoff
// path rather than a terminal failure.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return true
}

// ==========================
// 2. Error Constructors
// ==========================

// NewEmailSendFailedError creates a retryable provider error.
func NewEmailSendFailedError(recipient string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailSendFailed,
		Message:   "Email provider send failed",
		Details:   fmt.Sprintf("recipient: %s, error: %s", recipient, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmailSendTimeoutError creates a retryable timeout error.
func NewEmailSendTimeoutError(recipient string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmailSendTimeout,
		Message:   "Email provider send timed out",
		Details:   fmt.Sprintf("recipient: %s, timeout: %s", recipient, timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecipientInvalidError creates a non-retryable recipient error.
func NewRecipientInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecipientInvalid,
		Message:   "Recipient address rejected",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDraftTransitionError creates a non-retryable draft lifecycle error.
func NewDraftTransitionError(draftID, from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDraftInvalidTransition,
		Message:   "Email draft status transition not allowed",
		Details:   fmt.Sprintf("draftId: %s, from: %s, to: %s", draftID, from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
