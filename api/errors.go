package api

import (
	"errors"
	"fmt"
)

// Error codes returned to API callers. Provider-reported codes are relayed
// as-is and never rewritten into one of these.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeStatusCheckFailed    = "STATUS_CHECK_FAILED"
	CodeMissingBindingCookie = "MISSING_BINDING_COOKIE"
	CodeTimeout              = "TIMEOUT"
	CodeUserDenied           = "USER_DENIED"
	CodeUnexpectedError      = "UNEXPECTED_ERROR"
)

// ErrorResponse is the JSON error envelope for every non-2xx answer.
type ErrorResponse struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	RequestID string         `json:"requestId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// ProviderError is a structured failure reported by the identity provider.
// It carries the provider's own code, HTTP status and request id so callers
// can relay it transparently.
type ProviderError struct {
	Code      string         `json:"error"`
	Message   string         `json:"message"`
	Status    int            `json:"status,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %s (status %d): %s", e.Code, e.Status, e.Message)
}

// AsProviderError unwraps err into a ProviderError if one is present.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// TransientError marks a network-level failure eligible for bounded silent
// retry. Provider-reported failures are never transient.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
