package models

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common errors used throughout the application
var (
	ErrEventNotFound       = errors.New("event not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrUnknownProduct      = errors.New("unknown product")
	ErrInsufficientStock   = errors.New("insufficient ticket stock")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateEntry      = errors.New("duplicate entry")
	ErrEmptyCart           = errors.New("no tickets selected")
	ErrAttendeeMismatch    = errors.New("attendee details do not match the selected tickets")
	ErrSlotOutOfRange      = errors.New("attendee slot out of range")
	ErrAttendeesIncomplete = errors.New("attendee details are incomplete")
	ErrTermsNotAccepted    = errors.New("terms must be accepted before payment")
	ErrSubmissionInFlight  = errors.New("a submission is already in progress")
	ErrSubmissionAbandoned = errors.New("submission result arrived after the checkout was closed")
)

// ErrorKind is the small closed taxonomy backend failures are classified into
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "UNAUTHENTICATED"
	KindForbidden       ErrorKind = "FORBIDDEN"
	KindNotFound        ErrorKind = "NOT_FOUND"
	KindValidation      ErrorKind = "VALIDATION"
	KindConflict        ErrorKind = "CONFLICT"
	KindNetwork         ErrorKind = "NETWORK"
	KindUnknown         ErrorKind = "UNKNOWN"
)

// ParseErrorKind maps a wire code onto the taxonomy, defaulting to UNKNOWN
func ParseErrorKind(code string) ErrorKind {
	switch ErrorKind(code) {
	case KindUnauthenticated, KindForbidden, KindNotFound, KindValidation,
		KindConflict, KindNetwork, KindUnknown:
		return ErrorKind(code)
	}
	return KindUnknown
}

// Retryable reports whether the same request may succeed if simply repeated
func (k ErrorKind) Retryable() bool {
	return k == KindNetwork
}

// BackendError is a classified failure returned by a backend call
type BackendError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError creates a classified backend error
func NewBackendError(kind ErrorKind, message string) *BackendError {
	return &BackendError{Kind: kind, Message: message}
}

// NetworkErrorMessage is shown when the backend could not be reached
const NetworkErrorMessage = "We could not reach the ticketing service. Please check your connection and try again."

// ClassifyError converts an error returned by a backend call into an
// ErrorResult. Classified backend errors keep their kind and message; timeouts
// and transport failures are NETWORK; anything else is UNKNOWN.
func ClassifyError(err error) ErrorResult {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		message := backendErr.Message
		if message == "" {
			message = GenericSubmissionError
		}
		return ErrorResult{Kind: backendErr.Kind, Message: message}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return ErrorResult{Kind: KindNetwork, Message: NetworkErrorMessage}
	}

	return ErrorResult{Kind: KindUnknown, Message: GenericSubmissionError}
}
