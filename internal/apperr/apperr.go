// Package apperr defines the error taxonomy shared by the payment, submission
// and feed coordinators.
//
// Every failure a coordinator returns matches exactly one sentinel through
// errors.Is, so the presentation layer can decide between "retry", "fix the
// form" and "pay first" without inspecting messages.
package apperr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

var (
	// ErrWalletUnavailable is returned when no wallet capability was injected.
	ErrWalletUnavailable = errors.New("wallet unavailable")

	// ErrPaymentRejected covers a declined signature and a reverted transaction.
	ErrPaymentRejected = errors.New("payment rejected")

	// ErrPaymentAlreadyInProgress guards the single in-flight payment attempt.
	ErrPaymentAlreadyInProgress = errors.New("payment already in progress")

	// ErrPaymentRequired is returned when a submission lacks a confirmed, unused receipt.
	ErrPaymentRequired = errors.New("payment required")

	// ErrValidationFailed marks a missing or invalid draft field.
	ErrValidationFailed = errors.New("validation failed")

	// ErrNetworkFailure is transient and retryable.
	ErrNetworkFailure = errors.New("network failure")

	// ErrServerRejected is a 4xx/5xx answer from the backend.
	ErrServerRejected = errors.New("server rejected request")

	// ErrSubmissionInProgress guards the single in-flight create call.
	ErrSubmissionInProgress = errors.New("submission already in progress")
)

// ─── Structured errors ───────────────────────────────────────────────────────

// FieldError describes one invalid draft field.
type FieldError struct {
	Field string
	Msg   string
}

// ValidationError wraps the list of invalid fields of a draft.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidationFailed.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s", f.Field, f.Msg))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidationFailed) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// Invalid builds a single-field ValidationError.
func Invalid(field, msg string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Msg: msg}}}
}

// ServerError is a non-2xx response from the job backend.
type ServerError struct {
	Status int
	Msg    string
}

func (e *ServerError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Msg)
}

// Is lets errors.Is(err, ErrServerRejected) match.
func (e *ServerError) Is(target error) bool { return target == ErrServerRejected }

// ─── User-facing messages ────────────────────────────────────────────────────

// UserMessage converts any coordinator error into the string shown to the user.
// Unknown errors keep their text behind a generic prefix.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	var se *ServerError
	switch {
	case errors.Is(err, ErrWalletUnavailable):
		return "No wallet available. Install or unlock a wallet to pay the posting fee."
	case errors.Is(err, ErrPaymentAlreadyInProgress):
		return "A payment is already in progress."
	case errors.Is(err, ErrPaymentRequired):
		return "Please complete payment first."
	case errors.Is(err, ErrSubmissionInProgress):
		return "Your job is already being posted."
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrPaymentRejected):
		return "Payment failed: " + err.Error()
	case errors.As(err, &se):
		return "Request rejected: " + se.Error()
	case errors.Is(err, ErrNetworkFailure):
		return "Network error, please retry: " + err.Error()
	}
	return "Unexpected error: " + err.Error()
}
