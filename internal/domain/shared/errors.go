// Package shared contains error kinds and small value types used by every
// domain package. It has no dependencies outside the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Callers match with errors.Is; delivery surfaces map
// them onto responses (HTTP status, bot apology).
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError carries the domain and operation where a failure happened.
type DomainError struct {
	Domain  string // "student", "lesson", "auth", "generation", "speech"
	Op      string
	Kind    error // one of the base kinds above
	Message string
	Err     error // cause, optional
}

// Error implements error.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap exposes the cause, falling back to the kind.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Domain == t.Domain && e.Op == t.Op && e.Message == t.Message
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError creates a DomainError without cause.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError attaches domain context to err.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// Auth errors
var (
	ErrInvalidToken     = NewDomainError("auth", "Verify", ErrUnauthorized, "invalid or expired token")
	ErrInvalidSignature = NewDomainError("auth", "VerifyWidget", ErrUnauthorized, "invalid Telegram signature")
	ErrAuthDataExpired  = NewDomainError("auth", "VerifyWidget", ErrUnauthorized, "authentication data expired")
	ErrInvalidAPIKey    = NewDomainError("auth", "VerifyAPIKey", ErrUnauthorized, "invalid API key")
)

// External collaborator errors
var (
	ErrGenerationFailed    = NewDomainError("generation", "Reply", ErrExternalService, "tutor reply generation failed")
	ErrEvaluationFailed    = NewDomainError("generation", "Evaluate", ErrExternalService, "conversation evaluation failed")
	ErrTranscriptionFailed = NewDomainError("speech", "Transcribe", ErrExternalService, "speech transcription failed")
	ErrSynthesisFailed     = NewDomainError("speech", "Synthesize", ErrExternalService, "speech synthesis failed")
	ErrTelegramAPIFailed   = NewDomainError("telegram", "Send", ErrExternalService, "Telegram API request failed")
)

// IsNotFound reports a missing entity.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsAlreadyExists reports a uniqueness conflict.
func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsUnauthorized reports an authentication failure.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsForbidden reports an ownership/permission failure.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsValidation reports bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsExternalService reports a failure of a remote collaborator.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
