// Package errors defines the canonical error taxonomy for ai-proxy.
// Every error that crosses a public boundary is an *Error; the Kind tells
// callers how to react (surface to the user, back off, fail over) without
// string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error for programmatic handling.
type Kind string

const (
	// KindValidation marks caller mistakes: bad routing patterns,
	// malformed keys, unsupported operations.
	KindValidation Kind = "validation"
	// KindRateLimited maps HTTP 429 from a provider.
	KindRateLimited Kind = "rate_limited"
	// KindBudgetExceeded is reserved for a budget enforcement layer;
	// nothing in this module emits it.
	KindBudgetExceeded Kind = "budget_exceeded"
	// KindProviderUnavailable covers transport failures and HTTP 5xx.
	KindProviderUnavailable Kind = "provider_unavailable"
	// KindProviderError covers structured upstream failures: non-retryable
	// statuses and undecodable success bodies.
	KindProviderError Kind = "provider_error"
	// KindIO wraps filesystem and similar local failures.
	KindIO Kind = "io"
	// KindOther wraps everything else.
	KindOther Kind = "other"
)

// Error is the canonical error. Provider, Code, RetryAfter and Remaining
// are populated per Kind; unset fields are zero.
type Error struct {
	Kind    Kind
	Message string

	// Provider names the upstream involved, when one was.
	Provider string
	// Code is the provider's error code or HTTP status, for ProviderError.
	Code string
	// RetryAfter is the parsed numeric Retry-After in seconds, for
	// RateLimited. Nil when the header was absent or not numeric.
	RetryAfter *uint64
	// Remaining is the budget left, for BudgetExceeded.
	Remaining uint32

	err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindValidation:
		return fmt.Sprintf("validation failed: %s", e.Message)
	case KindRateLimited:
		return fmt.Sprintf("rate limited by provider %s", e.Provider)
	case KindBudgetExceeded:
		return fmt.Sprintf("budget exceeded: remaining %d", e.Remaining)
	case KindProviderUnavailable:
		return fmt.Sprintf("provider unavailable: %s", e.Provider)
	case KindProviderError:
		return fmt.Sprintf("upstream error from %s: %s %s", e.Provider, e.Code, e.Message)
	default:
		if e.err != nil {
			return e.err.Error()
		}
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.err }

// Validation builds a KindValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// RateLimited builds a KindRateLimited error. retryAfter is the numeric
// Retry-After in seconds, or nil.
func RateLimited(provider string, retryAfter *uint64) *Error {
	return &Error{Kind: KindRateLimited, Provider: provider, RetryAfter: retryAfter}
}

// BudgetExceeded builds a KindBudgetExceeded error.
func BudgetExceeded(remaining uint32) *Error {
	return &Error{Kind: KindBudgetExceeded, Remaining: remaining}
}

// ProviderUnavailable builds a KindProviderUnavailable error.
func ProviderUnavailable(provider string) *Error {
	return &Error{Kind: KindProviderUnavailable, Provider: provider}
}

// ProviderFailure builds a KindProviderError error.
func ProviderFailure(provider, code, message string) *Error {
	return &Error{Kind: KindProviderError, Provider: provider, Code: code, Message: message}
}

// IO wraps a local I/O error.
func IO(err error) *Error {
	return &Error{Kind: KindIO, Message: err.Error(), err: err}
}

// Other wraps an uncategorized error.
func Other(err error) *Error {
	return &Error{Kind: KindOther, Message: err.Error(), err: err}
}

// KindOf returns the Kind of err, or KindOther for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// As unwraps err into *Error when possible.
func As(err error) (*Error, bool) {
	var e *Error
	ok := stderrors.As(err, &e)
	return e, ok
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }
