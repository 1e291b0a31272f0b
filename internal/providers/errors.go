package providers

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"

	"github.com/pantryloop/pantryloop-backend/pkg/enums"
)

// Stable failure codes for provider calls. The reliability wrapper retries
// only the codes in DefaultRetryCodes; everything else fails the attempt
// outright.
const (
	CodeTimeout        = "TIMEOUT"
	CodeUnavailable    = "UNAVAILABLE"
	CodeNoStores       = "NO_STORES"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeNetworkError   = "NETWORK_ERROR"
	CodeUpstream5xx    = "UPSTREAM_5XX"
)

// DefaultRetryCodes whitelists the transient failure classes. 4xx-class
// codes never appear here.
func DefaultRetryCodes() []string {
	return []string{CodeNetworkError, CodeUpstream5xx, CodeTimeout}
}

// Error is the typed failure for every provider call.
type Error struct {
	providerID enums.ProviderID
	code       string
	retryable  bool
	message    string
	details    any
	cause      error
}

// NewError builds a provider error with an explicit code and retry hint.
func NewError(providerID enums.ProviderID, code, message string, retryable bool) *Error {
	return &Error{
		providerID: providerID,
		code:       code,
		message:    message,
		retryable:  retryable,
	}
}

// NewTimeoutError marks a call that exceeded its configured budget. Always
// retryable.
func NewTimeoutError(providerID enums.ProviderID, timeoutMs int) *Error {
	return NewError(providerID, CodeTimeout, fmt.Sprintf("quote timed out after %dms", timeoutMs), true)
}

// NewUnavailableError marks a provider that answered but cannot serve the
// call right now. Retryable.
func NewUnavailableError(providerID enums.ProviderID, message string) *Error {
	return NewError(providerID, CodeUnavailable, message, true)
}

// WrapError attaches an underlying cause.
func WrapError(providerID enums.ProviderID, code string, err error, message string, retryable bool) *Error {
	e := NewError(providerID, code, message, retryable)
	e.cause = err
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %s", e.providerID, e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func (e *Error) ProviderID() enums.ProviderID {
	if e == nil {
		return ""
	}
	return e.providerID
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// ErrorCode implements reliability.ClassifiedError.
func (e *Error) ErrorCode() string {
	if e == nil {
		return ""
	}
	return e.code
}

// IsRetryable implements reliability.ClassifiedError.
func (e *Error) IsRetryable() bool {
	if e == nil {
		return false
	}
	return e.retryable
}

// ErrorDetails implements reliability.Detailer.
func (e *Error) ErrorDetails() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// AsError unwraps err to the typed provider error, or nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// classifyStatus maps an upstream HTTP status onto the failure taxonomy.
// 4xx is the caller's fault and never retried; 5xx is the provider's and is.
func classifyStatus(providerID enums.ProviderID, status int, op string) *Error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(providerID, CodeUnauthorized, fmt.Sprintf("%s rejected credentials (status %d)", op, status), false)
	case status == http.StatusServiceUnavailable:
		return NewUnavailableError(providerID, fmt.Sprintf("%s unavailable (status %d)", op, status))
	case status >= 500:
		return NewError(providerID, CodeUpstream5xx, fmt.Sprintf("%s failed upstream (status %d)", op, status), true)
	default:
		return NewError(providerID, CodeInvalidRequest, fmt.Sprintf("%s rejected request (status %d)", op, status), false)
	}
}

// classifyTransport maps a transport-level failure. Context deadlines become
// timeouts so the caller sees the same code the reliability wrapper uses.
func classifyTransport(providerID enums.ProviderID, err error, op string) *Error {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return WrapError(providerID, CodeTimeout, err, fmt.Sprintf("%s deadline exceeded", op), true)
	}
	return WrapError(providerID, CodeNetworkError, err, fmt.Sprintf("%s transport failure", op), true)
}
