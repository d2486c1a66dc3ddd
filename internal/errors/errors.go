// Package errors provides centralized error definitions and error handling
// utilities for the CodeLooper supervision engine. It defines domain-specific
// sentinel errors, semantic error types with context, and classification
// helpers used by the error-propagation policy:
//
//   - Element-not-found is an expected, non-fatal outcome that drives
//     fallback discovery or a no-op cycle. It is never escalated.
//   - Query errors (backend/transport failures, including timeouts) are
//     retryable; sustained streaks escalate to a window state change.
//   - Discovery exhaustion is logged and retried; sustained streaks park
//     the window as unrecoverable.
//   - Rule-limit-reached is not an error at all; it is surfaced as an event.
//
// Nothing in the engine produces a process-fatal error under normal
// operation.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Element and discovery sentinel errors.
var (
	// ErrElementNotFound indicates that a locator matched no element.
	// This is an expected outcome, not a backend failure.
	ErrElementNotFound = New("element not found")
	// ErrQueryFailed indicates a backend/transport failure while querying
	// the accessibility tree (including timeouts).
	ErrQueryFailed = New("element query failed")
	// ErrDiscoveryExhausted indicates that every heuristic strategy for an
	// element type failed to produce a locator.
	ErrDiscoveryExhausted = New("discovery exhausted")
	// ErrInvalidLocator indicates a locator that fails construction-time
	// validation (for example, zero criteria).
	ErrInvalidLocator = New("invalid locator")
	// ErrActionFailed indicates the backend rejected an action invocation.
	ErrActionFailed = New("action invocation failed")
)

// Supervision sentinel errors.
var (
	// ErrAppNotFound indicates that a tracked application could not be found.
	ErrAppNotFound = New("tracked application not found")
	// ErrWindowNotFound indicates that a tracked window could not be found.
	ErrWindowNotFound = New("tracked window not found")
)

// Rule sentinel errors.
var (
	// ErrRuleNotFound indicates that no rule is registered under a name.
	// A rule counter hitting its ceiling is not an error; the rules
	// surface it as an event.
	ErrRuleNotFound = New("rule not found")
)

// General sentinel errors.
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Severity
// -----------------------------------------------------------------------------

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("window", "724-0-af31")
//	fmt.Println(err) // "window '724-0-af31' not found"
type NotFoundError struct {
	ResourceType string
	ResourceID   string
	cause        error
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Unwrap returns the underlying error.
func (e *NotFoundError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	Field string
	Value any
	msg   string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{msg: message}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error [field=%s]: %s", e.Field, e.msg)
	}
	return fmt.Sprintf("validation error: %s", e.msg)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return errors.Is(target, ErrInvalidInput)
}

// TimeoutError represents an operation that timed out.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	cause     error
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return errors.Is(target, ErrTimeout)
}

// QueryError represents a backend/transport failure while querying the
// accessibility tree. A QueryError is always retryable on the next tick;
// a sustained streak of QueryErrors for the same window escalates to a
// window state change (handled by the supervisor, not here).
type QueryError struct {
	PID       int32
	Operation string
	cause     error
}

// NewQueryError creates a new QueryError.
func NewQueryError(operation string, pid int32, cause error) *QueryError {
	return &QueryError{Operation: operation, PID: pid, cause: cause}
}

// Error returns the formatted error message.
func (e *QueryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("query error [pid=%d, op=%s]: %v", e.PID, e.Operation, e.cause)
	}
	return fmt.Sprintf("query error [pid=%d, op=%s]", e.PID, e.Operation)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error { return e.cause }

// Is checks if this error matches the target.
func (e *QueryError) Is(target error) bool {
	if _, ok := target.(*QueryError); ok {
		return true
	}
	if errors.Is(target, ErrQueryFailed) {
		return true
	}
	return e.cause != nil && errors.Is(e.cause, target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsNotFound returns true if the error represents an absent element or
// resource. Not-found is an expected outcome and must never be escalated
// as a failure.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *NotFoundError
	return Is(err, ErrElementNotFound) || As(err, &nf)
}

// IsQueryError returns true if the error represents a backend/transport
// failure (including timeouts). Query errors are retried on the next tick.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var qe *QueryError
	var te *TimeoutError
	return As(err, &qe) || As(err, &te) || Is(err, ErrQueryFailed) || Is(err, ErrTimeout)
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on a later tick.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return IsQueryError(err) || Is(err, ErrDiscoveryExhausted)
}

// GetSeverity returns the severity level of the error. Not-found conditions
// are debug-level noise; transient query failures are warnings; everything
// else is an error.
func GetSeverity(err error) Severity {
	switch {
	case err == nil:
		return SeverityDebug
	case IsNotFound(err):
		return SeverityDebug
	case IsQueryError(err), Is(err, ErrDiscoveryExhausted):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
