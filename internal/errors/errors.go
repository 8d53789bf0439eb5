// Package errors provides centralized error definitions and error handling
// utilities for the OrchFlow concurrency core. It defines domain-specific
// errors, semantic error types, error constructors with context wrapping,
// and error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - LockError: errors related to resource lock management
//   - BreakerError: errors related to circuit breaker execution
//
// Semantic errors represent common error conditions:
//   - TimeoutError: operation exceeded its deadline
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewLockError("acquire failed", errors.ErrResourceNotRegistered)
//
//	// With context wrapping
//	err := errors.NewBreakerError("execute rejected", errors.ErrCircuitOpen).WithBreaker("spawn")
//
// Checking errors:
//
//	// Check for specific sentinel errors
//	if errors.Is(err, errors.ErrCircuitOpen) { ... }
//
//	// Check for error types
//	var lockErr *errors.LockError
//	if errors.As(err, &lockErr) { ... }
//
//	// Use classification helpers
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// The taxonomy follows the core's failure model: programmer errors
// (unregistered resource, duplicate breaker) are never retryable; contention
// outcomes (wait timeout, deadlock eviction) are retryable by nature;
// isolation failures (circuit open) are retryable once the breaker heals.
package errors

import (
	"errors"
	"fmt"
	"strings"
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
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
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
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Lock-related sentinel errors
var (
	// ErrResourceNotRegistered indicates a lock request against a resource the
	// manager has never seen. This is a programmer error, never queued.
	ErrResourceNotRegistered = New("resource not registered")
	// ErrLockHeld indicates the owner already holds a lock on this resource.
	// A second request from the same owner is rejected, never queued.
	ErrLockHeld = New("owner already holds a lock on this resource")
	// ErrWaitTimeout indicates a queued lock request gave up waiting.
	ErrWaitTimeout = New("lock wait timed out")
	// ErrEvicted indicates a request or lock was removed as a deadlock victim.
	ErrEvicted = New("evicted as deadlock victim")
	// ErrManagerStopped indicates the lock manager has shut down.
	ErrManagerStopped = New("lock manager stopped")
)

// Breaker-related sentinel errors
var (
	// ErrCircuitOpen indicates the breaker rejected the call without invoking
	// the operation. Distinct from operation failure: "we didn't try".
	ErrCircuitOpen = New("circuit breaker is open")
	// ErrProbeInFlight indicates a half-open breaker already has its probe
	// call running and rejected an additional call.
	ErrProbeInFlight = New("half-open probe already in flight")
	// ErrBreakerExists indicates a breaker with this name was already created.
	ErrBreakerExists = New("circuit breaker already exists")
	// ErrBreakerNotFound indicates no breaker with this name is registered.
	ErrBreakerNotFound = New("circuit breaker not found")
	// ErrBreakerDestroyed indicates the breaker has been destroyed and can no
	// longer execute operations.
	ErrBreakerDestroyed = New("circuit breaker destroyed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// LockError represents errors related to resource lock management.
//
// Example:
//
//	err := errors.NewLockError("acquire failed", errors.ErrResourceNotRegistered)
//	err = err.WithResource("db").WithOwner("worker-1")
//	fmt.Println(err) // "lock error [resource=db, owner=worker-1]: acquire failed: resource not registered"
type LockError struct {
	baseError
	ResourceID string
	OwnerID    string
}

// NewLockError creates a new LockError. Retryability follows the cause:
// contention outcomes (wait timeout, eviction) are retryable, programmer
// errors are not.
func NewLockError(message string, cause error) *LockError {
	return &LockError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: IsContention(cause),
		},
	}
}

// WithResource adds a resource ID to the error context.
func (e *LockError) WithResource(id string) *LockError {
	e.ResourceID = id
	return e
}

// WithOwner adds an owner ID to the error context.
func (e *LockError) WithOwner(id string) *LockError {
	e.OwnerID = id
	return e
}

// WithSeverity sets the error severity.
func (e *LockError) WithSeverity(s Severity) *LockError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *LockError) WithRetryable(r bool) *LockError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	var parts []string
	if e.ResourceID != "" {
		parts = append(parts, fmt.Sprintf("resource=%s", e.ResourceID))
	}
	if e.OwnerID != "" {
		parts = append(parts, fmt.Sprintf("owner=%s", e.OwnerID))
	}

	prefix := "lock error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("lock error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	if _, ok := target.(*LockError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// BreakerError represents errors related to circuit breaker execution.
//
// Example:
//
//	err := errors.NewBreakerError("call rejected", errors.ErrCircuitOpen)
//	err = err.WithBreaker("spawn").WithState("OPEN")
type BreakerError struct {
	baseError
	Breaker string
	State   string
}

// NewBreakerError creates a new BreakerError.
func NewBreakerError(message string, cause error) *BreakerError {
	return &BreakerError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
	}
}

// WithBreaker adds the breaker name to the error context.
func (e *BreakerError) WithBreaker(name string) *BreakerError {
	e.Breaker = name
	return e
}

// WithState adds the breaker state at failure time to the error context.
func (e *BreakerError) WithState(state string) *BreakerError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *BreakerError) WithSeverity(s Severity) *BreakerError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *BreakerError) WithRetryable(r bool) *BreakerError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *BreakerError) Error() string {
	var parts []string
	if e.Breaker != "" {
		parts = append(parts, fmt.Sprintf("breaker=%s", e.Breaker))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}

	prefix := "breaker error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("breaker error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *BreakerError) Is(target error) bool {
	if _, ok := target.(*BreakerError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// TimeoutError indicates an operation exceeded its deadline.
// The breaker synthesizes one of these when a wrapped operation's per-call
// timeout fires before the operation settles.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   fmt.Sprintf("operation %q timed out after %v", operation, duration),
			cause:     ErrTimeout,
			severity:  SeverityWarning,
			retryable: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause sets the underlying cause.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// retryableError is implemented by errors that know their own retryability.
type retryableError interface {
	IsRetryable() bool
}

// severityError is implemented by errors that carry a severity level.
type severityError interface {
	Severity() Severity
}

// IsRetryable reports whether the operation that produced err may succeed on
// retry. Contention outcomes and isolation failures are retryable; programmer
// errors are not.
func IsRetryable(err error) bool {
	var r retryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	switch {
	case errors.Is(err, ErrWaitTimeout),
		errors.Is(err, ErrEvicted),
		errors.Is(err, ErrCircuitOpen),
		errors.Is(err, ErrProbeInFlight),
		errors.Is(err, ErrTimeout):
		return true
	}
	return false
}

// GetSeverity returns the severity of err, defaulting to SeverityError for
// errors that don't carry one.
func GetSeverity(err error) Severity {
	var s severityError
	if errors.As(err, &s) {
		return s.Severity()
	}
	return SeverityError
}

// IsContention reports whether err is an ordinary contention outcome
// (wait timeout or deadlock eviction) rather than a failure.
func IsContention(err error) bool {
	return errors.Is(err, ErrWaitTimeout) || errors.Is(err, ErrEvicted)
}

// -----------------------------------------------------------------------------
// Wrapping Helpers
// -----------------------------------------------------------------------------

// Wrap annotates err with a message. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf annotates err with a formatted message. Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
