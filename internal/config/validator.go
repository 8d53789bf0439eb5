package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "breaker.failure_threshold")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLock()...)
	errors = append(errors, c.validateBreaker()...)
	errors = append(errors, c.validateWorker()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateLock() []ValidationError {
	var errors []ValidationError

	if c.Lock.DeadlockCheckIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.deadlock_check_interval_ms",
			Value:   c.Lock.DeadlockCheckIntervalMs,
			Message: "must be positive",
		})
	}
	if c.Lock.DefaultWaitTimeoutMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.default_wait_timeout_ms",
			Value:   c.Lock.DefaultWaitTimeoutMs,
			Message: "must be zero (wait forever) or positive",
		})
	}
	if c.Lock.MaxQueueDepthWarn < 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.max_queue_depth_warn",
			Value:   c.Lock.MaxQueueDepthWarn,
			Message: "must be zero (disabled) or positive",
		})
	}

	return errors
}

func (c *Config) validateBreaker() []ValidationError {
	var errors []ValidationError

	if c.Breaker.FailureThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "breaker.failure_threshold",
			Value:   c.Breaker.FailureThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Breaker.SuccessThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "breaker.success_threshold",
			Value:   c.Breaker.SuccessThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Breaker.TimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "breaker.timeout_ms",
			Value:   c.Breaker.TimeoutMs,
			Message: "must be positive",
		})
	}
	if c.Breaker.ResetTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "breaker.reset_timeout_ms",
			Value:   c.Breaker.ResetTimeoutMs,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateWorker() []ValidationError {
	var errors []ValidationError

	if c.Worker.MaxConcurrent < 0 {
		errors = append(errors, ValidationError{
			Field:   "worker.max_concurrent",
			Value:   c.Worker.MaxConcurrent,
			Message: "must be zero (unlimited) or positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
