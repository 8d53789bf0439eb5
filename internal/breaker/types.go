package breaker

import "time"

// State is the circuit breaker state.
type State string

const (
	// StateClosed is normal operation: calls run, failures are counted.
	StateClosed State = "CLOSED"
	// StateOpen fast-fails every call without invoking the operation.
	StateOpen State = "OPEN"
	// StateHalfOpen lets one probe call through at a time to test recovery.
	StateHalfOpen State = "HALF_OPEN"
)

// Default configuration values applied by Config.withDefaults.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 2
	DefaultTimeout          = 30 * time.Second
	DefaultResetTimeout     = 60 * time.Second
)

// Config holds a breaker's fixed configuration. The zero value of any field
// is replaced with the package default at construction.
type Config struct {
	// Name identifies the breaker; required, used as the registry key and in
	// emitted events.
	Name string
	// FailureThreshold is the number of consecutive CLOSED-state failures
	// that trips the breaker OPEN.
	FailureThreshold int
	// SuccessThreshold is the number of HALF_OPEN successes required to
	// close the breaker.
	SuccessThreshold int
	// Timeout is the per-call deadline raced against the operation.
	Timeout time.Duration
	// ResetTimeout is how long an OPEN breaker waits before moving to
	// HALF_OPEN.
	ResetTimeout time.Duration
}

// withDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	return c
}

// Stats is a read-only snapshot of a breaker.
type Stats struct {
	Name  string
	State State

	// Current-run counters; meaning depends on state and both reset to zero
	// on every transition.
	Failures  int
	Successes int

	// Last-activity timestamps.
	LastFailure time.Time
	LastSuccess time.Time

	// Lifetime totals, zeroed only by Reset.
	TotalCalls     int64
	TotalFailures  int64
	TotalSuccesses int64

	// NextAttempt is when an OPEN breaker will allow a probe; zero otherwise.
	NextAttempt time.Time
}
