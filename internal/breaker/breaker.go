package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orchflow/orchflow/internal/errors"
	"github.com/orchflow/orchflow/internal/event"
	"github.com/orchflow/orchflow/internal/logging"
)

// Operation is a fallible call wrapped by a breaker. The context carries the
// breaker's per-call deadline; operations that honor it are cancelled on
// timeout, operations that ignore it are abandoned and their eventual result
// discarded.
type Operation func(ctx context.Context) error

// CircuitBreaker is a per-operation failure-isolation state machine.
// It is safe for concurrent use.
type CircuitBreaker struct {
	name   string
	cfg    Config
	bus    *event.Bus
	logger *logging.Logger

	mu             sync.Mutex
	state          State
	failures       int
	successes      int
	lastFailure    time.Time
	lastSuccess    time.Time
	totalCalls     int64
	totalFailures  int64
	totalSuccesses int64
	nextAttempt    time.Time
	probeInFlight  bool
	destroyed      bool

	// At most one of each pending at any time; stopped whenever the condition
	// they guard resolves another way.
	resetTimer *time.Timer // forces OPEN -> HALF_OPEN at nextAttempt
	decayTimer *time.Timer // clears stale CLOSED failures after an idle spell
}

// New creates a CircuitBreaker with the given configuration, applying
// package defaults to zero fields. Events are published to bus.
func New(cfg Config, bus *event.Bus, logger *logging.Logger) *CircuitBreaker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CircuitBreaker{
		name:   cfg.Name,
		cfg:    cfg.withDefaults(),
		bus:    bus,
		logger: logger.WithComponent("breaker").With("breaker", cfg.Name),
		state:  StateClosed,
	}
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs op under the breaker's current state.
//
// While OPEN and before the reset deadline, Execute fails with
// errors.ErrCircuitOpen and op is never invoked - the isolation guarantee.
// Past the deadline the breaker moves to HALF_OPEN (idempotently against the
// reset timer) and the call proceeds as the probe; additional calls during
// the probe fail with errors.ErrProbeInFlight.
//
// Otherwise op races the per-call timeout. A timeout counts as a failure
// even if op later completes; its context is cancelled and its result
// discarded. Cancellation of the caller's ctx propagates without being
// recorded as success or failure, since the operation's outcome is unknown.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, cb.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("operation panicked: %v", r)
			}
		}()
		done <- op(opCtx)
	}()

	var opErr error
	select {
	case opErr = <-done:
	case <-opCtx.Done():
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Caller cancellation, not an operation verdict.
			cb.abandon(probe)
			return ctxErr
		}
		opErr = errors.NewTimeoutError(cb.name, cb.cfg.Timeout)
	}

	if opErr != nil {
		cb.onFailure(opErr, probe)
		return opErr
	}
	cb.onSuccess(probe)
	return nil
}

// admit decides whether a call may proceed, applying the lazy OPEN ->
// HALF_OPEN promotion. Returns whether this call is the half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()

	if cb.destroyed {
		cb.mu.Unlock()
		return false, errors.NewBreakerError("execute rejected", errors.ErrBreakerDestroyed).
			WithBreaker(cb.name)
	}

	var events []event.Event

	if cb.state == StateOpen {
		if time.Now().Before(cb.nextAttempt) {
			state := cb.state
			cb.mu.Unlock()
			cb.logger.Debug("call rejected while open")
			return false, errors.NewBreakerError("call rejected", errors.ErrCircuitOpen).
				WithBreaker(cb.name).WithState(string(state))
		}
		// Reset deadline passed but the timer hasn't fired yet: promote now.
		events = cb.toHalfOpenLocked(events)
	}

	if cb.state == StateHalfOpen {
		if cb.probeInFlight {
			cb.mu.Unlock()
			cb.publishAll(events)
			return false, errors.NewBreakerError("probe already running", errors.ErrProbeInFlight).
				WithBreaker(cb.name).WithState(string(StateHalfOpen))
		}
		cb.probeInFlight = true
		probe = true
	}

	cb.totalCalls++
	cb.mu.Unlock()

	cb.publishAll(events)
	return probe, nil
}

// abandon releases the probe slot for a call whose outcome was never
// determined (caller cancellation).
func (cb *CircuitBreaker) abandon(probe bool) {
	if !probe {
		return
	}
	cb.mu.Lock()
	cb.probeInFlight = false
	cb.mu.Unlock()
}

// onSuccess records a successful call per the state table.
func (cb *CircuitBreaker) onSuccess(probe bool) {
	cb.mu.Lock()

	cb.lastSuccess = time.Now()
	cb.totalSuccesses++

	var events []event.Event
	switch cb.state {
	case StateClosed:
		cb.failures = 0
		cb.stopDecayTimerLocked()
	case StateHalfOpen:
		// Only the probe's outcome is evidence of recovery. A stale call
		// admitted before the trip counts toward the totals only.
		if probe {
			cb.probeInFlight = false
			cb.successes++
			if cb.successes >= cb.cfg.SuccessThreshold {
				events = cb.toClosedLocked(events)
			}
		}
	case StateOpen:
		// A call that was in flight when the breaker tripped; the totals
		// already recorded it, the state machine ignores it.
	}
	cb.mu.Unlock()

	cb.publishAll(events)
}

// onFailure records a failed call per the state table.
func (cb *CircuitBreaker) onFailure(opErr error, probe bool) {
	cb.mu.Lock()

	cb.lastFailure = time.Now()
	cb.totalFailures++

	var events []event.Event
	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			events = cb.toOpenLocked(events)
		} else {
			cb.scheduleDecayLocked()
		}
	case StateHalfOpen:
		if probe {
			cb.probeInFlight = false
		}
		events = cb.toOpenLocked(events)
	case StateOpen:
		// Late failure from a call admitted before the trip; totals only.
	}
	cb.mu.Unlock()

	cb.publish(event.NewBreakerFailureEvent(cb.name, opErr.Error()))
	cb.publishAll(events)
	cb.logger.Warn("operation failed", "error", opErr.Error())
}

// Stats returns a read-only snapshot of the breaker.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := Stats{
		Name:           cb.name,
		State:          cb.state,
		Failures:       cb.failures,
		Successes:      cb.successes,
		LastFailure:    cb.lastFailure,
		LastSuccess:    cb.lastSuccess,
		TotalCalls:     cb.totalCalls,
		TotalFailures:  cb.totalFailures,
		TotalSuccesses: cb.totalSuccesses,
	}
	if cb.state == StateOpen {
		s.NextAttempt = cb.nextAttempt
	}
	return s
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker CLOSED, zeroes all counters including lifetime
// totals, and cancels pending timers. An administrative override.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()

	var events []event.Event
	if cb.state != StateClosed {
		events = cb.transitionLocked(StateClosed, events)
	}
	cb.failures = 0
	cb.successes = 0
	cb.totalCalls = 0
	cb.totalFailures = 0
	cb.totalSuccesses = 0
	cb.lastFailure = time.Time{}
	cb.lastSuccess = time.Time{}
	cb.nextAttempt = time.Time{}
	cb.probeInFlight = false
	cb.stopResetTimerLocked()
	cb.stopDecayTimerLocked()
	cb.mu.Unlock()

	cb.publishAll(events)
	cb.publish(event.NewBreakerResetEvent(cb.name))
	cb.logger.Info("breaker reset")
}

// Destroy cancels pending timers and marks the breaker unusable. Required at
// shutdown to avoid leaking timers.
func (cb *CircuitBreaker) Destroy() {
	cb.mu.Lock()
	cb.destroyed = true
	cb.stopResetTimerLocked()
	cb.stopDecayTimerLocked()
	cb.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Transitions (all *Locked methods require cb.mu)
// -----------------------------------------------------------------------------

// transitionLocked moves to a new state, resetting the run counters, and
// appends the state-change event for publishing after the mutex is released.
func (cb *CircuitBreaker) transitionLocked(to State, events []event.Event) []event.Event {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	return append(events, event.NewBreakerStateChangedEvent(cb.name, string(from), string(to)))
}

// toOpenLocked trips the breaker: fast-fail until nextAttempt, with the reset
// timer as the authoritative path back to HALF_OPEN so an idle breaker still
// self-heals.
func (cb *CircuitBreaker) toOpenLocked(events []event.Event) []event.Event {
	events = cb.transitionLocked(StateOpen, events)
	cb.probeInFlight = false
	cb.nextAttempt = time.Now().Add(cb.cfg.ResetTimeout)
	cb.stopDecayTimerLocked()
	cb.stopResetTimerLocked()
	cb.resetTimer = time.AfterFunc(cb.cfg.ResetTimeout, cb.forceHalfOpen)
	return events
}

// toHalfOpenLocked promotes OPEN to HALF_OPEN. Idempotent: a no-op unless
// currently OPEN, so the timer and the lazy Execute check cannot double-fire.
func (cb *CircuitBreaker) toHalfOpenLocked(events []event.Event) []event.Event {
	if cb.state != StateOpen {
		return events
	}
	events = cb.transitionLocked(StateHalfOpen, events)
	cb.probeInFlight = false
	cb.nextAttempt = time.Time{}
	cb.stopResetTimerLocked()
	return events
}

// toClosedLocked restores normal operation after a successful recovery.
func (cb *CircuitBreaker) toClosedLocked(events []event.Event) []event.Event {
	events = cb.transitionLocked(StateClosed, events)
	cb.nextAttempt = time.Time{}
	cb.stopResetTimerLocked()
	cb.stopDecayTimerLocked()
	return events
}

// forceHalfOpen is the reset timer callback.
func (cb *CircuitBreaker) forceHalfOpen() {
	cb.mu.Lock()
	if cb.destroyed {
		cb.mu.Unlock()
		return
	}
	events := cb.toHalfOpenLocked(nil)
	cb.mu.Unlock()

	cb.publishAll(events)
}

// scheduleDecayLocked arms the idle-decay timer: a CLOSED breaker that
// accumulated failures below the threshold forgets them after a quiet
// ResetTimeout, so unrelated failures hours apart don't add up to a trip.
func (cb *CircuitBreaker) scheduleDecayLocked() {
	cb.stopDecayTimerLocked()
	cb.decayTimer = time.AfterFunc(cb.cfg.ResetTimeout, cb.decayIdleFailures)
}

// decayIdleFailures is the decay timer callback.
func (cb *CircuitBreaker) decayIdleFailures() {
	cb.mu.Lock()
	if !cb.destroyed && cb.state == StateClosed && cb.failures > 0 &&
		time.Since(cb.lastFailure) >= cb.cfg.ResetTimeout {
		cb.failures = 0
	}
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) stopResetTimerLocked() {
	if cb.resetTimer != nil {
		cb.resetTimer.Stop()
		cb.resetTimer = nil
	}
}

func (cb *CircuitBreaker) stopDecayTimerLocked() {
	if cb.decayTimer != nil {
		cb.decayTimer.Stop()
		cb.decayTimer = nil
	}
}

func (cb *CircuitBreaker) publish(e event.Event) {
	if cb.bus != nil {
		cb.bus.Publish(e)
	}
}

func (cb *CircuitBreaker) publishAll(events []event.Event) {
	for _, e := range events {
		cb.publish(e)
	}
}
