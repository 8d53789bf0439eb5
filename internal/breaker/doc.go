// Package breaker provides a three-state circuit breaker for isolating
// failures in unreliable external operations (process spawns, inter-process
// calls), plus a named registry for managing a breaker per logical operation.
//
// # State Machine
//
// A breaker is CLOSED in normal operation: calls run with a per-call timeout,
// and consecutive failures at or past the failure threshold trip it OPEN.
// While OPEN, calls are rejected without invoking the operation. After the
// reset timeout the breaker moves to HALF_OPEN and lets a single probe call
// through: enough successes close it again, any failure reopens it
// immediately. The OPEN-to-HALF_OPEN transition is driven by a timer so an
// idle breaker still self-heals; the lazy check in Execute is idempotent
// against it.
//
// A timed-out operation counts as a failure even if it later completes - the
// operation's context is cancelled and its eventual result discarded.
//
// # Basic Usage
//
//	reg := breaker.NewRegistry(bus)
//
//	err := reg.Execute(ctx, "spawn", func(ctx context.Context) error {
//	    return spawnWorker(ctx)
//	})
//	if errors.Is(err, errors.ErrCircuitOpen) {
//	    // rejected untried - the isolation guarantee
//	}
//
// Every state transition publishes breaker.state_changed and every failure
// publishes breaker.failure, so the surrounding system can alert without
// polling stats.
package breaker
