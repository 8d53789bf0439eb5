// Package event provides a pub-sub event bus for decoupled inter-component
// communication in the OrchFlow concurrency core.
//
// The lock manager, circuit breakers, and worker supervisor announce failures,
// grants, and recoveries through the bus without knowing who observes them.
// Publishing is fire-and-forget: it never blocks on a handler and never fails
// when nothing is subscribed, which is the contract the core components rely on.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Type]: Typed event name; subscribers match on the Type* constants
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Lock lifecycle:
//   - [LockGrantedEvent], [LockReleasedEvent]: a lock was granted or released
//   - [LockQueuedEvent]: a request entered the wait queue
//   - [LockTimeoutEvent]: a queued request gave up waiting
//   - [DeadlockEvent]: the detector found and resolved one or more cycles
//
// Circuit breaker:
//   - [BreakerStateChangedEvent]: a breaker transitioned between states
//   - [BreakerFailureEvent]: a wrapped operation failed or timed out
//   - [BreakerResetEvent]: a breaker was administratively reset
//
// Workers and configuration:
//   - [WorkerStartedEvent], [WorkerFinishedEvent]: supervisor task lifecycle
//   - [ConfigReloadedEvent]: the configuration file changed on disk
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called synchronously
// and protected against panics - a panicking handler will not prevent other
// handlers from being called.
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - lock.granted, lock.released, lock.queued, lock.timeout, lock.deadlock
//   - breaker.state_changed, breaker.failure, breaker.reset
//   - worker.started, worker.finished
//   - config.reloaded
package event
