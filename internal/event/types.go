package event

import "time"

// Type identifies an event kind on the bus. Values follow the
// "category.action" convention.
type Type string

// Event kinds published by the coordination core. Subscribers should use
// these constants rather than spelling the strings out.
const (
	TypeLockGranted  Type = "lock.granted"
	TypeLockReleased Type = "lock.released"
	TypeLockQueued   Type = "lock.queued"
	TypeLockTimeout  Type = "lock.timeout"
	TypeDeadlock     Type = "lock.deadlock"

	TypeBreakerStateChanged Type = "breaker.state_changed"
	TypeBreakerFailure      Type = "breaker.failure"
	TypeBreakerReset        Type = "breaker.reset"

	TypeWorkerStarted  Type = "worker.started"
	TypeWorkerFinished Type = "worker.finished"

	TypeConfigReloaded Type = "config.reloaded"
)

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns the kind of this event.
	EventType() Type

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType Type
	timestamp time.Time
}

func (e baseEvent) EventType() Type      { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType Type) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Lock Lifecycle Events
// -----------------------------------------------------------------------------

// LockGrantedEvent is emitted when a lock is granted, either immediately on
// request or later from the wait queue.
type LockGrantedEvent struct {
	baseEvent
	ResourceID string // Resource the lock covers
	OwnerID    string // Owner the lock was granted to
	Mode       string // "shared" or "exclusive"
	Waited     bool   // Whether the request went through the wait queue
}

// NewLockGrantedEvent creates a LockGrantedEvent.
func NewLockGrantedEvent(resourceID, ownerID, mode string, waited bool) LockGrantedEvent {
	return LockGrantedEvent{
		baseEvent:  newBaseEvent(TypeLockGranted),
		ResourceID: resourceID,
		OwnerID:    ownerID,
		Mode:       mode,
		Waited:     waited,
	}
}

// LockReleasedEvent is emitted when a held lock is removed.
type LockReleasedEvent struct {
	baseEvent
	ResourceID string // Resource the lock covered
	OwnerID    string // Owner that held the lock
	Reason     string // "released", "expired", or "evicted"
}

// NewLockReleasedEvent creates a LockReleasedEvent.
func NewLockReleasedEvent(resourceID, ownerID, reason string) LockReleasedEvent {
	return LockReleasedEvent{
		baseEvent:  newBaseEvent(TypeLockReleased),
		ResourceID: resourceID,
		OwnerID:    ownerID,
		Reason:     reason,
	}
}

// LockQueuedEvent is emitted when a request cannot be granted immediately
// and enters the wait queue.
type LockQueuedEvent struct {
	baseEvent
	ResourceID string // Resource being waited on
	OwnerID    string // Requester
	Priority   int    // Queue priority (higher first)
}

// NewLockQueuedEvent creates a LockQueuedEvent.
func NewLockQueuedEvent(resourceID, ownerID string, priority int) LockQueuedEvent {
	return LockQueuedEvent{
		baseEvent:  newBaseEvent(TypeLockQueued),
		ResourceID: resourceID,
		OwnerID:    ownerID,
		Priority:   priority,
	}
}

// LockTimeoutEvent is emitted when a queued request abandons the wait,
// either because its own timeout elapsed or its context was cancelled.
type LockTimeoutEvent struct {
	baseEvent
	ResourceID string // Resource that was being waited on
	OwnerID    string // Requester that gave up
}

// NewLockTimeoutEvent creates a LockTimeoutEvent.
func NewLockTimeoutEvent(resourceID, ownerID string) LockTimeoutEvent {
	return LockTimeoutEvent{
		baseEvent:  newBaseEvent(TypeLockTimeout),
		ResourceID: resourceID,
		OwnerID:    ownerID,
	}
}

// DeadlockEvent is emitted when the deadlock detector finds wait-for cycles
// and resolves them by evicting victims.
type DeadlockEvent struct {
	baseEvent
	Cycles        int      // Number of cycles found in this detection pass
	Victims       []string // Owners whose locks were released
	LocksReleased int      // Total locks released across all victims
}

// NewDeadlockEvent creates a DeadlockEvent.
func NewDeadlockEvent(cycles int, victims []string, locksReleased int) DeadlockEvent {
	return DeadlockEvent{
		baseEvent:     newBaseEvent(TypeDeadlock),
		Cycles:        cycles,
		Victims:       victims,
		LocksReleased: locksReleased,
	}
}

// -----------------------------------------------------------------------------
// Circuit Breaker Events
// -----------------------------------------------------------------------------

// BreakerStateChangedEvent is emitted on every circuit breaker state transition.
type BreakerStateChangedEvent struct {
	baseEvent
	Name string // Breaker name
	From string // Previous state
	To   string // New state
}

// NewBreakerStateChangedEvent creates a BreakerStateChangedEvent.
func NewBreakerStateChangedEvent(name, from, to string) BreakerStateChangedEvent {
	return BreakerStateChangedEvent{
		baseEvent: newBaseEvent(TypeBreakerStateChanged),
		Name:      name,
		From:      from,
		To:        to,
	}
}

// BreakerFailureEvent is emitted when an operation wrapped by a breaker fails,
// including synthesized timeouts.
type BreakerFailureEvent struct {
	baseEvent
	Name  string // Breaker name
	Error string // Failure message
}

// NewBreakerFailureEvent creates a BreakerFailureEvent.
func NewBreakerFailureEvent(name, errMsg string) BreakerFailureEvent {
	return BreakerFailureEvent{
		baseEvent: newBaseEvent(TypeBreakerFailure),
		Name:      name,
		Error:     errMsg,
	}
}

// BreakerResetEvent is emitted when a breaker is administratively reset.
type BreakerResetEvent struct {
	baseEvent
	Name string // Breaker name
}

// NewBreakerResetEvent creates a BreakerResetEvent.
func NewBreakerResetEvent(name string) BreakerResetEvent {
	return BreakerResetEvent{
		baseEvent: newBaseEvent(TypeBreakerReset),
		Name:      name,
	}
}

// -----------------------------------------------------------------------------
// Worker Events
// -----------------------------------------------------------------------------

// WorkerStartedEvent is emitted when the supervisor begins running a task.
type WorkerStartedEvent struct {
	baseEvent
	WorkerID string // Worker executing the task
	TaskID   string // Task identifier
}

// NewWorkerStartedEvent creates a WorkerStartedEvent.
func NewWorkerStartedEvent(workerID, taskID string) WorkerStartedEvent {
	return WorkerStartedEvent{
		baseEvent: newBaseEvent(TypeWorkerStarted),
		WorkerID:  workerID,
		TaskID:    taskID,
	}
}

// WorkerFinishedEvent is emitted when a supervised task finishes, after all
// of the worker's locks have been released.
type WorkerFinishedEvent struct {
	baseEvent
	WorkerID string // Worker that executed the task
	TaskID   string // Task identifier
	Success  bool   // Whether the task completed without error
	Error    string // Error message (if failed)
}

// NewWorkerFinishedEvent creates a WorkerFinishedEvent.
func NewWorkerFinishedEvent(workerID, taskID string, success bool, errMsg string) WorkerFinishedEvent {
	return WorkerFinishedEvent{
		baseEvent: newBaseEvent(TypeWorkerFinished),
		WorkerID:  workerID,
		TaskID:    taskID,
		Success:   success,
		Error:     errMsg,
	}
}

// -----------------------------------------------------------------------------
// Configuration Events
// -----------------------------------------------------------------------------

// ConfigReloadedEvent is emitted when the configuration file changes on disk
// and the new contents validate successfully.
type ConfigReloadedEvent struct {
	baseEvent
	Path string // Path of the config file that changed
}

// NewConfigReloadedEvent creates a ConfigReloadedEvent.
func NewConfigReloadedEvent(path string) ConfigReloadedEvent {
	return ConfigReloadedEvent{
		baseEvent: newBaseEvent(TypeConfigReloaded),
		Path:      path,
	}
}
