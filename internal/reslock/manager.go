package reslock

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orchflow/orchflow/internal/errors"
	"github.com/orchflow/orchflow/internal/event"
	"github.com/orchflow/orchflow/internal/logging"
)

const defaultDetectionInterval = time.Second

// Manager owns the resource registry, lock table, and per-resource wait
// queues, and embeds the periodic deadlock detector.
type Manager struct {
	mu        sync.Mutex
	bus       *event.Bus
	logger    *logging.Logger
	resources map[string]Resource
	held      map[string][]*Lock    // resourceID -> held locks
	queues    map[string]*waitQueue // resourceID -> blocked requests
	seq       uint64                // arrival counter for FIFO tie-breaking

	detectInterval time.Duration
	defaultWait    time.Duration
	queueDepthWarn int

	running  bool
	stopFunc context.CancelFunc
	stopped  chan struct{}
}

// NewManager creates a Manager that publishes lock lifecycle events to bus.
func NewManager(bus *event.Bus, opts ...Option) *Manager {
	m := &Manager{
		bus:            bus,
		logger:         logging.NewNop().WithComponent("reslock"),
		resources:      make(map[string]Resource),
		held:           make(map[string][]*Lock),
		queues:         make(map[string]*waitQueue),
		detectInterval: defaultDetectionInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterResource adds a resource to the registry. Registration is
// idempotent by ID: re-registering an existing resource is a no-op, even with
// different fields.
func (m *Manager) RegisterResource(res Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.resources[res.ID]; ok {
		return
	}
	m.resources[res.ID] = res
	m.queues[res.ID] = newWaitQueue()
}

// Acquire requests a lock on a registered resource for the given owner.
//
// It returns (true, nil) once the lock is held. If the request cannot be
// granted immediately it joins the resource's wait queue and blocks until
// granted, until its wait timeout elapses (false, nil), until it is evicted
// as a deadlock victim (false, nil), or until ctx is cancelled (false,
// ctx.Err()).
//
// Requesting an unregistered resource, or a resource the owner already holds
// a lock on or has a request queued for, is a programmer error returned
// synchronously - such requests are never queued. Keeping at most one held
// lock or queued request per (resource, owner) pair is what lets the grant
// path hand a freed resource to queued waiters without re-checking ownership.
func (m *Manager) Acquire(ctx context.Context, resourceID, ownerID string, opts ...AcquireOption) (bool, error) {
	o := acquireOptions{mode: ModeExclusive}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.waitSet {
		o.waitTimeout = m.defaultWait
	}

	m.mu.Lock()

	res, ok := m.resources[resourceID]
	if !ok {
		m.mu.Unlock()
		return false, errors.NewLockError("acquire failed", errors.ErrResourceNotRegistered).
			WithResource(resourceID).WithOwner(ownerID)
	}
	if m.ownerHoldsLocked(resourceID, ownerID) {
		m.mu.Unlock()
		return false, errors.NewLockError("acquire rejected", errors.ErrLockHeld).
			WithResource(resourceID).WithOwner(ownerID)
	}
	if m.ownerQueuedLocked(resourceID, ownerID) {
		m.mu.Unlock()
		return false, errors.NewLockError("request already queued", errors.ErrLockHeld).
			WithResource(resourceID).WithOwner(ownerID)
	}

	if m.compatibleLocked(resourceID, o.mode) {
		m.grantLocked(resourceID, ownerID, o)
		m.mu.Unlock()

		m.publish(event.NewLockGrantedEvent(resourceID, ownerID, string(o.mode), false))
		return true, nil
	}

	w := &waiter{
		id:          uuid.NewString(),
		resourceID:  resourceID,
		ownerID:     ownerID,
		mode:        o.mode,
		priority:    o.priority,
		seq:         m.nextSeqLocked(),
		requestedAt: time.Now(),
		holdTimeout: o.holdTimeout,
		grant:       make(chan bool, 1),
	}
	q := m.queues[resourceID]
	heap.Push(q, w)
	depth := q.Len()
	m.mu.Unlock()

	if m.queueDepthWarn > 0 && depth > m.queueDepthWarn {
		m.logger.Warn("wait queue depth exceeded",
			"resource_id", resourceID, "resource_name", res.Name, "depth", depth)
	}
	m.publish(event.NewLockQueuedEvent(resourceID, ownerID, o.priority))

	var timeoutC <-chan time.Time
	if o.waitTimeout > 0 {
		timer := time.NewTimer(o.waitTimeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case granted := <-w.grant:
		return granted, nil
	case <-timeoutC:
		return m.abandonWait(w, nil)
	case <-ctx.Done():
		return m.abandonWait(w, ctx.Err())
	}
}

// abandonWait removes a waiter that stopped waiting on its own (timeout or
// context cancellation). If an outcome was delivered concurrently, that
// outcome wins and the cause is ignored.
func (m *Manager) abandonWait(w *waiter, cause error) (bool, error) {
	m.mu.Lock()
	if w.done {
		// Granted or evicted in the window before we took the mutex.
		m.mu.Unlock()
		return <-w.grant, nil
	}
	w.done = true
	m.queues[w.resourceID].remove(w)
	m.mu.Unlock()

	m.publish(event.NewLockTimeoutEvent(w.resourceID, w.ownerID))
	m.logger.Debug("lock wait abandoned",
		"resource_id", w.resourceID, "owner_id", w.ownerID)
	return false, cause
}

// Release removes the owner's lock on the resource, if held, and grants every
// now-satisfiable queued request in priority order. Releasing a lock that is
// not held is a no-op returning false.
func (m *Manager) Release(resourceID, ownerID string) bool {
	m.mu.Lock()

	lock := m.removeLockLocked(resourceID, ownerID)
	if lock == nil {
		m.mu.Unlock()
		return false
	}
	granted := m.evaluateQueueLocked(resourceID)
	m.mu.Unlock()

	m.publish(event.NewLockReleasedEvent(resourceID, ownerID, "released"))
	m.publishGrants(granted)
	return true
}

// ReleaseAll removes every lock the owner holds across all resources, then
// re-evaluates the affected queues once. Returns the number of locks
// released. Used on worker termination and by deadlock resolution.
func (m *Manager) ReleaseAll(ownerID string) int {
	m.mu.Lock()
	released, granted := m.releaseAllLocked(ownerID)
	m.mu.Unlock()

	for _, resourceID := range released {
		m.publish(event.NewLockReleasedEvent(resourceID, ownerID, "released"))
	}
	m.publishGrants(granted)
	return len(released)
}

// State returns a read-only snapshot of resources, held locks, and queued
// requests, decorated with resource display names. It has no side effects.
func (m *Manager) State() StateSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := StateSnapshot{}

	for _, res := range m.resources {
		snap.Resources = append(snap.Resources, res)
	}
	sort.Slice(snap.Resources, func(i, j int) bool {
		return snap.Resources[i].ID < snap.Resources[j].ID
	})

	for resourceID, locks := range m.held {
		name := m.resources[resourceID].Name
		for _, l := range locks {
			snap.Locks = append(snap.Locks, LockInfo{
				ResourceID:   l.ResourceID,
				ResourceName: name,
				OwnerID:      l.OwnerID,
				Mode:         l.Mode,
				Priority:     l.Priority,
				AcquiredAt:   l.AcquiredAt,
			})
		}
	}
	sort.Slice(snap.Locks, func(i, j int) bool {
		if snap.Locks[i].ResourceID != snap.Locks[j].ResourceID {
			return snap.Locks[i].ResourceID < snap.Locks[j].ResourceID
		}
		return snap.Locks[i].OwnerID < snap.Locks[j].OwnerID
	})

	var resourceIDs []string
	for resourceID := range m.queues {
		resourceIDs = append(resourceIDs, resourceID)
	}
	sort.Strings(resourceIDs)
	for _, resourceID := range resourceIDs {
		name := m.resources[resourceID].Name
		for _, w := range m.queues[resourceID].ordered() {
			snap.Waiting = append(snap.Waiting, WaitInfo{
				ResourceID:   w.resourceID,
				ResourceName: name,
				OwnerID:      w.ownerID,
				Mode:         w.mode,
				Priority:     w.priority,
				RequestedAt:  w.requestedAt,
			})
		}
	}

	return snap
}

// -----------------------------------------------------------------------------
// Internals (all *Locked methods require m.mu)
// -----------------------------------------------------------------------------

func (m *Manager) nextSeqLocked() uint64 {
	m.seq++
	return m.seq
}

// ownerHoldsLocked reports whether the owner already holds a lock on the
// resource.
func (m *Manager) ownerHoldsLocked(resourceID, ownerID string) bool {
	for _, l := range m.held[resourceID] {
		if l.OwnerID == ownerID {
			return true
		}
	}
	return false
}

// ownerQueuedLocked reports whether the owner already has a request queued on
// the resource. Together with ownerHoldsLocked this keeps the (resource,
// owner) pair unique across the lock table and wait queues, so granting
// queued waiters can never hand one owner a second lock on the same resource.
func (m *Manager) ownerQueuedLocked(resourceID, ownerID string) bool {
	q := m.queues[resourceID]
	if q == nil {
		return false
	}
	for _, w := range q.items {
		if w.ownerID == ownerID {
			return true
		}
	}
	return false
}

// compatibleLocked reports whether a lock of the given mode can be granted on
// the resource right now: the resource is free, or the request is shared and
// every held lock is shared.
func (m *Manager) compatibleLocked(resourceID string, mode Mode) bool {
	locks := m.held[resourceID]
	if len(locks) == 0 {
		return true
	}
	if mode != ModeShared {
		return false
	}
	for _, l := range locks {
		if l.Mode != ModeShared {
			return false
		}
	}
	return true
}

// grantLocked creates and records a held lock, scheduling auto-release if a
// hold timeout was requested.
func (m *Manager) grantLocked(resourceID, ownerID string, o acquireOptions) *Lock {
	lock := &Lock{
		ResourceID: resourceID,
		OwnerID:    ownerID,
		Mode:       o.mode,
		Priority:   o.priority,
		AcquiredAt: time.Now(),
		Timeout:    o.holdTimeout,
	}
	if o.holdTimeout > 0 {
		lock.timer = time.AfterFunc(o.holdTimeout, func() {
			m.expireLock(lock)
		})
	}
	m.held[resourceID] = append(m.held[resourceID], lock)
	return lock
}

// removeLockLocked removes and returns the owner's lock on the resource,
// cancelling any pending auto-release. Returns nil if no such lock is held.
func (m *Manager) removeLockLocked(resourceID, ownerID string) *Lock {
	locks := m.held[resourceID]
	for i, l := range locks {
		if l.OwnerID == ownerID {
			if l.timer != nil {
				l.timer.Stop()
				l.timer = nil
			}
			m.held[resourceID] = append(locks[:i], locks[i+1:]...)
			return l
		}
	}
	return nil
}

// releaseAllLocked removes every lock the owner holds and re-evaluates each
// affected queue. Returns the resource IDs released and the grants made.
func (m *Manager) releaseAllLocked(ownerID string) (released []string, granted []grantedRequest) {
	for resourceID := range m.held {
		if m.removeLockLocked(resourceID, ownerID) != nil {
			released = append(released, resourceID)
		}
	}
	sort.Strings(released)

	for _, resourceID := range released {
		granted = append(granted, m.evaluateQueueLocked(resourceID)...)
	}
	return released, granted
}

// grantedRequest records a queue grant for event publishing after the mutex
// is released.
type grantedRequest struct {
	resourceID string
	ownerID    string
	mode       Mode
}

// evaluateQueueLocked grants queued requests on the resource in strict
// priority order (ties by arrival), stopping at the first request that is not
// satisfiable. Stopping preserves the ordering guarantee: a lower-priority
// compatible request never overtakes a blocked higher-priority one.
func (m *Manager) evaluateQueueLocked(resourceID string) []grantedRequest {
	q := m.queues[resourceID]
	if q == nil {
		return nil
	}

	var granted []grantedRequest
	for q.Len() > 0 {
		w := q.peek()
		if !m.compatibleLocked(resourceID, w.mode) {
			break
		}
		heap.Pop(q)

		o := acquireOptions{mode: w.mode, priority: w.priority, holdTimeout: w.holdTimeout}
		m.grantLocked(resourceID, w.ownerID, o)
		w.done = true
		w.grant <- true

		granted = append(granted, grantedRequest{
			resourceID: resourceID,
			ownerID:    w.ownerID,
			mode:       w.mode,
		})
	}
	return granted
}

// expireLock auto-releases a lock whose hold timeout elapsed. The lock
// pointer identifies the exact grant: if it was already released (and the
// resource possibly re-acquired), the expiry is a no-op.
func (m *Manager) expireLock(lock *Lock) {
	m.mu.Lock()

	locks := m.held[lock.ResourceID]
	found := false
	for i, l := range locks {
		if l == lock {
			m.held[lock.ResourceID] = append(locks[:i], locks[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return
	}
	granted := m.evaluateQueueLocked(lock.ResourceID)
	m.mu.Unlock()

	m.publish(event.NewLockReleasedEvent(lock.ResourceID, lock.OwnerID, "expired"))
	m.logger.Debug("lock auto-released on hold timeout",
		"resource_id", lock.ResourceID, "owner_id", lock.OwnerID)
	m.publishGrants(granted)
}

// publish sends an event to the bus if one is configured. Publishing is
// fire-and-forget and must happen outside the manager mutex.
func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

func (m *Manager) publishGrants(granted []grantedRequest) {
	for _, g := range granted {
		m.publish(event.NewLockGrantedEvent(g.resourceID, g.ownerID, string(g.mode), true))
	}
}
