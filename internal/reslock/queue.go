package reslock

import (
	"container/heap"
	"time"
)

// waiter is a blocked lock request sitting in a resource's wait queue.
// All fields except the grant channel are guarded by the manager's mutex.
type waiter struct {
	id          string
	resourceID  string
	ownerID     string
	mode        Mode
	priority    int
	seq         uint64 // arrival order, breaks priority ties
	requestedAt time.Time
	holdTimeout time.Duration // auto-release to apply if granted, 0 = none

	// grant carries the final outcome exactly once: true when the lock was
	// granted, false on deadlock eviction. Buffered so the granting goroutine
	// never blocks on a waiter.
	grant chan bool

	// done marks that an outcome has been (or is being) delivered, either via
	// the grant channel or by the waiter abandoning the queue itself.
	done bool

	index int // heap index, maintained by waitQueue
}

// waitQueue is a priority queue of waiters: higher priority first, FIFO
// within a priority. It implements heap.Interface; callers use the package
// heap functions to mutate it.
type waitQueue struct {
	items []*waiter
}

func newWaitQueue() *waitQueue {
	return &waitQueue{}
}

func (q *waitQueue) Len() int { return len(q.items) }

func (q *waitQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.seq < b.seq
}

func (q *waitQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *waitQueue) Push(x any) {
	w := x.(*waiter)
	w.index = len(q.items)
	q.items = append(q.items, w)
}

func (q *waitQueue) Pop() any {
	old := q.items
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	q.items = old[:n-1]
	return w
}

// peek returns the highest-priority waiter without removing it.
func (q *waitQueue) peek() *waiter {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// remove deletes a specific waiter from the queue. Returns false if the
// waiter is no longer queued.
func (q *waitQueue) remove(w *waiter) bool {
	if w.index < 0 || w.index >= len(q.items) || q.items[w.index] != w {
		return false
	}
	heap.Remove(q, w.index)
	return true
}

// ordered returns the queued waiters in grant order without mutating the
// queue. Used for snapshots and the detector's wait-for edges.
func (q *waitQueue) ordered() []*waiter {
	out := make([]*waiter, len(q.items))
	copy(out, q.items)
	// Insertion sort by the queue's ordering; queues are short.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if a.priority > b.priority || (a.priority == b.priority && a.seq < b.seq) {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
