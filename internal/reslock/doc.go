// Package reslock provides shared/exclusive locking over registered resources
// for concurrently executing workers, with priority-ordered waiting and
// automatic deadlock detection.
//
// Workers register the resources they coordinate on (files, ports, terminals,
// processes) once, then acquire and release locks by resource ID. A request
// that cannot be granted immediately joins a per-resource wait queue ordered
// by priority (higher first, FIFO within a priority). Queued requests resolve
// when granted, when their own wait timeout elapses, or when evicted as a
// deadlock victim.
//
// # Lock Compatibility
//
// Any number of shared locks may coexist on one resource. An exclusive lock
// excludes everything else. An owner may hold at most one lock per resource;
// a second request from the same owner is rejected immediately, never queued.
//
// # Deadlock Detection
//
// The [Manager] runs a periodic detector over the wait-for graph (requester
// waits on current lock owner). When a cycle is found, the participant holding
// the lowest-priority lock is chosen as victim: all of its locks are released
// and all of its queued requests fail, which is guaranteed to break the cycle.
// A lock.deadlock event reports each resolution pass.
//
// # Basic Usage
//
//	mgr := reslock.NewManager(bus)
//	mgr.RegisterResource(reslock.Resource{ID: "db", Kind: reslock.KindFile, Name: "shared database"})
//
//	ok, err := mgr.Acquire(ctx, "db", "worker-1", reslock.WithPriority(5))
//	if err != nil {
//	    return err // programmer error: unregistered resource or double acquire
//	}
//	if !ok {
//	    return nil // contention outcome: timed out or evicted
//	}
//	defer mgr.Release("db", "worker-1")
//
//	// On worker shutdown:
//	mgr.ReleaseAll("worker-1")
//
// # Thread Safety
//
// All Manager methods are safe for concurrent use. Table and queue mutations
// complete under an internal mutex before any blocking hand-off; events are
// published outside the mutex.
package reslock
