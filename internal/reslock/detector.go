package reslock

import (
	"context"
	"sort"
	"time"

	"github.com/orchflow/orchflow/internal/event"
)

// Start launches the periodic deadlock detector. The detector runs on a fixed
// interval independent of request traffic until ctx is cancelled or Stop is
// called. Starting an already-running manager is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.running = true
	m.stopFunc = cancel
	m.stopped = make(chan struct{})
	m.mu.Unlock()

	go m.detectLoop(ctx)
}

// Stop halts the deadlock detector and waits for its goroutine to exit.
// Held locks and queued requests are unaffected. Safe to call even if Start
// was never called.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.stopFunc
	stopped := m.stopped
	m.stopFunc = nil
	m.mu.Unlock()

	cancel()
	<-stopped
}

// detectLoop runs detection passes on the configured interval.
func (m *Manager) detectLoop(ctx context.Context) {
	defer close(m.stopped)

	ticker := time.NewTicker(m.detectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.detectOnce()
		}
	}
}

// detectOnce performs a single detection pass: snapshot the wait-for graph,
// find cycles, and evict one victim per cycle.
func (m *Manager) detectOnce() {
	m.mu.Lock()

	cycles := findCycles(m.waitForGraphLocked())
	if len(cycles) == 0 {
		m.mu.Unlock()
		return
	}

	var (
		victims       []string
		evicted       = make(map[string]bool)
		released      []string // resource IDs, aligned with victimOf
		victimOf      []string // owner released from, aligned with released
		failed        []*waiter
		granted       []grantedRequest
		locksReleased int
	)

	for _, cycle := range cycles {
		// A victim evicted for an earlier cycle may already have broken this
		// one; re-check before evicting again.
		if cycleBroken(cycle, evicted) {
			continue
		}

		victim := m.selectVictimLocked(cycle)
		if victim == "" {
			continue
		}
		evicted[victim] = true
		victims = append(victims, victim)

		res, grants := m.releaseAllLocked(victim)
		locksReleased += len(res)
		for _, r := range res {
			released = append(released, r)
			victimOf = append(victimOf, victim)
		}
		granted = append(granted, grants...)
		failed = append(failed, m.failWaitersLocked(victim)...)
	}
	m.mu.Unlock()

	if len(victims) == 0 {
		return
	}

	for i, resourceID := range released {
		m.publish(event.NewLockReleasedEvent(resourceID, victimOf[i], "evicted"))
	}
	m.publishGrants(granted)
	m.publish(event.NewDeadlockEvent(len(cycles), victims, locksReleased))
	m.logger.Warn("deadlock resolved",
		"cycles", len(cycles), "victims", victims,
		"locks_released", locksReleased, "requests_failed", len(failed))
}

// waitForGraphLocked builds the wait-for edges: requester -> owner for every
// queued request whose target resource is currently locked.
func (m *Manager) waitForGraphLocked() map[string][]string {
	edges := make(map[string][]string)
	seen := make(map[[2]string]bool)

	for resourceID, q := range m.queues {
		locks := m.held[resourceID]
		if len(locks) == 0 {
			continue
		}
		for _, w := range q.items {
			for _, l := range locks {
				key := [2]string{w.ownerID, l.OwnerID}
				if seen[key] {
					continue
				}
				seen[key] = true
				edges[w.ownerID] = append(edges[w.ownerID], l.OwnerID)
			}
		}
	}
	return edges
}

// selectVictimLocked picks the cycle participant holding the lock with the
// numerically lowest priority; ties go to the first found. Evicting the
// lowest-priority holder favors higher-value work.
func (m *Manager) selectVictimLocked(cycle []string) string {
	victim := ""
	best := 0
	for _, owner := range cycle {
		for _, locks := range m.held {
			for _, l := range locks {
				if l.OwnerID != owner {
					continue
				}
				if victim == "" || l.Priority < best {
					victim = owner
					best = l.Priority
				}
			}
		}
	}
	return victim
}

// failWaitersLocked removes every queued request from the owner and resolves
// each with false.
func (m *Manager) failWaitersLocked(ownerID string) []*waiter {
	var failed []*waiter
	for _, q := range m.queues {
		for _, w := range q.ordered() {
			if w.ownerID != ownerID || w.done {
				continue
			}
			w.done = true
			q.remove(w)
			w.grant <- false
			failed = append(failed, w)
		}
	}
	return failed
}

// cycleBroken reports whether any cycle participant was already evicted in
// this pass.
func cycleBroken(cycle []string, evicted map[string]bool) bool {
	for _, owner := range cycle {
		if evicted[owner] {
			return true
		}
	}
	return false
}

// findCycles runs a DFS with an explicit recursion stack over the wait-for
// graph and returns each cycle found as the path suffix from the first
// revisited node. Nodes are visited in sorted order for determinism.
func findCycles(edges map[string][]string) [][]string {
	var nodes []string
	inGraph := make(map[string]bool)
	addNode := func(n string) {
		if !inGraph[n] {
			inGraph[n] = true
			nodes = append(nodes, n)
		}
	}
	for from, tos := range edges {
		addNode(from)
		for _, to := range tos {
			addNode(to)
		}
	}
	sort.Strings(nodes)

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	stackPos := make(map[string]int)
	var path []string
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		visited[node] = true
		onStack[node] = true
		stackPos[node] = len(path)
		path = append(path, node)

		for _, next := range edges[node] {
			if onStack[next] {
				// Back edge: the path suffix from next is a cycle.
				cycle := make([]string, len(path)-stackPos[next])
				copy(cycle, path[stackPos[next]:])
				cycles = append(cycles, cycle)
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}

		path = path[:len(path)-1]
		onStack[node] = false
	}

	for _, node := range nodes {
		if !visited[node] {
			visit(node)
		}
	}
	return cycles
}
