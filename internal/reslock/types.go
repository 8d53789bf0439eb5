package reslock

import (
	"time"
)

// Kind classifies a registered resource.
type Kind string

const (
	// KindFile identifies a file or directory resource.
	KindFile Kind = "file"
	// KindPort identifies a network port resource.
	KindPort Kind = "port"
	// KindTerminal identifies a pseudo-terminal resource.
	KindTerminal Kind = "terminal"
	// KindProcess identifies an external process resource.
	KindProcess Kind = "process"
	// KindCustom identifies an application-defined resource.
	KindCustom Kind = "custom"
)

// Mode is the sharing mode of a lock.
type Mode string

const (
	// ModeShared coexists with other shared locks on the same resource.
	ModeShared Mode = "shared"
	// ModeExclusive excludes all other locks on the same resource.
	ModeExclusive Mode = "exclusive"
)

// Resource describes a lockable resource. Resources are registered once and
// are immutable for the lifetime of the manager.
type Resource struct {
	ID       string            // Unique identifier, the key for lock requests
	Kind     Kind              // What sort of resource this is
	Name     string            // Human-readable display name
	Metadata map[string]string // Optional caller-defined annotations
}

// Lock is a held lock on a resource.
type Lock struct {
	ResourceID string        // Resource the lock covers
	OwnerID    string        // Owner holding the lock
	Mode       Mode          // shared or exclusive
	Priority   int           // Priority the lock was requested with
	AcquiredAt time.Time     // When the lock was granted
	Timeout    time.Duration // Auto-release deadline, 0 = none

	timer *time.Timer // pending auto-release, nil if Timeout is 0
}

// LockInfo is an observable copy of a held lock, decorated with the
// resource's display name.
type LockInfo struct {
	ResourceID   string
	ResourceName string
	OwnerID      string
	Mode         Mode
	Priority     int
	AcquiredAt   time.Time
}

// WaitInfo is an observable copy of a queued request, decorated with the
// resource's display name.
type WaitInfo struct {
	ResourceID   string
	ResourceName string
	OwnerID      string
	Mode         Mode
	Priority     int
	RequestedAt  time.Time
}

// StateSnapshot is a read-only view of the manager for observability and
// tests. Taking a snapshot has no side effects.
type StateSnapshot struct {
	Resources []Resource // Registered resources, sorted by ID
	Locks     []LockInfo // Held locks, sorted by resource then owner
	Waiting   []WaitInfo // Queued requests in grant order per resource
}
