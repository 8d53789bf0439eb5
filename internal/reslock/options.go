package reslock

import (
	"time"

	"github.com/orchflow/orchflow/internal/logging"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for diagnostics. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l.WithComponent("reslock") }
}

// WithDetectionInterval sets how often the deadlock detector scans the
// wait-for graph. Shorter intervals bound detection latency at the cost of
// CPU. Defaults to one second.
func WithDetectionInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.detectInterval = d
		}
	}
}

// WithDefaultWaitTimeout sets the wait timeout applied to Acquire calls that
// don't specify their own. Zero (the default) means wait indefinitely.
func WithDefaultWaitTimeout(d time.Duration) Option {
	return func(m *Manager) { m.defaultWait = d }
}

// WithQueueDepthWarn logs a warning when a resource's wait queue grows past
// the given depth. Zero disables the warning.
func WithQueueDepthWarn(n int) Option {
	return func(m *Manager) { m.queueDepthWarn = n }
}

// acquireOptions holds per-request settings for Acquire.
type acquireOptions struct {
	mode        Mode
	priority    int
	waitTimeout time.Duration
	holdTimeout time.Duration
	waitSet     bool
}

// AcquireOption configures a single Acquire call.
type AcquireOption func(*acquireOptions)

// WithMode sets the lock mode. Defaults to ModeExclusive.
func WithMode(mode Mode) AcquireOption {
	return func(o *acquireOptions) { o.mode = mode }
}

// Shared is shorthand for WithMode(ModeShared).
func Shared() AcquireOption {
	return func(o *acquireOptions) { o.mode = ModeShared }
}

// WithPriority sets the request's queue priority. Higher values are granted
// first. Defaults to 0.
func WithPriority(p int) AcquireOption {
	return func(o *acquireOptions) { o.priority = p }
}

// WithWaitTimeout bounds how long the request waits in the queue before
// resolving false. Zero means wait indefinitely. Overrides the manager's
// default wait timeout for this call.
func WithWaitTimeout(d time.Duration) AcquireOption {
	return func(o *acquireOptions) {
		o.waitTimeout = d
		o.waitSet = true
	}
}

// WithHoldTimeout auto-releases the lock after the given duration if the
// owner has not released it. Zero (the default) means no auto-release.
func WithHoldTimeout(d time.Duration) AcquireOption {
	return func(o *acquireOptions) { o.holdTimeout = d }
}
