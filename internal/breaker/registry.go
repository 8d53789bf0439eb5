package breaker

import (
	"context"
	"sort"
	"sync"

	"github.com/orchflow/orchflow/internal/errors"
	"github.com/orchflow/orchflow/internal/event"
	"github.com/orchflow/orchflow/internal/logging"
)

// Registry manages named circuit breakers so that independent operation
// classes fail independently. Safe for concurrent use.
type Registry struct {
	bus      *event.Bus
	logger   *logging.Logger
	defaults Config

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry's logger, shared with the breakers it creates.
func WithLogger(logger *logging.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithDefaults sets the configuration applied to breakers created without an
// explicit config.
func WithDefaults(cfg Config) RegistryOption {
	return func(r *Registry) { r.defaults = cfg }
}

// NewRegistry creates an empty breaker registry publishing to bus.
func NewRegistry(bus *event.Bus, opts ...RegistryOption) *Registry {
	r := &Registry{
		bus:      bus,
		breakers: make(map[string]*CircuitBreaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	return r
}

// Create registers a new breaker under cfg.Name. Fails with
// errors.ErrBreakerExists if the name is taken.
func (r *Registry) Create(cfg Config) (*CircuitBreaker, error) {
	if cfg.Name == "" {
		return nil, errors.NewBreakerError("breaker name required", errors.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.breakers[cfg.Name]; ok {
		return nil, errors.NewBreakerError("create failed", errors.ErrBreakerExists).
			WithBreaker(cfg.Name)
	}
	cb := New(r.withRegistryDefaults(cfg), r.bus, r.logger)
	r.breakers[cfg.Name] = cb
	r.logger.Debug("breaker created", "breaker", cfg.Name)
	return cb, nil
}

// Get returns the named breaker, or an errors.ErrBreakerNotFound error.
func (r *Registry) Get(name string) (*CircuitBreaker, error) {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewBreakerError("get failed", errors.ErrBreakerNotFound).
			WithBreaker(name)
	}
	return cb, nil
}

// GetOrCreate returns the named breaker, creating it with cfg (or the
// registry defaults) on first use. The common entry point for callers that
// don't manage breaker lifecycles themselves.
func (r *Registry) GetOrCreate(name string, cfg ...Config) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have created it between the two locks.
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	c := r.defaults
	if len(cfg) > 0 {
		c = cfg[0]
	}
	c.Name = name
	cb = New(r.withRegistryDefaults(c), r.bus, r.logger)
	r.breakers[name] = cb
	r.logger.Debug("breaker created", "breaker", name)
	return cb
}

// Execute runs op through the named breaker, creating it on demand with the
// registry defaults.
func (r *Registry) Execute(ctx context.Context, name string, op Operation) error {
	return r.GetOrCreate(name).Execute(ctx, op)
}

// Names returns the registered breaker names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllStats returns a snapshot of every registered breaker, keyed by name.
func (r *Registry) AllStats() map[string]Stats {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	stats := make(map[string]Stats, len(breakers))
	for _, cb := range breakers {
		stats[cb.Name()] = cb.Stats()
	}
	return stats
}

// ResetAll force-resets every registered breaker.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}

// Destroy tears down every breaker and empties the registry.
func (r *Registry) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, cb := range r.breakers {
		cb.Destroy()
		delete(r.breakers, name)
	}
}

// withRegistryDefaults fills zero fields of cfg from the registry defaults
// before package defaults apply.
func (r *Registry) withRegistryDefaults(cfg Config) Config {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = r.defaults.FailureThreshold
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = r.defaults.SuccessThreshold
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = r.defaults.Timeout
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = r.defaults.ResetTimeout
	}
	return cfg
}
