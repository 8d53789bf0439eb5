package coordination

import (
	"context"
	"errors"
	"sync"

	"github.com/orchflow/orchflow/internal/breaker"
	"github.com/orchflow/orchflow/internal/config"
	"github.com/orchflow/orchflow/internal/event"
	"github.com/orchflow/orchflow/internal/logging"
	"github.com/orchflow/orchflow/internal/reslock"
	"github.com/orchflow/orchflow/internal/worker"
)

// Config holds required dependencies for creating a Hub.
type Config struct {
	Bus    *event.Bus
	Config *config.Config
	Logger *logging.Logger
}

// Hub wires the coordination core together for a single run: the resource
// lock manager, the circuit breaker registry, and the worker supervisor, all
// sharing one event bus. It owns the lifecycle of the deadlock detector and
// the optional config watcher.
type Hub struct {
	mu      sync.RWMutex
	started bool
	cancel  context.CancelFunc

	bus      *event.Bus
	cfg      *config.Config
	logger   *logging.Logger
	locks    *reslock.Manager
	breakers *breaker.Registry

	// supervisor is rebuilt on every Start so its task pool binds to the
	// current run's context.
	supervisor *worker.Supervisor

	watchConfig bool
	onReload    func(*config.Config)
}

// New creates a Hub with components configured from cfg.Config.
func New(cfg Config, opts ...Option) (*Hub, error) {
	if cfg.Bus == nil {
		return nil, errors.New("coordination: Bus is required")
	}
	if cfg.Config == nil {
		cfg.Config = config.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	hc := &hubConfig{}
	for _, opt := range opts {
		opt(hc)
	}

	lockCfg := cfg.Config.Lock
	locks := reslock.NewManager(cfg.Bus,
		reslock.WithLogger(cfg.Logger),
		reslock.WithDetectionInterval(lockCfg.DeadlockCheckInterval()),
		reslock.WithDefaultWaitTimeout(lockCfg.DefaultWaitTimeout()),
		reslock.WithQueueDepthWarn(lockCfg.MaxQueueDepthWarn),
	)

	brkCfg := cfg.Config.Breaker
	breakers := breaker.NewRegistry(cfg.Bus,
		breaker.WithLogger(cfg.Logger),
		breaker.WithDefaults(breaker.Config{
			FailureThreshold: brkCfg.FailureThreshold,
			SuccessThreshold: brkCfg.SuccessThreshold,
			Timeout:          brkCfg.Timeout(),
			ResetTimeout:     brkCfg.ResetTimeout(),
		}),
	)

	return &Hub{
		bus:         cfg.Bus,
		cfg:         cfg.Config,
		logger:      cfg.Logger.WithComponent("coordination"),
		locks:       locks,
		breakers:    breakers,
		watchConfig: hc.watchConfig,
		onReload:    hc.onReload,
	}, nil
}

// Bus returns the shared event bus.
func (h *Hub) Bus() *event.Bus { return h.bus }

// Locks returns the resource lock manager.
func (h *Hub) Locks() *reslock.Manager { return h.locks }

// Breakers returns the circuit breaker registry.
func (h *Hub) Breakers() *breaker.Registry { return h.breakers }

// Supervisor returns the worker supervisor for the current run, or nil if
// the hub is not started.
func (h *Hub) Supervisor() *worker.Supervisor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.supervisor
}

// Start launches the deadlock detector and, when enabled, the config
// watcher, and builds the run's worker supervisor.
// Returns an error if the hub is already started.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return errors.New("coordination: hub already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.started = true

	h.locks.Start(ctx)

	h.supervisor = worker.NewSupervisor(ctx, h.locks, h.breakers, h.bus,
		worker.WithLogger(h.logger),
		worker.WithMaxConcurrent(h.cfg.Worker.MaxConcurrent),
		worker.WithDefaultPriority(h.cfg.Worker.AcquirePriority),
	)

	if h.watchConfig {
		config.Watch(h.bus, h.onReload)
	}

	h.logger.Info("hub started")
	return nil
}

// Stop shuts down in reverse order: cancel the run context, drain the
// supervisor, then halt the deadlock detector. It is idempotent. Breakers
// stay registered so their state survives a restart.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	h.cancel()
	supervisor := h.supervisor
	h.supervisor = nil
	h.started = false
	h.mu.Unlock()

	var err error
	if supervisor != nil {
		err = supervisor.Wait()
	}
	h.locks.Stop()

	h.logger.Info("hub stopped")
	return err
}

// Close stops the hub and tears down the breaker registry, cancelling any
// pending breaker timers. The hub is unusable afterward.
func (h *Hub) Close() error {
	err := h.Stop()
	h.breakers.Destroy()
	return err
}

// Running returns whether the hub is currently started.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}
