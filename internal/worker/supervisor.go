// Package worker supervises task execution against the locking and
// failure-isolation core: each task declares the resources it touches, the
// supervisor acquires them in a stable order, runs the task body through a
// circuit breaker, and releases everything when the task exits.
package worker

import (
	"context"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/orchflow/orchflow/internal/breaker"
	"github.com/orchflow/orchflow/internal/errors"
	"github.com/orchflow/orchflow/internal/event"
	"github.com/orchflow/orchflow/internal/logging"
	"github.com/orchflow/orchflow/internal/reslock"
)

// Claim declares a resource a task needs and how it will use it.
type Claim struct {
	ResourceID string
	Mode       reslock.Mode
}

// Task is a unit of supervised work.
type Task struct {
	// ID identifies the task in events and logs.
	ID string
	// WorkerID is the lock owner identity the task runs under. Two tasks
	// sharing a WorkerID must not run concurrently.
	WorkerID string
	// Claims are the resources to lock before Run is invoked.
	Claims []Claim
	// Breaker names the circuit breaker Run executes through. Empty means
	// no breaker.
	Breaker string
	// Priority is the lock priority for every claim.
	Priority int
	// WaitTimeout bounds each lock acquisition. 0 uses the manager default.
	WaitTimeout time.Duration
	// Run is the task body. It runs only once every claim is held.
	Run func(ctx context.Context) error
}

// Supervisor runs tasks concurrently, mediating all resource access through
// the lock manager and breaker registry.
type Supervisor struct {
	locks    *reslock.Manager
	breakers *breaker.Registry
	bus      *event.Bus
	logger   *logging.Logger

	defaultPriority int
	maxConcurrent   int
	pool            *pool.ContextPool
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithLogger sets the supervisor's logger.
func WithLogger(logger *logging.Logger) SupervisorOption {
	return func(s *Supervisor) { s.logger = logger }
}

// WithMaxConcurrent caps how many tasks run at once. 0 means unlimited.
func WithMaxConcurrent(n int) SupervisorOption {
	return func(s *Supervisor) { s.maxConcurrent = n }
}

// WithDefaultPriority sets the lock priority applied to tasks that don't set
// their own.
func WithDefaultPriority(p int) SupervisorOption {
	return func(s *Supervisor) { s.defaultPriority = p }
}

// NewSupervisor creates a Supervisor bound to ctx. Cancelling ctx cancels
// every running task's context.
func NewSupervisor(ctx context.Context, locks *reslock.Manager, breakers *breaker.Registry, bus *event.Bus, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		locks:    locks,
		breakers: breakers,
		bus:      bus,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.logger = s.logger.WithComponent("worker")

	p := pool.New()
	if s.maxConcurrent > 0 {
		p = p.WithMaxGoroutines(s.maxConcurrent)
	}
	s.pool = p.WithErrors().WithContext(ctx)
	return s
}

// Go schedules a task. It returns immediately; the task's outcome surfaces
// through Wait and the worker.finished event.
func (s *Supervisor) Go(task Task) {
	s.pool.Go(func(ctx context.Context) error {
		return s.runTask(ctx, task)
	})
}

// Wait blocks until every scheduled task has finished and returns their
// errors joined. Recovered task panics are rethrown by the pool.
func (s *Supervisor) Wait() error {
	return s.pool.Wait()
}

// runTask acquires the task's claims, runs the body, and guarantees release.
func (s *Supervisor) runTask(ctx context.Context, task Task) error {
	logger := s.logger.WithWorker(task.WorkerID).With("task_id", task.ID)

	s.publish(event.NewWorkerStartedEvent(task.WorkerID, task.ID))
	logger.Info("task started")

	err := s.execute(ctx, task, logger)

	// Unconditional: covers early returns, task errors, and anything the
	// task acquired on its own through the manager.
	if n := s.locks.ReleaseAll(task.WorkerID); n > 0 {
		logger.Debug("released locks on exit", "count", n)
	}

	if err != nil {
		logger.Warn("task failed", "error", err.Error())
		s.publish(event.NewWorkerFinishedEvent(task.WorkerID, task.ID, false, err.Error()))
		return errors.Wrapf(err, "task %s", task.ID)
	}
	logger.Info("task finished")
	s.publish(event.NewWorkerFinishedEvent(task.WorkerID, task.ID, true, ""))
	return nil
}

func (s *Supervisor) execute(ctx context.Context, task Task, logger *logging.Logger) error {
	if err := s.acquireClaims(ctx, task, logger); err != nil {
		return err
	}

	if task.Run == nil {
		return nil
	}
	if task.Breaker != "" && s.breakers != nil {
		return s.breakers.Execute(ctx, task.Breaker, task.Run)
	}
	return task.Run(ctx)
}

// acquireClaims locks the task's resources in sorted-ID order. Every task
// claiming multiple resources uses the same order, which removes the
// lock-ordering deadlocks between supervised tasks.
func (s *Supervisor) acquireClaims(ctx context.Context, task Task, logger *logging.Logger) error {
	claims := make([]Claim, len(task.Claims))
	copy(claims, task.Claims)
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].ResourceID < claims[j].ResourceID
	})

	priority := task.Priority
	if priority == 0 {
		priority = s.defaultPriority
	}

	for _, c := range claims {
		mode := c.Mode
		if mode == "" {
			mode = reslock.ModeExclusive
		}
		opts := []reslock.AcquireOption{
			reslock.WithMode(mode),
			reslock.WithPriority(priority),
		}
		if task.WaitTimeout > 0 {
			opts = append(opts, reslock.WithWaitTimeout(task.WaitTimeout))
		}

		ok, err := s.locks.Acquire(ctx, c.ResourceID, task.WorkerID, opts...)
		if err != nil {
			return err
		}
		if !ok {
			logger.Debug("claim not granted", "resource_id", c.ResourceID)
			return errors.NewLockError("claim not granted", errors.ErrWaitTimeout).
				WithResource(c.ResourceID).WithOwner(task.WorkerID)
		}
	}
	return nil
}

func (s *Supervisor) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
