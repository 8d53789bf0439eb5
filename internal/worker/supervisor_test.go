package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orchflow/orchflow/internal/breaker"
	"github.com/orchflow/orchflow/internal/errors"
	"github.com/orchflow/orchflow/internal/event"
	"github.com/orchflow/orchflow/internal/reslock"
)

type fixture struct {
	bus      *event.Bus
	locks    *reslock.Manager
	breakers *breaker.Registry
}

func newFixture(t *testing.T, resources ...string) *fixture {
	t.Helper()
	bus := event.NewBus()
	locks := reslock.NewManager(bus)
	for _, id := range resources {
		locks.RegisterResource(reslock.Resource{ID: id, Kind: reslock.KindFile, Name: id})
	}
	breakers := breaker.NewRegistry(bus)
	t.Cleanup(breakers.Destroy)
	return &fixture{bus: bus, locks: locks, breakers: breakers}
}

func (f *fixture) supervisor(t *testing.T, opts ...SupervisorOption) *Supervisor {
	t.Helper()
	return NewSupervisor(context.Background(), f.locks, f.breakers, f.bus, opts...)
}

func TestRunsTaskWithClaims(t *testing.T) {
	f := newFixture(t, "a", "b")
	s := f.supervisor(t)

	var heldDuringRun int
	s.Go(Task{
		ID:       "t1",
		WorkerID: "w1",
		Claims:   []Claim{{ResourceID: "b"}, {ResourceID: "a"}},
		Run: func(ctx context.Context) error {
			heldDuringRun = len(f.locks.State().Locks)
			return nil
		},
	})
	if err := s.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}

	if heldDuringRun != 2 {
		t.Errorf("locks held during run = %d, want 2", heldDuringRun)
	}
	if n := len(f.locks.State().Locks); n != 0 {
		t.Errorf("locks held after exit = %d, want 0", n)
	}
}

func TestReleasesLocksOnTaskError(t *testing.T) {
	f := newFixture(t, "a")
	s := f.supervisor(t)

	wantErr := stderrors.New("task blew up")
	s.Go(Task{
		ID:       "t1",
		WorkerID: "w1",
		Claims:   []Claim{{ResourceID: "a"}},
		Run: func(ctx context.Context) error {
			return wantErr
		},
	})

	err := s.Wait()
	if !stderrors.Is(err, wantErr) {
		t.Fatalf("Wait() = %v, want wrapped %v", err, wantErr)
	}
	if n := len(f.locks.State().Locks); n != 0 {
		t.Errorf("locks held after failed task = %d, want 0", n)
	}
}

func TestClaimTimeoutFailsTask(t *testing.T) {
	f := newFixture(t, "a")

	ok, err := f.locks.Acquire(context.Background(), "a", "outsider")
	if err != nil || !ok {
		t.Fatalf("setup Acquire() = (%v, %v)", ok, err)
	}

	s := f.supervisor(t)
	ran := false
	s.Go(Task{
		ID:          "t1",
		WorkerID:    "w1",
		Claims:      []Claim{{ResourceID: "a"}},
		WaitTimeout: 30 * time.Millisecond,
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})

	err = s.Wait()
	if !stderrors.Is(err, errors.ErrWaitTimeout) {
		t.Fatalf("Wait() = %v, want ErrWaitTimeout", err)
	}
	if ran {
		t.Error("task body ran despite unacquired claim")
	}

	f.locks.Release("a", "outsider")
}

func TestRunsThroughBreaker(t *testing.T) {
	f := newFixture(t)
	f.breakers.GetOrCreate("flaky", breaker.Config{FailureThreshold: 1, ResetTimeout: time.Minute})

	s := f.supervisor(t)
	boom := stderrors.New("boom")
	s.Go(Task{ID: "t1", WorkerID: "w1", Breaker: "flaky", Run: func(ctx context.Context) error {
		return boom
	}})
	if err := s.Wait(); !stderrors.Is(err, boom) {
		t.Fatalf("Wait() = %v, want %v", err, boom)
	}

	// The breaker tripped; the next task is rejected without running.
	s2 := f.supervisor(t)
	ran := false
	s2.Go(Task{ID: "t2", WorkerID: "w2", Breaker: "flaky", Run: func(ctx context.Context) error {
		ran = true
		return nil
	}})
	if err := s2.Wait(); !stderrors.Is(err, errors.ErrCircuitOpen) {
		t.Fatalf("Wait() = %v, want ErrCircuitOpen", err)
	}
	if ran {
		t.Error("task body ran while breaker open")
	}
}

func TestMaxConcurrent(t *testing.T) {
	f := newFixture(t)
	s := f.supervisor(t, WithMaxConcurrent(2))

	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	for i := 0; i < 8; i++ {
		s.Go(Task{ID: "t", WorkerID: "w", Run: func(ctx context.Context) error {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}})
	}
	if err := s.Wait(); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestLifecycleEvents(t *testing.T) {
	f := newFixture(t, "a")

	var (
		mu       sync.Mutex
		started  []event.WorkerStartedEvent
		finished []event.WorkerFinishedEvent
	)
	f.bus.Subscribe(event.TypeWorkerStarted, func(e event.Event) {
		mu.Lock()
		started = append(started, e.(event.WorkerStartedEvent))
		mu.Unlock()
	})
	f.bus.Subscribe(event.TypeWorkerFinished, func(e event.Event) {
		mu.Lock()
		finished = append(finished, e.(event.WorkerFinishedEvent))
		mu.Unlock()
	})

	s := f.supervisor(t)
	s.Go(Task{ID: "good", WorkerID: "w1", Claims: []Claim{{ResourceID: "a"}}, Run: func(ctx context.Context) error {
		return nil
	}})
	s.Wait()

	s2 := f.supervisor(t)
	s2.Go(Task{ID: "bad", WorkerID: "w2", Run: func(ctx context.Context) error {
		return stderrors.New("nope")
	}})
	s2.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(started) != 2 || len(finished) != 2 {
		t.Fatalf("events = %d started / %d finished, want 2/2", len(started), len(finished))
	}
	byTask := make(map[string]event.WorkerFinishedEvent)
	for _, e := range finished {
		byTask[e.TaskID] = e
	}
	if !byTask["good"].Success {
		t.Error("good task reported Success = false")
	}
	if byTask["bad"].Success || byTask["bad"].Error == "" {
		t.Errorf("bad task event = %+v, want failure with message", byTask["bad"])
	}
}

func TestSortedClaimOrderAvoidsDeadlock(t *testing.T) {
	f := newFixture(t, "a", "b")
	s := f.supervisor(t)

	// Two tasks declare the same resources in opposite order. Sorted
	// acquisition means they serialize instead of deadlocking.
	for i := 0; i < 2; i++ {
		i := i
		claims := []Claim{{ResourceID: "a"}, {ResourceID: "b"}}
		if i == 1 {
			claims = []Claim{{ResourceID: "b"}, {ResourceID: "a"}}
		}
		s.Go(Task{ID: "t", WorkerID: string(rune('x' + i)), Claims: claims, Run: func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			return nil
		}})
	}

	done := make(chan error, 1)
	go func() { done <- s.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tasks deadlocked despite sorted claim order")
	}
}

func TestContextCancellationStopsTasks(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSupervisor(ctx, f.locks, f.breakers, f.bus)

	s.Go(Task{ID: "t", WorkerID: "w", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	cancel()
	err := s.Wait()
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}
