package coordination

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/orchflow/orchflow/internal/config"
	"github.com/orchflow/orchflow/internal/event"
	"github.com/orchflow/orchflow/internal/reslock"
	"github.com/orchflow/orchflow/internal/worker"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h, err := New(Config{Bus: event.NewBus()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestNewRequiresBus(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() without bus = nil error, want error")
	}
}

func TestNewDefaultsConfig(t *testing.T) {
	h := newTestHub(t)

	if h.Locks() == nil || h.Breakers() == nil || h.Bus() == nil {
		t.Error("hub components not wired")
	}
	if h.Supervisor() != nil {
		t.Error("Supervisor() != nil before Start")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	h := newTestHub(t)

	if h.Running() {
		t.Fatal("Running() = true before Start")
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !h.Running() {
		t.Fatal("Running() = false after Start")
	}
	if h.Supervisor() == nil {
		t.Fatal("Supervisor() = nil after Start")
	}

	if err := h.Start(context.Background()); err == nil {
		t.Error("second Start() = nil error, want already-started error")
	}

	if err := h.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if h.Running() {
		t.Error("Running() = true after Stop")
	}
	if err := h.Stop(); err != nil {
		t.Errorf("repeated Stop() error = %v", err)
	}
}

func TestRestartAfterStop(t *testing.T) {
	h := newTestHub(t)

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
}

func TestConfigFlowsIntoComponents(t *testing.T) {
	cfg := config.Default()
	cfg.Breaker.FailureThreshold = 1
	cfg.Breaker.ResetTimeoutMs = 60_000

	h, err := New(Config{Bus: event.NewBus(), Config: cfg})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { h.Close() })

	cb := h.Breakers().GetOrCreate("svc")
	cb.Execute(context.Background(), func(ctx context.Context) error {
		return stderrors.New("boom")
	})

	// One failure trips the breaker: the hub's config reached the registry.
	if got := cb.State(); got != "OPEN" {
		t.Errorf("state after 1 failure = %s, want OPEN", got)
	}
}

func TestEndToEndTaskRun(t *testing.T) {
	h := newTestHub(t)
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	h.Locks().RegisterResource(reslock.Resource{ID: "db", Kind: reslock.KindCustom, Name: "db"})

	ran := make(chan struct{})
	h.Supervisor().Go(worker.Task{
		ID:       "t1",
		WorkerID: "w1",
		Claims:   []worker.Claim{{ResourceID: "db"}},
		Breaker:  "db-ops",
		Run: func(ctx context.Context) error {
			close(ran)
			return nil
		},
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}

	if err := h.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if n := len(h.Locks().State().Locks); n != 0 {
		t.Errorf("locks held after Stop = %d, want 0", n)
	}
}

func TestDeadlockResolvedThroughHub(t *testing.T) {
	cfg := config.Default()
	cfg.Lock.DeadlockCheckIntervalMs = 10

	h, err := New(Config{Bus: event.NewBus(), Config: cfg})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { h.Close() })
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	locks := h.Locks()
	locks.RegisterResource(reslock.Resource{ID: "a", Kind: reslock.KindFile})
	locks.RegisterResource(reslock.Resource{ID: "b", Kind: reslock.KindFile})

	locks.Acquire(context.Background(), "a", "w1")
	locks.Acquire(context.Background(), "b", "w2")

	done := make(chan struct{}, 2)
	go func() {
		locks.Acquire(context.Background(), "b", "w1")
		done <- struct{}{}
	}()
	go func() {
		locks.Acquire(context.Background(), "a", "w2")
		done <- struct{}{}
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("deadlock never resolved by the hub's detector")
		}
	}
}
