package internal

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/orchflow/orchflow/internal/breaker"
	"github.com/orchflow/orchflow/internal/errors"
	"github.com/orchflow/orchflow/internal/event"
	"github.com/orchflow/orchflow/internal/reslock"
)

// TestSharedRequestTimesOutBehindExclusive exercises the lock manager end to
// end: an exclusive lock on "db" is held by A and never released, so B's
// shared request with a 100ms wait timeout queues and resolves false after
// roughly that long.
func TestSharedRequestTimesOutBehindExclusive(t *testing.T) {
	m := reslock.NewManager(event.NewBus())
	t.Cleanup(m.Stop)
	m.RegisterResource(reslock.Resource{ID: "db", Kind: reslock.KindCustom, Name: "db"})

	ok, err := m.Acquire(context.Background(), "db", "A")
	if err != nil || !ok {
		t.Fatalf("A Acquire() = (%v, %v), want (true, nil)", ok, err)
	}

	start := time.Now()
	ok, err = m.Acquire(context.Background(), "db", "B",
		reslock.Shared(), reslock.WithWaitTimeout(100*time.Millisecond))
	elapsed := time.Since(start)

	if err != nil || ok {
		t.Fatalf("B Acquire() = (%v, %v), want (false, nil)", ok, err)
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("B resolved after %v, want >= 100ms", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("B resolved after %v, want roughly the wait timeout", elapsed)
	}
}

// TestBreakerTripsAfterTwoFailures exercises the breaker end to end with
// failureThreshold 2: two rejecting calls trip it, and the third is rejected
// immediately without the wrapped operation running.
func TestBreakerTripsAfterTwoFailures(t *testing.T) {
	r := breaker.NewRegistry(event.NewBus())
	t.Cleanup(r.Destroy)

	cb := r.GetOrCreate("svc", breaker.Config{
		FailureThreshold: 2,
		Timeout:          time.Second,
		ResetTimeout:     time.Minute,
	})

	boom := stderrors.New("rejected")
	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return boom
		})
		if !stderrors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want %v", i+1, err, boom)
		}
	}

	if got := cb.State(); got != breaker.StateOpen {
		t.Fatalf("state after 2 failures = %s, want %s", got, breaker.StateOpen)
	}

	invoked := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if !stderrors.Is(err, errors.ErrCircuitOpen) {
		t.Errorf("third call error = %v, want ErrCircuitOpen", err)
	}
	if invoked {
		t.Error("wrapped operation ran while breaker open")
	}
}
