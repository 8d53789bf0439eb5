package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestLockError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *LockError
		want string
	}{
		{
			name: "bare",
			err:  NewLockError("acquire failed", nil),
			want: "lock error: acquire failed",
		},
		{
			name: "with cause",
			err:  NewLockError("acquire failed", ErrResourceNotRegistered),
			want: "lock error: acquire failed: resource not registered",
		},
		{
			name: "with context",
			err:  NewLockError("acquire failed", ErrLockHeld).WithResource("db").WithOwner("worker-1"),
			want: "lock error [resource=db, owner=worker-1]: acquire failed: owner already holds a lock on this resource",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLockError_Is(t *testing.T) {
	err := NewLockError("acquire failed", ErrResourceNotRegistered).WithResource("db")

	if !Is(err, ErrResourceNotRegistered) {
		t.Error("LockError should match its sentinel cause")
	}
	if Is(err, ErrLockHeld) {
		t.Error("LockError should not match an unrelated sentinel")
	}

	var lockErr *LockError
	if !As(err, &lockErr) {
		t.Error("As should find the LockError")
	}
	if lockErr.ResourceID != "db" {
		t.Errorf("ResourceID = %q, want db", lockErr.ResourceID)
	}
}

func TestBreakerError_Is(t *testing.T) {
	err := NewBreakerError("call rejected", ErrCircuitOpen).WithBreaker("spawn").WithState("OPEN")

	if !Is(err, ErrCircuitOpen) {
		t.Error("BreakerError should match ErrCircuitOpen")
	}

	var brkErr *BreakerError
	if !As(err, &brkErr) {
		t.Fatal("As should find the BreakerError")
	}
	if brkErr.Breaker != "spawn" || brkErr.State != "OPEN" {
		t.Errorf("Context = (%s, %s), want (spawn, OPEN)", brkErr.Breaker, brkErr.State)
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("spawn", 500*time.Millisecond)

	if !Is(err, ErrTimeout) {
		t.Error("TimeoutError should match ErrTimeout")
	}
	if !IsRetryable(err) {
		t.Error("TimeoutError should be retryable")
	}

	want := `operation "spawn" timed out after 500ms`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"wait timeout", ErrWaitTimeout, true},
		{"evicted", ErrEvicted, true},
		{"circuit open", ErrCircuitOpen, true},
		{"probe in flight", ErrProbeInFlight, true},
		{"unregistered resource", ErrResourceNotRegistered, false},
		{"duplicate breaker", ErrBreakerExists, false},
		{"wrapped circuit open", fmt.Errorf("execute: %w", ErrCircuitOpen), true},
		{"lock error on wait timeout", NewLockError("claim not granted", ErrWaitTimeout), true},
		{"lock error on eviction", NewLockError("deadlock victim", ErrEvicted), true},
		{"lock error on re-request", NewLockError("acquire rejected", ErrLockHeld), false},
		{"lock error on unregistered", NewLockError("acquire failed", ErrResourceNotRegistered), false},
		{"lock error on wrapped timeout", NewLockError("claim", fmt.Errorf("resource db: %w", ErrWaitTimeout)), true},
		{"plain error", New("boom"), false},
		{"nil-adjacent unknown", fmt.Errorf("other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsContention(t *testing.T) {
	if !IsContention(ErrWaitTimeout) || !IsContention(ErrEvicted) {
		t.Error("wait timeout and eviction are contention outcomes")
	}
	if IsContention(ErrCircuitOpen) {
		t.Error("circuit open is an isolation failure, not contention")
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(NewBreakerError("x", nil)); got != SeverityWarning {
		t.Errorf("BreakerError severity = %v, want warning", got)
	}
	if got := GetSeverity(New("plain")); got != SeverityError {
		t.Errorf("plain error severity = %v, want error", got)
	}
	if got := GetSeverity(NewLockError("x", nil).WithSeverity(SeverityCritical)); got != SeverityCritical {
		t.Errorf("overridden severity = %v, want critical", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	err := Wrap(ErrCircuitOpen, "execute")
	if !Is(err, ErrCircuitOpen) {
		t.Error("wrapped error should match its sentinel")
	}
	if err.Error() != "execute: circuit breaker is open" {
		t.Errorf("Error() = %q", err.Error())
	}

	err = Wrapf(ErrWaitTimeout, "acquire %s", "db")
	if !Is(err, ErrWaitTimeout) {
		t.Error("Wrapf result should match its sentinel")
	}
}

func TestSeverityString(t *testing.T) {
	tests := []struct {
		s    Severity
		want string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
