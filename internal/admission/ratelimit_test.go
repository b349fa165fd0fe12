package admission

import (
	"testing"
	"time"
)

func TestRateLimiterPerActorBudget(t *testing.T) {
	base := time.Unix(1000, 0)
	limiter := NewRateLimiter(time.Minute, 10, 3)

	for i := 0; i < 3; i++ {
		ok, _ := limiter.Admit("alice", base)
		if !ok {
			t.Fatalf("expected admission %d to pass", i+1)
		}
		limiter.Record("alice", base)
	}

	ok, retry := limiter.Admit("alice", base.Add(time.Second))
	if ok {
		t.Fatalf("expected fourth admission in one window to be rejected")
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("unexpected retry hint %s", retry)
	}

	// A different actor still has budget.
	if ok, _ := limiter.Admit("bob", base.Add(time.Second)); !ok {
		t.Fatalf("expected other actor to be admitted")
	}
}

func TestRateLimiterGlobalBudget(t *testing.T) {
	base := time.Unix(1000, 0)
	limiter := NewRateLimiter(time.Minute, 2, 5)

	limiter.Record("a", base)
	limiter.Record("b", base)

	ok, retry := limiter.Admit("c", base)
	if ok {
		t.Fatalf("expected global budget to reject a fresh actor")
	}
	if retry <= 0 {
		t.Fatalf("expected a positive retry hint, got %s", retry)
	}
}

func TestRateLimiterWindowRollover(t *testing.T) {
	base := time.Unix(1000, 0)
	limiter := NewRateLimiter(time.Minute, 10, 1)

	limiter.Record("alice", base)
	if ok, _ := limiter.Admit("alice", base.Add(30*time.Second)); ok {
		t.Fatalf("expected rejection inside the window")
	}
	if ok, _ := limiter.Admit("alice", base.Add(time.Minute)); !ok {
		t.Fatalf("expected the counter to reset wholesale at the window boundary")
	}
}

func TestRateLimiterRetryHintUsesLargerWindow(t *testing.T) {
	base := time.Unix(1000, 0)
	limiter := NewRateLimiter(time.Minute, 1, 1)

	limiter.Record("alice", base)
	// Both windows are exhausted; the hint must cover the longer wait.
	ok, retry := limiter.Admit("alice", base.Add(10*time.Second))
	if ok {
		t.Fatalf("expected rejection")
	}
	if retry != 50*time.Second {
		t.Fatalf("expected 50s retry hint, got %s", retry)
	}
}

func TestRateLimiterSweepPurgesIdleActors(t *testing.T) {
	base := time.Unix(1000, 0)
	limiter := NewRateLimiter(time.Minute, 10, 3)

	limiter.Record("alice", base)
	limiter.Record("bob", base.Add(90*time.Second))

	purged := limiter.Sweep(base.Add(2 * time.Minute))
	if purged != 1 {
		t.Fatalf("expected exactly the idle actor to be purged, got %d", purged)
	}
	status := limiter.Status(base.Add(2 * time.Minute))
	if status.TrackedActor != 1 {
		t.Fatalf("expected one tracked actor after sweep, got %d", status.TrackedActor)
	}
}
