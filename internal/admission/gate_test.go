package admission

import (
	"testing"
	"time"

	"stream-rush/server/internal/donation"
)

func newTestGate() *Gate {
	limiter := NewRateLimiter(time.Minute, 10, 2)
	tracker := NewCooldownTracker(testDurations())
	return NewGate(limiter, tracker)
}

func dragonEvent(actor string) donation.Event {
	return donation.Event{
		ID:               donation.NewID(),
		ActorID:          actor,
		ActorName:        actor,
		AmountMinorUnits: 500,
		Kind:             donation.KindSpawnDragon,
	}
}

func healEvent(actor string) donation.Event {
	ev := dragonEvent(actor)
	ev.Kind = donation.KindHeal
	ev.Params = donation.Params{HealAmount: 25}
	return ev
}

func TestGateCooldownRejection(t *testing.T) {
	gate := newTestGate()
	base := time.Unix(1000, 0)

	first := gate.TryAdmit(dragonEvent("alice"), base)
	if !first.Admitted {
		t.Fatalf("expected first dragon to be admitted: %+v", first)
	}

	second := gate.TryAdmit(dragonEvent("bob"), base.Add(time.Minute))
	if second.Admitted {
		t.Fatalf("expected second dragon to hit the cooldown")
	}
	if second.Reason != RejectCooldown {
		t.Fatalf("expected reason %q, got %q", RejectCooldown, second.Reason)
	}
	if second.RetryAfter != time.Minute {
		t.Fatalf("expected 1m retry, got %s", second.RetryAfter)
	}

	third := gate.TryAdmit(dragonEvent("carol"), base.Add(2*time.Minute))
	if !third.Admitted {
		t.Fatalf("expected third dragon after cooldown: %+v", third)
	}
}

func TestGateRateRejection(t *testing.T) {
	gate := newTestGate()
	base := time.Unix(1000, 0)

	for i := 0; i < 2; i++ {
		res := gate.TryAdmit(healEvent("alice"), base.Add(time.Duration(i)*11*time.Second))
		if !res.Admitted {
			t.Fatalf("expected heal %d to be admitted: %+v", i+1, res)
		}
	}

	res := gate.TryAdmit(healEvent("alice"), base.Add(23*time.Second))
	if res.Admitted {
		t.Fatalf("expected the actor budget to reject the third heal")
	}
	if res.Reason != RejectRateLimited {
		t.Fatalf("expected reason %q, got %q", RejectRateLimited, res.Reason)
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("expected a positive retry hint")
	}
}

func TestGateCooldownCheckedBeforeRate(t *testing.T) {
	gate := newTestGate()
	base := time.Unix(1000, 0)

	gate.TryAdmit(dragonEvent("alice"), base)
	// Exhaust alice's rate budget with heals.
	gate.TryAdmit(healEvent("alice"), base.Add(11*time.Second))
	gate.TryAdmit(healEvent("alice"), base.Add(22*time.Second))

	// Both gates would reject; the cooldown reason must win.
	res := gate.TryAdmit(dragonEvent("alice"), base.Add(30*time.Second))
	if res.Admitted {
		t.Fatalf("expected rejection")
	}
	if res.Reason != RejectCooldown {
		t.Fatalf("expected cooldown to be checked first, got %q", res.Reason)
	}
}

func TestGateRejectionConsumesNothing(t *testing.T) {
	gate := newTestGate()
	base := time.Unix(1000, 0)

	gate.TryAdmit(dragonEvent("alice"), base)
	for i := 0; i < 5; i++ {
		gate.TryAdmit(dragonEvent("alice"), base.Add(time.Second))
	}

	// Cooldown rejections must not burn rate budget.
	status, _ := gate.Snapshot(base.Add(2 * time.Second))
	if status.GlobalCount != 1 {
		t.Fatalf("expected one recorded admission, got %d", status.GlobalCount)
	}
}
