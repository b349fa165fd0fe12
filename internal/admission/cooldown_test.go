package admission

import (
	"testing"
	"time"

	"stream-rush/server/internal/donation"
)

func testDurations() map[donation.Kind]time.Duration {
	return map[donation.Kind]time.Duration{
		donation.KindBoost:       10 * time.Second,
		donation.KindHeal:        10 * time.Second,
		donation.KindSpawnEnemy:  30 * time.Second,
		donation.KindSpawnDragon: 2 * time.Minute,
	}
}

func TestCooldownSerializesDragonSpawns(t *testing.T) {
	base := time.Unix(1000, 0)
	tracker := NewCooldownTracker(testDurations())

	if !tracker.IsReady(donation.KindSpawnDragon, base) {
		t.Fatalf("expected the first dragon to be ready")
	}
	tracker.MarkUsed(donation.KindSpawnDragon, base)

	if tracker.IsReady(donation.KindSpawnDragon, base.Add(time.Minute)) {
		t.Fatalf("expected the second dragon inside the cooldown to be blocked")
	}
	if got := tracker.Remaining(donation.KindSpawnDragon, base.Add(time.Minute)); got != time.Minute {
		t.Fatalf("expected 1m remaining, got %s", got)
	}
	if !tracker.IsReady(donation.KindSpawnDragon, base.Add(2*time.Minute)) {
		t.Fatalf("expected a third dragon after the cooldown elapsed")
	}
}

func TestCooldownKindsAreIndependent(t *testing.T) {
	base := time.Unix(1000, 0)
	tracker := NewCooldownTracker(testDurations())

	tracker.MarkUsed(donation.KindSpawnDragon, base)
	if !tracker.IsReady(donation.KindHeal, base.Add(time.Second)) {
		t.Fatalf("expected heal to be unaffected by the dragon cooldown")
	}
}

func TestCooldownReset(t *testing.T) {
	base := time.Unix(1000, 0)
	tracker := NewCooldownTracker(testDurations())

	tracker.MarkUsed(donation.KindBoost, base)
	tracker.Reset()
	if !tracker.IsReady(donation.KindBoost, base.Add(time.Second)) {
		t.Fatalf("expected reset to clear the boost cooldown")
	}
}

func TestCooldownUnconfiguredKindHasNone(t *testing.T) {
	tracker := NewCooldownTracker(nil)
	base := time.Unix(1000, 0)
	tracker.MarkUsed(donation.KindHeal, base)
	if !tracker.IsReady(donation.KindHeal, base) {
		t.Fatalf("expected a zero-duration cooldown to be immediately ready")
	}
}
