package admission

import (
	"sync"
	"time"

	"stream-rush/server/internal/donation"
)

// Reject reasons surfaced to the donation's origin.
const (
	RejectCooldown    = "cooldown"
	RejectRateLimited = "rate_limited"
)

// Result is the outcome of an admission attempt.
type Result struct {
	Admitted   bool
	Reason     string
	RetryAfter time.Duration
}

// Gate composes the cooldown tracker and the rate limiter in front of
// the event queue. The check-then-mutate path runs under one mutex so
// two near-simultaneous donations can never both pass a check the
// other has just invalidated.
type Gate struct {
	mu        sync.Mutex
	limiter   *RateLimiter
	cooldowns *CooldownTracker
}

// NewGate wires the limiter and tracker. Both must be non-nil.
func NewGate(limiter *RateLimiter, cooldowns *CooldownTracker) *Gate {
	return &Gate{limiter: limiter, cooldowns: cooldowns}
}

// TryAdmit runs the admission checks for ev at now. Cooldown is
// checked before the rate limiter; a cooled-down kind never consumes
// rate budget. On success both the cooldown and the rate windows are
// updated before the lock is released.
func (g *Gate) TryAdmit(ev donation.Event, now time.Time) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.cooldowns.IsReady(ev.Kind, now) {
		return Result{
			Reason:     RejectCooldown,
			RetryAfter: g.cooldowns.Remaining(ev.Kind, now),
		}
	}

	ok, retry := g.limiter.Admit(ev.ActorID, now)
	if !ok {
		return Result{Reason: RejectRateLimited, RetryAfter: retry}
	}

	g.cooldowns.MarkUsed(ev.Kind, now)
	g.limiter.Record(ev.ActorID, now)
	return Result{Admitted: true}
}

// SweepActors purges idle per-actor rate windows.
func (g *Gate) SweepActors(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limiter.Sweep(now)
}

// ResetCooldowns clears every kind cooldown (admin reset).
func (g *Gate) ResetCooldowns() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cooldowns.Reset()
}

// Snapshot captures limiter and cooldown status for the stats surface.
func (g *Gate) Snapshot(now time.Time) (Status, []CooldownStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limiter.Status(now), g.cooldowns.Status(now)
}
