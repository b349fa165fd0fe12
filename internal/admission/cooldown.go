package admission

import (
	"time"

	"stream-rush/server/internal/donation"
)

type cooldownState struct {
	lastAdmittedAt time.Time
	cooldownUntil  time.Time
}

// CooldownTracker enforces a minimum inter-arrival time per donation
// kind. Only one admission per kind may succeed before its cooldown
// elapses, which serializes high-impact effects no matter how many
// donations request them.
type CooldownTracker struct {
	durations map[donation.Kind]time.Duration
	states    map[donation.Kind]*cooldownState
}

// NewCooldownTracker builds a tracker from the configured per-kind
// durations. Kinds absent from the map have no cooldown.
func NewCooldownTracker(durations map[donation.Kind]time.Duration) *CooldownTracker {
	copied := make(map[donation.Kind]time.Duration, len(durations))
	for kind, d := range durations {
		if d > 0 {
			copied[kind] = d
		}
	}
	return &CooldownTracker{
		durations: copied,
		states:    make(map[donation.Kind]*cooldownState),
	}
}

// IsReady reports whether kind may be admitted at now.
func (t *CooldownTracker) IsReady(kind donation.Kind, now time.Time) bool {
	state, ok := t.states[kind]
	if !ok {
		return true
	}
	return !now.Before(state.cooldownUntil)
}

// Remaining reports how long until kind becomes admissible again.
func (t *CooldownTracker) Remaining(kind donation.Kind, now time.Time) time.Duration {
	state, ok := t.states[kind]
	if !ok {
		return 0
	}
	remaining := state.cooldownUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarkUsed starts kind's cooldown at now.
func (t *CooldownTracker) MarkUsed(kind donation.Kind, now time.Time) {
	duration := t.durations[kind]
	state, ok := t.states[kind]
	if !ok {
		state = &cooldownState{}
		t.states[kind] = state
	}
	state.lastAdmittedAt = now
	state.cooldownUntil = now.Add(duration)
}

// Reset clears every cooldown. Invoked by the admin reset surface.
func (t *CooldownTracker) Reset() {
	t.states = make(map[donation.Kind]*cooldownState)
}

// CooldownStatus is a read-only per-kind view for diagnostics.
type CooldownStatus struct {
	Kind            donation.Kind `json:"kind"`
	DurationMillis  int64         `json:"durationMillis"`
	RemainingMillis int64         `json:"remainingMillis"`
}

// Status snapshots every configured kind at now.
func (t *CooldownTracker) Status(now time.Time) []CooldownStatus {
	statuses := make([]CooldownStatus, 0, len(donation.Kinds()))
	for _, kind := range donation.Kinds() {
		statuses = append(statuses, CooldownStatus{
			Kind:            kind,
			DurationMillis:  t.durations[kind].Milliseconds(),
			RemainingMillis: t.Remaining(kind, now).Milliseconds(),
		})
	}
	return statuses
}
