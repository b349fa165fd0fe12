package admission

import "time"

// rateWindow is a fixed-size admission counter that resets wholesale
// once the window duration has elapsed.
type rateWindow struct {
	windowStart time.Time
	count       int
}

func (w *rateWindow) roll(now time.Time, window time.Duration) {
	if now.Sub(w.windowStart) >= window {
		w.windowStart = now
		w.count = 0
	}
}

func (w *rateWindow) retryAfter(now time.Time, window time.Duration) time.Duration {
	remaining := w.windowStart.Add(window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RateLimiter enforces a global and a per-actor admission budget over
// the same fixed window. Bursts straddling a window boundary can admit
// up to twice the budget; that approximation is intentional and the
// documented behavior, not a defect to fix here.
type RateLimiter struct {
	window      time.Duration
	globalLimit int
	actorLimit  int

	global rateWindow
	actors map[string]*rateWindow
}

// NewRateLimiter constructs a limiter with the provided window and
// budgets. Non-positive arguments fall back to permissive values.
func NewRateLimiter(window time.Duration, globalLimit, actorLimit int) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if globalLimit < 1 {
		globalLimit = 1
	}
	if actorLimit < 1 {
		actorLimit = 1
	}
	return &RateLimiter{
		window:      window,
		globalLimit: globalLimit,
		actorLimit:  actorLimit,
		actors:      make(map[string]*rateWindow),
	}
}

// Admit reports whether both the global and the per-actor window have
// budget left at now. On rejection the returned duration is the larger
// of the two retry hints. Admit rolls expired windows but does not
// consume budget; call Record once the admission is final.
func (l *RateLimiter) Admit(actorID string, now time.Time) (bool, time.Duration) {
	l.global.roll(now, l.window)
	actor := l.actorWindow(actorID)
	actor.roll(now, l.window)

	var retry time.Duration
	ok := true
	if l.global.count >= l.globalLimit {
		ok = false
		retry = l.global.retryAfter(now, l.window)
	}
	if actor.count >= l.actorLimit {
		ok = false
		if r := actor.retryAfter(now, l.window); r > retry {
			retry = r
		}
	}
	if ok {
		return true, 0
	}
	return false, retry
}

// Record consumes one unit of both budgets for an admitted donation.
func (l *RateLimiter) Record(actorID string, now time.Time) {
	l.global.roll(now, l.window)
	actor := l.actorWindow(actorID)
	actor.roll(now, l.window)
	l.global.count++
	actor.count++
}

// Sweep drops per-actor windows idle for longer than twice the window
// duration and returns how many were purged. It runs on a periodic
// task, never in the admission hot path.
func (l *RateLimiter) Sweep(now time.Time) int {
	purged := 0
	for id, w := range l.actors {
		if now.Sub(w.windowStart) >= 2*l.window {
			delete(l.actors, id)
			purged++
		}
	}
	return purged
}

func (l *RateLimiter) actorWindow(actorID string) *rateWindow {
	w, ok := l.actors[actorID]
	if !ok {
		w = &rateWindow{}
		l.actors[actorID] = w
	}
	return w
}

// Status is a read-only view of the limiter for diagnostics.
type Status struct {
	Window       int64 `json:"windowMillis"`
	GlobalLimit  int   `json:"globalLimit"`
	GlobalCount  int   `json:"globalCount"`
	ActorLimit   int   `json:"actorLimit"`
	TrackedActor int   `json:"trackedActors"`
}

// Status snapshots the limiter at now, rolling the global window so
// the reported count reflects the current period.
func (l *RateLimiter) Status(now time.Time) Status {
	l.global.roll(now, l.window)
	return Status{
		Window:       l.window.Milliseconds(),
		GlobalLimit:  l.globalLimit,
		GlobalCount:  l.global.count,
		ActorLimit:   l.actorLimit,
		TrackedActor: len(l.actors),
	}
}
