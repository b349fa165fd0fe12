package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle phase of the play session.
type Status string

const (
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusStopped Status = "stopped"
)

// Boost is the zero-or-one temporary attack modifier.
type Boost struct {
	Active    bool      `json:"active"`
	Percent   int       `json:"percent,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// PendingSpawn is an enemy the game client has been asked to spawn
// but has not yet reported as handled.
type PendingSpawn struct {
	SpawnID       string    `json:"spawnId"`
	EnemyType     string    `json:"enemyType"`
	ActorName     string    `json:"actorName"`
	SourceEventID string    `json:"sourceEventId"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Snapshot is an immutable copy of the session state. Every mutating
// operation returns the snapshot it produced.
type Snapshot struct {
	Status          Status         `json:"status"`
	Health          int            `json:"health"`
	BaseAttack      float64        `json:"baseAttack"`
	EffectiveAttack float64        `json:"effectiveAttack"`
	Score           int64          `json:"score"`
	Wave            int            `json:"wave"`
	Boost           Boost          `json:"boost"`
	PendingSpawns   []PendingSpawn `json:"pendingSpawns"`
	LastUpdatedAt   time.Time      `json:"lastUpdatedAt"`
}

// BoostSecondsRemaining reports whole seconds left on an active boost.
func (s Snapshot) BoostSecondsRemaining(now time.Time) int {
	if !s.Boost.Active || !now.Before(s.Boost.ExpiresAt) {
		return 0
	}
	return int(s.Boost.ExpiresAt.Sub(now) / time.Second)
}

// Observer receives every new snapshot synchronously, in mutation
// order, before the mutating operation returns to its caller.
type Observer func(Snapshot)

// Machine is the single authoritative session record. All mutation
// goes through its operations; nothing else writes the state.
type Machine struct {
	maxHealth  int
	baseAttack float64
	now        func() time.Time

	mu        sync.Mutex
	status    Status
	health    int
	score     int64
	wave      int
	boost     Boost
	spawns    []PendingSpawn
	updatedAt time.Time
	observers []Observer
}

// Config tunes the machine's constants and clock.
type Config struct {
	MaxHealth  int
	BaseAttack float64
	Now        func() time.Time
}

// New constructs a machine in the RUNNING state with full health.
func New(cfg Config) *Machine {
	if cfg.MaxHealth <= 0 {
		cfg.MaxHealth = 100
	}
	if cfg.BaseAttack <= 0 {
		cfg.BaseAttack = 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Machine{
		maxHealth:  cfg.MaxHealth,
		baseAttack: cfg.BaseAttack,
		now:        cfg.Now,
	}
	m.resetLocked(m.now())
	m.status = StatusRunning
	return m
}

// AddObserver registers a synchronous snapshot listener. Observers
// must not call back into the machine.
func (m *Machine) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	m.mu.Lock()
	m.observers = append(m.observers, obs)
	m.mu.Unlock()
}

// ApplyBoost starts or extends the attack boost. A fresh boost (none
// active, or the active one already expired) expires durationSeconds
// from now. Stacking on an unexpired boost extends the existing
// expiry by durationSeconds while the percent is replaced by the new
// request's value: durations add, magnitude is last-writer-wins. The
// rule deliberately never interrupts a reward already in flight.
func (m *Machine) ApplyBoost(percent, durationSeconds int) Snapshot {
	m.mu.Lock()
	now := m.now()
	extension := time.Duration(durationSeconds) * time.Second
	if m.boost.Active && now.Before(m.boost.ExpiresAt) {
		m.boost.ExpiresAt = m.boost.ExpiresAt.Add(extension)
	} else {
		m.boost.ExpiresAt = now.Add(extension)
	}
	m.boost.Active = true
	m.boost.Percent = percent
	return m.commitLocked(now)
}

// ApplyHeal raises health, clamped to the maximum.
func (m *Machine) ApplyHeal(amount int) Snapshot {
	m.mu.Lock()
	now := m.now()
	m.health += amount
	if m.health > m.maxHealth {
		m.health = m.maxHealth
	}
	return m.commitLocked(now)
}

// ApplyDamage lowers health, clamped to zero. Reaching zero performs
// the full death-reset in the same transition: death and reset are one
// operation, never two observable states.
func (m *Machine) ApplyDamage(delta int) Snapshot {
	m.mu.Lock()
	now := m.now()
	m.health -= delta
	if m.health <= 0 {
		m.resetLocked(now)
	}
	return m.commitLocked(now)
}

// AddPendingSpawn appends a spawn request and returns the resulting
// snapshot. The spawn id is minted here; the game client echoes it
// back once the enemy exists.
func (m *Machine) AddPendingSpawn(enemyType, actorName, sourceEventID string) Snapshot {
	m.mu.Lock()
	now := m.now()
	m.spawns = append(m.spawns, PendingSpawn{
		SpawnID:       uuid.NewString(),
		EnemyType:     enemyType,
		ActorName:     actorName,
		SourceEventID: sourceEventID,
		CreatedAt:     now,
	})
	return m.commitLocked(now)
}

// RemoveSpawn drops a handled spawn. Removing an unknown id is a
// no-op, so client acknowledgements are idempotent.
func (m *Machine) RemoveSpawn(spawnID string) (Snapshot, bool) {
	m.mu.Lock()
	now := m.now()
	removed := false
	for i, spawn := range m.spawns {
		if spawn.SpawnID == spawnID {
			m.spawns = append(m.spawns[:i], m.spawns[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		snap := m.snapshotLocked(now)
		m.mu.Unlock()
		return snap, false
	}
	return m.commitLocked(now), true
}

// MergeClientState folds a play-client report into the session via
// clamped setters. Nil fields are left untouched; a reported health of
// zero triggers the death-reset like any other damage path.
func (m *Machine) MergeClientState(health *int, score *int64, wave *int) Snapshot {
	m.mu.Lock()
	now := m.now()
	if health != nil {
		h := *health
		if h > m.maxHealth {
			h = m.maxHealth
		}
		if h <= 0 {
			m.resetLocked(now)
		} else {
			m.health = h
		}
	}
	if score != nil && *score >= 0 {
		m.score = *score
	}
	if wave != nil && *wave >= 1 {
		m.wave = *wave
	}
	return m.commitLocked(now)
}

// Reset restores the defaults while keeping the current status.
func (m *Machine) Reset() Snapshot {
	m.mu.Lock()
	now := m.now()
	m.resetLocked(now)
	return m.commitLocked(now)
}

// Pause halts processing without touching health, boost, or score.
func (m *Machine) Pause() Snapshot {
	return m.transition(StatusPaused)
}

// Resume returns a paused session to RUNNING.
func (m *Machine) Resume() Snapshot {
	return m.transition(StatusRunning)
}

// Stop ends the session; state is retained for inspection until Start.
func (m *Machine) Stop() Snapshot {
	return m.transition(StatusStopped)
}

// Start reinitializes to defaults and enters RUNNING.
func (m *Machine) Start() Snapshot {
	m.mu.Lock()
	now := m.now()
	m.resetLocked(now)
	m.status = StatusRunning
	return m.commitLocked(now)
}

// Status reports the current lifecycle phase.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Snapshot returns the current state without mutating anything.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(m.now())
}

func (m *Machine) transition(status Status) Snapshot {
	m.mu.Lock()
	now := m.now()
	m.status = status
	return m.commitLocked(now)
}

// resetLocked is the single reset transition shared by death, admin
// reset, game_over, and Start.
func (m *Machine) resetLocked(now time.Time) {
	m.health = m.maxHealth
	m.score = 0
	m.wave = 1
	m.boost = Boost{}
	m.spawns = nil
	m.updatedAt = now
}

// commitLocked stamps the mutation, releases the lock, and notifies
// observers with the new snapshot before returning it.
func (m *Machine) commitLocked(now time.Time) Snapshot {
	m.updatedAt = now
	snap := m.snapshotLocked(now)
	observers := m.observers
	m.mu.Unlock()
	for _, obs := range observers {
		obs(snap)
	}
	return snap
}

func (m *Machine) snapshotLocked(now time.Time) Snapshot {
	boost := m.boost
	if boost.Active && !now.Before(boost.ExpiresAt) {
		boost = Boost{}
	}
	attack := m.baseAttack
	if boost.Active {
		attack = m.baseAttack * (1 + float64(boost.Percent)/100)
	}
	spawns := make([]PendingSpawn, len(m.spawns))
	copy(spawns, m.spawns)
	return Snapshot{
		Status:          m.status,
		Health:          m.health,
		BaseAttack:      m.baseAttack,
		EffectiveAttack: attack,
		Score:           m.score,
		Wave:            m.wave,
		Boost:           boost,
		PendingSpawns:   spawns,
		LastUpdatedAt:   m.updatedAt,
	}
}
