package donation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the gameplay effect a donation purchases.
type Kind string

const (
	KindBoost       Kind = "boost"
	KindHeal        Kind = "heal"
	KindSpawnEnemy  Kind = "spawn_enemy"
	KindSpawnDragon Kind = "spawn_dragon"
)

// ParseKind maps a wire string onto a known Kind.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(raw) {
	case KindBoost, KindHeal, KindSpawnEnemy, KindSpawnDragon:
		return Kind(raw), true
	}
	return "", false
}

// Kinds lists every donation kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindBoost, KindHeal, KindSpawnEnemy, KindSpawnDragon}
}

// Params carries the kind-specific payload of a donation. Only the
// fields relevant to the event's Kind are populated.
type Params struct {
	BoostPercent    int    `json:"boostPercent,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	HealAmount      int    `json:"healAmount,omitempty"`
	EnemyType       string `json:"enemyType,omitempty"`
}

// Event is an admitted viewer donation. It is immutable once created;
// queue position and processing outcome are tracked by the pipeline,
// never on the record itself.
type Event struct {
	ID               string    `json:"id"`
	ActorID          string    `json:"actorId"`
	ActorName        string    `json:"actorName"`
	AmountMinorUnits int64     `json:"amountMinorUnits"`
	Kind             Kind      `json:"kind"`
	Params           Params    `json:"parameters"`
	CreatedAt        time.Time `json:"createdAt"`
}

// NewID mints an opaque unique event identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate rejects malformed donation payloads before they reach the
// admission gate. A nil return means the event is structurally sound;
// it says nothing about rate or cooldown admission.
func Validate(ev Event) error {
	if ev.ID == "" {
		return fmt.Errorf("donation: missing id")
	}
	if ev.ActorID == "" {
		return fmt.Errorf("donation: missing actorId")
	}
	if ev.AmountMinorUnits <= 0 {
		return fmt.Errorf("donation: amountMinorUnits must be positive, got %d", ev.AmountMinorUnits)
	}
	if _, ok := ParseKind(string(ev.Kind)); !ok {
		return fmt.Errorf("donation: unknown kind %q", ev.Kind)
	}
	switch ev.Kind {
	case KindBoost:
		if ev.Params.BoostPercent <= 0 {
			return fmt.Errorf("donation: boost requires a positive boostPercent")
		}
		if ev.Params.DurationSeconds <= 0 {
			return fmt.Errorf("donation: boost requires a positive durationSeconds")
		}
	case KindHeal:
		if ev.Params.HealAmount <= 0 {
			return fmt.Errorf("donation: heal requires a positive healAmount")
		}
	case KindSpawnEnemy:
		if ev.Params.EnemyType == "" {
			return fmt.Errorf("donation: spawn_enemy requires an enemyType")
		}
	case KindSpawnDragon:
		// The kind implies the enemy type; parameters may omit it.
	}
	return nil
}

// EnemyType resolves the spawned enemy for SPAWN_* kinds. Dragon
// donations always spawn a dragon regardless of the payload.
func (e Event) EnemyType() string {
	if e.Kind == KindSpawnDragon {
		return "dragon"
	}
	return e.Params.EnemyType
}
