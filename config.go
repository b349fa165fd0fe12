package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"stream-rush/server/internal/donation"
)

// Config holds every runtime tunable. Values load from environment
// variables; invalid bounds refuse startup, nothing is clamped
// silently.
type Config struct {
	Addr        string `env:"STREAM_RUSH_ADDR" envDefault:":8080"`
	AdminToken  string `env:"STREAM_RUSH_ADMIN_TOKEN"`
	LogJSONPath string `env:"STREAM_RUSH_LOG_JSON"`

	RateWindow    time.Duration `env:"STREAM_RUSH_RATE_WINDOW" envDefault:"1m"`
	GlobalLimit   int           `env:"STREAM_RUSH_GLOBAL_LIMIT" envDefault:"30"`
	ActorLimit    int           `env:"STREAM_RUSH_ACTOR_LIMIT" envDefault:"5"`
	QueueCapacity int           `env:"STREAM_RUSH_QUEUE_CAPACITY" envDefault:"256"`

	BoostCooldown  time.Duration `env:"STREAM_RUSH_BOOST_COOLDOWN" envDefault:"10s"`
	HealCooldown   time.Duration `env:"STREAM_RUSH_HEAL_COOLDOWN" envDefault:"10s"`
	SpawnCooldown  time.Duration `env:"STREAM_RUSH_SPAWN_COOLDOWN" envDefault:"30s"`
	DragonCooldown time.Duration `env:"STREAM_RUSH_DRAGON_COOLDOWN" envDefault:"2m"`

	ProcessInterval time.Duration `env:"STREAM_RUSH_PROCESS_INTERVAL" envDefault:"1s"`
	OverlayInterval time.Duration `env:"STREAM_RUSH_OVERLAY_INTERVAL" envDefault:"5s"`
	SweepInterval   time.Duration `env:"STREAM_RUSH_SWEEP_INTERVAL" envDefault:"30s"`
	LivenessTimeout time.Duration `env:"STREAM_RUSH_LIVENESS_TIMEOUT" envDefault:"60s"`
}

// DefaultConfig returns the built-in tuning without consulting the
// environment. Tests start here.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		RateWindow:      defaultRateWindow,
		GlobalLimit:     defaultGlobalLimit,
		ActorLimit:      defaultActorLimit,
		QueueCapacity:   defaultQueueCapacity,
		BoostCooldown:   10 * time.Second,
		HealCooldown:    10 * time.Second,
		SpawnCooldown:   30 * time.Second,
		DragonCooldown:  2 * time.Minute,
		ProcessInterval: defaultProcessInterval,
		OverlayInterval: defaultOverlayInterval,
		SweepInterval:   defaultSweepInterval,
		LivenessTimeout: defaultLivenessTimeout,
	}
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces startup bounds. A validation failure is the only
// fatal error in the system; everything past startup degrades instead.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.AdminToken == "" {
		return fmt.Errorf("config: STREAM_RUSH_ADMIN_TOKEN is required")
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("config: rate window must be positive, got %s", c.RateWindow)
	}
	if c.GlobalLimit < 1 || c.ActorLimit < 1 {
		return fmt.Errorf("config: rate limits must be at least 1 (global=%d actor=%d)", c.GlobalLimit, c.ActorLimit)
	}
	if c.ActorLimit > c.GlobalLimit {
		return fmt.Errorf("config: per-actor limit %d exceeds global limit %d", c.ActorLimit, c.GlobalLimit)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("config: queue capacity must be at least 1, got %d", c.QueueCapacity)
	}
	for _, cd := range []struct {
		name string
		d    time.Duration
	}{
		{"boost", c.BoostCooldown},
		{"heal", c.HealCooldown},
		{"spawn", c.SpawnCooldown},
		{"dragon", c.DragonCooldown},
	} {
		if cd.d < 0 {
			return fmt.Errorf("config: %s cooldown must not be negative, got %s", cd.name, cd.d)
		}
	}
	if c.ProcessInterval <= 0 || c.OverlayInterval <= 0 || c.SweepInterval <= 0 {
		return fmt.Errorf("config: tick intervals must be positive")
	}
	if c.LivenessTimeout <= c.SweepInterval {
		return fmt.Errorf("config: liveness timeout %s must exceed the sweep interval %s", c.LivenessTimeout, c.SweepInterval)
	}
	return nil
}

// Cooldowns maps the configured per-kind durations for the tracker.
func (c Config) Cooldowns() map[donation.Kind]time.Duration {
	return map[donation.Kind]time.Duration{
		donation.KindBoost:       c.BoostCooldown,
		donation.KindHeal:        c.HealCooldown,
		donation.KindSpawnEnemy:  c.SpawnCooldown,
		donation.KindSpawnDragon: c.DragonCooldown,
	}
}
