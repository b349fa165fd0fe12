package server

import (
	"strings"
	"testing"
	"time"

	"stream-rush/server/internal/donation"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.AdminToken = "test-token"
	return cfg
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing admin token",
			mutate:  func(c *Config) { c.AdminToken = "" },
			wantErr: "ADMIN_TOKEN",
		},
		{
			name:    "missing address",
			mutate:  func(c *Config) { c.Addr = "" },
			wantErr: "listen address",
		},
		{
			name:    "zero rate window",
			mutate:  func(c *Config) { c.RateWindow = 0 },
			wantErr: "rate window",
		},
		{
			name:    "actor limit above global",
			mutate:  func(c *Config) { c.ActorLimit = c.GlobalLimit + 1 },
			wantErr: "exceeds global limit",
		},
		{
			name:    "zero queue capacity",
			mutate:  func(c *Config) { c.QueueCapacity = 0 },
			wantErr: "queue capacity",
		},
		{
			name:    "negative cooldown",
			mutate:  func(c *Config) { c.DragonCooldown = -time.Second },
			wantErr: "dragon cooldown",
		},
		{
			name:    "zero process interval",
			mutate:  func(c *Config) { c.ProcessInterval = 0 },
			wantErr: "tick intervals",
		},
		{
			name:    "liveness not above sweep",
			mutate:  func(c *Config) { c.LivenessTimeout = c.SweepInterval },
			wantErr: "liveness timeout",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation failure")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STREAM_RUSH_ADMIN_TOKEN", "secret")
	t.Setenv("STREAM_RUSH_ADDR", ":9999")
	t.Setenv("STREAM_RUSH_DRAGON_COOLDOWN", "90s")
	t.Setenv("STREAM_RUSH_ACTOR_LIMIT", "3")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("expected :9999, got %q", cfg.Addr)
	}
	if cfg.DragonCooldown != 90*time.Second {
		t.Fatalf("expected 90s dragon cooldown, got %s", cfg.DragonCooldown)
	}
	if cfg.ActorLimit != 3 {
		t.Fatalf("expected actor limit 3, got %d", cfg.ActorLimit)
	}
	// Untouched variables fall back to their defaults.
	if cfg.QueueCapacity != 256 {
		t.Fatalf("expected default queue capacity, got %d", cfg.QueueCapacity)
	}
}

func TestLoadConfigRequiresAdminToken(t *testing.T) {
	t.Setenv("STREAM_RUSH_ADMIN_TOKEN", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected failure without admin token")
	}
}

func TestConfigCooldownsCoverEveryKind(t *testing.T) {
	cooldowns := validConfig().Cooldowns()
	for _, kind := range donation.Kinds() {
		if _, ok := cooldowns[kind]; !ok {
			t.Fatalf("no cooldown configured for kind %q", kind)
		}
	}
}
