package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "waitlist")
	t.Setenv("TOKEN_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := Load()

	if cfg.HoldTTL != 10*time.Minute {
		t.Errorf("HoldTTL = %v, want 10m", cfg.HoldTTL)
	}
	if cfg.TokenTTL != 15*time.Minute {
		t.Errorf("TokenTTL = %v, want 15m", cfg.TokenTTL)
	}
	if cfg.MaxActivePerPhone != 3 {
		t.Errorf("MaxActivePerPhone = %d, want 3", cfg.MaxActivePerPhone)
	}
	if cfg.NotifyQuotaPerHour != 25 {
		t.Errorf("NotifyQuotaPerHour = %d, want 25", cfg.NotifyQuotaPerHour)
	}
	if cfg.NotifyMaxAttempts != 3 {
		t.Errorf("NotifyMaxAttempts = %d, want 3", cfg.NotifyMaxAttempts)
	}
	if cfg.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", cfg.RetentionDays)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("SweepInterval = %v, want 1m", cfg.SweepInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HOLD_TTL_MIN", "30")
	t.Setenv("SWEEP_INTERVAL", "15s")

	cfg := Load()

	if cfg.HoldTTL != 30*time.Minute {
		t.Errorf("HoldTTL = %v, want 30m", cfg.HoldTTL)
	}
	if cfg.SweepInterval != 15*time.Second {
		t.Errorf("SweepInterval = %v, want 15s", cfg.SweepInterval)
	}
}
