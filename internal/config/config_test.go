package config_test

import (
	"testing"
	"time"

	"github.com/ai-task-scheduler/engine/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.DBHost != "localhost" {
		t.Errorf("expected default DBHost localhost, got %q", cfg.DBHost)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected default WorkerCount 4, got %d", cfg.WorkerCount)
	}
	if cfg.StuckThreshold != 30*time.Minute {
		t.Errorf("expected default StuckThreshold 30m, got %v", cfg.StuckThreshold)
	}
	if cfg.AuthEnabled {
		t.Error("expected AuthEnabled to default to false")
	}
	if cfg.BackoffFactor != 2.0 {
		t.Errorf("expected default BackoffFactor 2.0, got %v", cfg.BackoffFactor)
	}
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("AUTH_ENABLED", "true")
	t.Setenv("STUCK_THRESHOLD", "45m")
	t.Setenv("BACKOFF_FACTOR", "3.5")

	cfg := config.Load()

	if cfg.DBHost != "db.internal" {
		t.Errorf("expected DBHost overridden, got %q", cfg.DBHost)
	}
	if cfg.WorkerCount != 8 {
		t.Errorf("expected WorkerCount 8, got %d", cfg.WorkerCount)
	}
	if !cfg.AuthEnabled {
		t.Error("expected AuthEnabled true")
	}
	if cfg.StuckThreshold != 45*time.Minute {
		t.Errorf("expected StuckThreshold 45m, got %v", cfg.StuckThreshold)
	}
	if cfg.BackoffFactor != 3.5 {
		t.Errorf("expected BackoffFactor 3.5, got %v", cfg.BackoffFactor)
	}
}

func TestLoad_InvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("WORKER_COUNT", "not-a-number")

	cfg := config.Load()
	if cfg.WorkerCount != 4 {
		t.Errorf("expected fallback to default 4 for invalid int, got %d", cfg.WorkerCount)
	}
}

func TestLoad_BoolAcceptsVariants(t *testing.T) {
	for _, v := range []string{"true", "1", "yes"} {
		t.Setenv("AUTH_ENABLED", v)
		cfg := config.Load()
		if !cfg.AuthEnabled {
			t.Errorf("expected AUTH_ENABLED=%q to be truthy", v)
		}
	}
	t.Setenv("AUTH_ENABLED", "false")
	cfg := config.Load()
	if cfg.AuthEnabled {
		t.Error("expected AUTH_ENABLED=false to be falsy")
	}
}
