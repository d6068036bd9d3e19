package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("HTTP_ADDR", "")
	cfg := Load()
	if cfg.HTTPAddr != "localhost:8080" {
		t.Fatalf("unexpected default addr %q", cfg.HTTPAddr)
	}
	if cfg.DevMode() {
		t.Fatalf("dev mode must be opt-in")
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.ShutdownTimeout)
	}
	if len(cfg.IntakeQueues) != 3 || cfg.IntakePriority != "default" {
		t.Fatalf("unexpected intake config %v %q", cfg.IntakeQueues, cfg.IntakePriority)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("REGISTRY_MIGRATE", "true")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("INTAKE_QUEUES", " urgent , ,default")
	t.Setenv("BLOB_BACKEND", "minio")

	cfg := Load()
	if !cfg.DevMode() || !cfg.RegistryMigrate {
		t.Fatalf("overrides ignored: %+v", cfg)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("malformed ints fall back to the default, got %d", cfg.RedisDB)
	}
	if len(cfg.IntakeQueues) != 2 || cfg.IntakeQueues[0] != "urgent" {
		t.Fatalf("unexpected queues %v", cfg.IntakeQueues)
	}
	if cfg.BlobBackend != "minio" {
		t.Fatalf("unexpected blob backend %q", cfg.BlobBackend)
	}
}
