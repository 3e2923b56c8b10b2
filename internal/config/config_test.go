package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.DatabasePath != "dairy.db" {
		t.Fatalf("expected default database path, got %q", cfg.DatabasePath)
	}
	if cfg.DeviceName != "shop-counter" {
		t.Fatalf("expected default device name, got %q", cfg.DeviceName)
	}
	if cfg.SessionTTLMinutes != 720 {
		t.Fatalf("expected default session ttl 720, got %d", cfg.SessionTTLMinutes)
	}
	if cfg.SyncIntervalSecond != 300 {
		t.Fatalf("expected default sync interval 300, got %d", cfg.SyncIntervalSecond)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.SyncConfigured() {
		t.Fatalf("sync must be off without a mirror url")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/test.db")
	t.Setenv("MIRROR_URL", "postgres://localhost/mirror")
	t.Setenv("DEVICE_NAME", "delivery-phone")
	t.Setenv("SESSION_TTL_MINUTES", "60")
	t.Setenv("SYNC_INTERVAL_SECONDS", "30")

	cfg := Load()
	if cfg.DatabasePath != "/tmp/test.db" {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath)
	}
	if !cfg.SyncConfigured() {
		t.Fatalf("expected sync configured")
	}
	if cfg.DeviceName != "delivery-phone" {
		t.Fatalf("unexpected device name %q", cfg.DeviceName)
	}
	if cfg.SessionTTLMinutes != 60 || cfg.SyncIntervalSecond != 30 {
		t.Fatalf("unexpected intervals %d/%d", cfg.SessionTTLMinutes, cfg.SyncIntervalSecond)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("SESSION_TTL_MINUTES", "not-a-number")
	t.Setenv("SYNC_INTERVAL_SECONDS", "-5")

	cfg := Load()
	if cfg.SessionTTLMinutes != 720 {
		t.Fatalf("bad ttl must fall back to 720, got %d", cfg.SessionTTLMinutes)
	}
	if cfg.SyncIntervalSecond != 300 {
		t.Fatalf("bad interval must fall back to 300, got %d", cfg.SyncIntervalSecond)
	}
}
