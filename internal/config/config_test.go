package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOGSENSE_BACKEND_URL", "")
	t.Setenv("LOGSENSE_RECONNECT_INITIAL_DELAY", "")
	t.Setenv("LOGSENSE_RECONNECT_MAX_DELAY", "")
	t.Setenv("LOGSENSE_RECONNECT_MAX_ATTEMPTS", "")
	t.Setenv("LOGSENSE_WATCHDOG_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.BackendURL != "http://localhost:8000" {
		t.Fatalf("BackendURL=%q, want default", cfg.BackendURL)
	}
	if cfg.ReconnectInitialDelay != 3*time.Second {
		t.Fatalf("ReconnectInitialDelay=%v, want 3s", cfg.ReconnectInitialDelay)
	}
	if cfg.ReconnectMaxDelay != 30*time.Second {
		t.Fatalf("ReconnectMaxDelay=%v, want 30s", cfg.ReconnectMaxDelay)
	}
	if cfg.ReconnectMaxAttempts != 5 {
		t.Fatalf("ReconnectMaxAttempts=%d, want 5", cfg.ReconnectMaxAttempts)
	}
	if cfg.WatchdogTimeout != 5*time.Minute {
		t.Fatalf("WatchdogTimeout=%v, want 5m", cfg.WatchdogTimeout)
	}
	if cfg.RunLogPath == "" {
		t.Fatal("RunLogPath should have a default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOGSENSE_BACKEND_URL", "https://logsense.example.com")
	t.Setenv("LOGSENSE_RECONNECT_INITIAL_DELAY", "500ms")
	t.Setenv("LOGSENSE_RECONNECT_MAX_DELAY", "10s")
	t.Setenv("LOGSENSE_RECONNECT_MAX_ATTEMPTS", "2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.BackendURL != "https://logsense.example.com" {
		t.Fatalf("BackendURL=%q", cfg.BackendURL)
	}
	if cfg.ReconnectInitialDelay != 500*time.Millisecond {
		t.Fatalf("ReconnectInitialDelay=%v", cfg.ReconnectInitialDelay)
	}
	if cfg.ReconnectMaxAttempts != 2 {
		t.Fatalf("ReconnectMaxAttempts=%d", cfg.ReconnectMaxAttempts)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel=%q", cfg.LogLevel)
	}
}

func TestLoadRejectsInvertedDelays(t *testing.T) {
	t.Setenv("LOGSENSE_RECONNECT_INITIAL_DELAY", "30s")
	t.Setenv("LOGSENSE_RECONNECT_MAX_DELAY", "3s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when max delay < initial delay")
	}
}

func TestLoadRejectsZeroAttempts(t *testing.T) {
	t.Setenv("LOGSENSE_RECONNECT_INITIAL_DELAY", "")
	t.Setenv("LOGSENSE_RECONNECT_MAX_DELAY", "")
	t.Setenv("LOGSENSE_RECONNECT_MAX_ATTEMPTS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when max attempts is zero")
	}
}

func TestInvalidDurationFallsBackToDefault(t *testing.T) {
	t.Setenv("LOGSENSE_WATCHDOG_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.WatchdogTimeout != 5*time.Minute {
		t.Fatalf("WatchdogTimeout=%v, want default 5m", cfg.WatchdogTimeout)
	}
}
