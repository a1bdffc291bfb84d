// Package config provides configuration loading for the LogSense CLI.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the CLI and its streaming client.
type Config struct {
	// Backend settings
	BackendURL     string
	RequestTimeout time.Duration

	// Reconnect settings
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectMaxAttempts  int

	// Analysis settings
	WatchdogTimeout time.Duration

	// Logging settings
	LogLevel  string
	LogFormat string
	LogFile   string

	// Run journal settings
	RunLogPath string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		BackendURL:     getEnv("LOGSENSE_BACKEND_URL", "http://localhost:8000"),
		RequestTimeout: getEnvDuration("LOGSENSE_REQUEST_TIMEOUT", 10*time.Second),

		ReconnectInitialDelay: getEnvDuration("LOGSENSE_RECONNECT_INITIAL_DELAY", 3*time.Second),
		ReconnectMaxDelay:     getEnvDuration("LOGSENSE_RECONNECT_MAX_DELAY", 30*time.Second),
		ReconnectMaxAttempts:  getEnvInt("LOGSENSE_RECONNECT_MAX_ATTEMPTS", 5),

		WatchdogTimeout: getEnvDuration("LOGSENSE_WATCHDOG_TIMEOUT", 5*time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogFile:   getEnv("LOG_FILE", ""),

		RunLogPath: getEnv("LOGSENSE_RUNLOG_PATH", defaultRunLogPath()),
	}

	// Validate values that would break the reconnect schedule
	if cfg.ReconnectInitialDelay <= 0 {
		return nil, fmt.Errorf("LOGSENSE_RECONNECT_INITIAL_DELAY must be positive")
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectInitialDelay {
		return nil, fmt.Errorf("LOGSENSE_RECONNECT_MAX_DELAY must be >= LOGSENSE_RECONNECT_INITIAL_DELAY")
	}
	if cfg.ReconnectMaxAttempts < 1 {
		return nil, fmt.Errorf("LOGSENSE_RECONNECT_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.WatchdogTimeout <= 0 {
		return nil, fmt.Errorf("LOGSENSE_WATCHDOG_TIMEOUT must be positive")
	}

	return cfg, nil
}

// defaultRunLogPath places the run journal under the user cache directory,
// falling back to the working directory when it cannot be determined.
func defaultRunLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "logsense-runs.db"
	}
	return dir + "/logsense/runs.db"
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
