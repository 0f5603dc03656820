package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the engine configuration loaded from file/env or built in code.
// Durations are millisecond counts to keep the JSON form flat.
type Config struct {
	// Store location. URL wins when set; otherwise SocketPath, then
	// Host/Port.
	URL        string `json:"url"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	SocketPath string `json:"socketPath"`
	Database   int    `json:"database"`
	Password   string `json:"password"`

	// Namespace prefixes every key so deployments can share a store.
	Namespace string `json:"namespace"`

	// TimeoutMs is the liveness timeout: a client with no ping for longer
	// is considered dead. <= 0 disables the whole presence-expiry
	// mechanism (pings no-op, GC never sweeps).
	TimeoutMs int64 `json:"timeoutMs"`

	// GCPeriodMs is the sweep interval. <= 0 disables the periodic sweeper
	// (manual Sweep calls still work).
	GCPeriodMs int64 `json:"gcPeriodMs"`

	// LockTimeoutMs bounds how long one node may hold the GC lock.
	LockTimeoutMs int64 `json:"lockTimeoutMs"`

	// Connection watchdog: ping every interval, allow timeout per response,
	// report after `failures` consecutive misses. Interval <= 0 disables.
	WatchdogIntervalMs int64 `json:"watchdogIntervalMs"`
	WatchdogTimeoutMs  int64 `json:"watchdogTimeoutMs"`
	WatchdogFailures   int   `json:"watchdogFailures"`

	LogLevel string `json:"logLevel"`
}

// Default returns built-in defaults. The liveness timeout is off by default:
// it is owned by the host server's protocol settings.
func Default() Config {
	return Config{
		Host:              "localhost",
		Port:              6379,
		GCPeriodMs:        60_000,
		LockTimeoutMs:     120_000,
		WatchdogTimeoutMs: 5_000,
		WatchdogFailures:  3,
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv overlays FAYE_REDIS_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("FAYE_REDIS_URL"); v != "" {
		cfg.URL = v
	}
	if v := os.Getenv("FAYE_REDIS_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("FAYE_REDIS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("FAYE_REDIS_SOCKET"); v != "" {
		cfg.SocketPath = v
	}
	if v := os.Getenv("FAYE_REDIS_DATABASE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database = n
		}
	}
	if v := os.Getenv("FAYE_REDIS_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("FAYE_REDIS_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("FAYE_REDIS_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TimeoutMs = n
		}
	}
	if v := os.Getenv("FAYE_REDIS_GC_PERIOD_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.GCPeriodMs = n
		}
	}
	if v := os.Getenv("FAYE_REDIS_LOCK_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.LockTimeoutMs = n
		}
	}
	if v := os.Getenv("FAYE_REDIS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
