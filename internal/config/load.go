//
//
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "VHUB_CONFIG"

// Load merges Defaults() + optional YAML file + env overrides (VHUB_*), then validates.
// An empty path falls back to $VHUB_CONFIG; with neither set only defaults and env apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg. Keys absent from the file keep their current value.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides applies VHUB_* environment variables to the config.
func applyEnvOverrides(cfg *Config) {
	cfg.Server.Addr = GetEnvVar("VHUB_ADDR", cfg.Server.Addr)
	cfg.Server.MaxMessageBytes = int64(GetEnvInt("VHUB_MAX_MESSAGE_BYTES", int(cfg.Server.MaxMessageBytes)))

	cfg.Keepalive.ProbeIntervalSec = GetEnvInt("VHUB_PROBE_INTERVAL", cfg.Keepalive.ProbeIntervalSec)
	cfg.Keepalive.ProbeTimeoutSec = GetEnvInt("VHUB_PROBE_TIMEOUT", cfg.Keepalive.ProbeTimeoutSec)

	cfg.Broadcast.QueueSize = GetEnvInt("VHUB_BROADCAST_QUEUE_SIZE", cfg.Broadcast.QueueSize)
	cfg.Broadcast.SendTimeoutSec = GetEnvInt("VHUB_BROADCAST_SEND_TIMEOUT", cfg.Broadcast.SendTimeoutSec)

	cfg.Agent.URL = GetEnvVar("VHUB_AGENT_URL", cfg.Agent.URL)
	cfg.Agent.VehicleID = GetEnvVar("VHUB_VEHICLE_ID", cfg.Agent.VehicleID)
	cfg.Agent.SendIntervalSec = GetEnvInt("VHUB_SEND_INTERVAL", cfg.Agent.SendIntervalSec)
	cfg.Agent.BackoffBaseSec = GetEnvInt("VHUB_BACKOFF_BASE", cfg.Agent.BackoffBaseSec)
	cfg.Agent.BackoffMaxSec = GetEnvInt("VHUB_BACKOFF_MAX", cfg.Agent.BackoffMaxSec)

	cfg.Predictor.Mode = GetEnvVar("VHUB_PREDICTOR_MODE", cfg.Predictor.Mode)
	cfg.Predictor.URL = GetEnvVar("VHUB_PREDICTOR_URL", cfg.Predictor.URL)
	cfg.Predictor.TimeoutSec = GetEnvInt("VHUB_PREDICTOR_TIMEOUT", cfg.Predictor.TimeoutSec)

	cfg.Auth.Algorithm = GetEnvVar("VHUB_AUTH_ALGORITHM", cfg.Auth.Algorithm)
	cfg.Auth.SecretKey = GetEnvVar("VHUB_AUTH_SECRET", cfg.Auth.SecretKey)
	cfg.Auth.PublicKeyPEM = GetEnvVar("VHUB_AUTH_PUBLIC_KEY_PEM", cfg.Auth.PublicKeyPEM)

	cfg.Log.Level = GetEnvVar("VHUB_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = GetEnvVar("VHUB_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = GetEnvVar("VHUB_LOG_FILE", cfg.Log.File)
	cfg.Log.AuditDir = GetEnvVar("VHUB_AUDIT_DIR", cfg.Log.AuditDir)
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt returns the value of an environment variable as an int with a default.
// Unparseable values are ignored.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
