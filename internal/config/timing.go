package config

import (
	"time"
)

// Config is the complete hub and agent configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Keepalive KeepaliveConfig `yaml:"keepalive"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Agent     AgentConfig     `yaml:"agent"`
	Predictor PredictorConfig `yaml:"predictor"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"read_timeout"`
	WriteTimeoutSec int    `yaml:"write_timeout"`
	IdleTimeoutSec  int    `yaml:"idle_timeout"`
	MaxMessageBytes int64  `yaml:"max_message_bytes"`
}

// KeepaliveConfig holds the liveness probe cadence shared by hub sessions and agents.
type KeepaliveConfig struct {
	ProbeIntervalSec int `yaml:"probe_interval"`
	ProbeTimeoutSec  int `yaml:"probe_timeout"`
}

// BroadcastConfig bounds per-subscriber buffering and write time.
type BroadcastConfig struct {
	QueueSize      int `yaml:"queue_size"`
	SendTimeoutSec int `yaml:"send_timeout"`
}

// AgentConfig holds producer-side settings.
type AgentConfig struct {
	URL             string `yaml:"url"`
	VehicleID       string `yaml:"vehicle_id"`
	SendIntervalSec int    `yaml:"send_interval"`
	BackoffBaseSec  int    `yaml:"backoff_base"`
	BackoffMaxSec   int    `yaml:"backoff_max"`
}

// PredictorConfig selects the inference backend.
type PredictorConfig struct {
	Mode       string `yaml:"mode"` // "rules" or "remote"
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeout"`
}

// AuthConfig configures bearer-token verification for the read API.
// An empty Algorithm leaves the read API open.
type AuthConfig struct {
	Algorithm    string `yaml:"algorithm"` // "", "HS256" or "RS256"
	SecretKey    string `yaml:"secret_key"`
	PublicKeyPEM string `yaml:"public_key_pem"`
}

// LogConfig configures the process logger and the audit journal.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "console" or "json"
	File       string `yaml:"file"`
	AuditDir   string `yaml:"audit_dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8765",
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 30,
			IdleTimeoutSec:  120,
			MaxMessageBytes: 64 * 1024,
		},
		Keepalive: KeepaliveConfig{
			ProbeIntervalSec: 10,
			ProbeTimeoutSec:  30,
		},
		Broadcast: BroadcastConfig{
			QueueSize:      256,
			SendTimeoutSec: 5,
		},
		Agent: AgentConfig{
			URL:             "ws://localhost:8765/vehicle",
			SendIntervalSec: 1,
			BackoffBaseSec:  5,
			BackoffMaxSec:   30,
		},
		Predictor: PredictorConfig{
			Mode:       "rules",
			TimeoutSec: 2,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			AuditDir:   "logs",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ReadTimeout returns the HTTP read timeout.
func (s ServerConfig) ReadTimeout() time.Duration { return seconds(s.ReadTimeoutSec) }

// WriteTimeout returns the HTTP write timeout.
func (s ServerConfig) WriteTimeout() time.Duration { return seconds(s.WriteTimeoutSec) }

// IdleTimeout returns the HTTP idle timeout.
func (s ServerConfig) IdleTimeout() time.Duration { return seconds(s.IdleTimeoutSec) }

// ProbeInterval returns the ping period.
func (k KeepaliveConfig) ProbeInterval() time.Duration { return seconds(k.ProbeIntervalSec) }

// ProbeTimeout returns how long a link may go without a pong.
func (k KeepaliveConfig) ProbeTimeout() time.Duration { return seconds(k.ProbeTimeoutSec) }

// SendTimeout returns the per-write deadline for subscriber delivery.
func (b BroadcastConfig) SendTimeout() time.Duration { return seconds(b.SendTimeoutSec) }

// SendInterval returns the agent's telemetry cadence.
func (a AgentConfig) SendInterval() time.Duration { return seconds(a.SendIntervalSec) }

// BackoffBase returns the first reconnect delay.
func (a AgentConfig) BackoffBase() time.Duration { return seconds(a.BackoffBaseSec) }

// BackoffMax returns the reconnect delay cap.
func (a AgentConfig) BackoffMax() time.Duration { return seconds(a.BackoffMaxSec) }

// Timeout returns the remote predictor request timeout.
func (p PredictorConfig) Timeout() time.Duration { return seconds(p.TimeoutSec) }
