//
//
package config

import (
	"fmt"
)

// Validate enforces the configuration rules for both binaries.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(cfg.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := validateKeepalive(cfg.Keepalive); err != nil {
		return fmt.Errorf("keepalive validation failed: %w", err)
	}

	if err := validateBroadcast(cfg.Broadcast); err != nil {
		return fmt.Errorf("broadcast validation failed: %w", err)
	}

	if err := validateAgent(cfg.Agent); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}

	if err := validatePredictor(cfg.Predictor); err != nil {
		return fmt.Errorf("predictor validation failed: %w", err)
	}

	if err := validateAuth(cfg.Auth); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}

	return nil
}

func validateServer(s ServerConfig) error {
	if s.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if s.MaxMessageBytes <= 0 {
		return fmt.Errorf("max message bytes must be positive, got %d", s.MaxMessageBytes)
	}
	if s.ReadTimeoutSec < 0 || s.WriteTimeoutSec < 0 || s.IdleTimeoutSec < 0 {
		return fmt.Errorf("server timeouts must be non-negative")
	}
	return nil
}

// validateKeepalive requires the ack window to cover at least one probe period.
func validateKeepalive(k KeepaliveConfig) error {
	if k.ProbeIntervalSec <= 0 {
		return fmt.Errorf("probe interval must be positive, got %ds", k.ProbeIntervalSec)
	}
	if k.ProbeTimeoutSec < k.ProbeIntervalSec {
		return fmt.Errorf("probe timeout %ds must be >= interval %ds", k.ProbeTimeoutSec, k.ProbeIntervalSec)
	}
	return nil
}

func validateBroadcast(b BroadcastConfig) error {
	if b.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", b.QueueSize)
	}
	if b.SendTimeoutSec <= 0 {
		return fmt.Errorf("send timeout must be positive, got %ds", b.SendTimeoutSec)
	}
	return nil
}

func validateAgent(a AgentConfig) error {
	if a.SendIntervalSec <= 0 {
		return fmt.Errorf("send interval must be positive, got %ds", a.SendIntervalSec)
	}
	if a.BackoffBaseSec <= 0 {
		return fmt.Errorf("backoff base must be positive, got %ds", a.BackoffBaseSec)
	}
	if a.BackoffMaxSec < a.BackoffBaseSec {
		return fmt.Errorf("backoff max %ds must be >= base %ds", a.BackoffMaxSec, a.BackoffBaseSec)
	}
	return nil
}

func validatePredictor(p PredictorConfig) error {
	switch p.Mode {
	case "rules":
	case "remote":
		if p.URL == "" {
			return fmt.Errorf("remote predictor requires a url")
		}
		if p.TimeoutSec <= 0 {
			return fmt.Errorf("remote predictor timeout must be positive, got %ds", p.TimeoutSec)
		}
	default:
		return fmt.Errorf("unknown predictor mode %q", p.Mode)
	}
	return nil
}

func validateAuth(a AuthConfig) error {
	switch a.Algorithm {
	case "":
	case "HS256":
		if a.SecretKey == "" {
			return fmt.Errorf("HS256 requires secret key")
		}
	case "RS256":
		if a.PublicKeyPEM == "" {
			return fmt.Errorf("RS256 requires a public key")
		}
	default:
		return fmt.Errorf("unsupported algorithm: %s", a.Algorithm)
	}
	return nil
}
