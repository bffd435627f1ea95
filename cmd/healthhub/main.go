// Package main runs the vehicle health hub: producer and monitor WebSocket
// endpoints, the read API and /metrics on one listener.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/mukundvijay123/5thSemEL/internal/api"
	"github.com/mukundvijay123/5thSemEL/internal/audit"
	"github.com/mukundvijay123/5thSemEL/internal/auth"
	"github.com/mukundvijay123/5thSemEL/internal/config"
	"github.com/mukundvijay123/5thSemEL/internal/hub"
	"github.com/mukundvijay123/5thSemEL/internal/logging"
	"github.com/mukundvijay123/5thSemEL/internal/metrics"
	"github.com/mukundvijay123/5thSemEL/internal/predict"
	"github.com/mukundvijay123/5thSemEL/internal/state"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "healthhub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "path to YAML config (default $"+config.EnvConfigPath+")")
	addr := pflag.String("addr", "", "listen address, overrides server.addr")
	logLevel := pflag.String("log-level", "", "log level, overrides log.level")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	log.Info().Str("version", api.Version).Msg("starting vehicle health hub")

	auditLogger, err := audit.NewLogger(cfg.Log.AuditDir, audit.Options{
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audit logger: %w", err)
	}
	defer func() {
		if err := auditLogger.Close(); err != nil {
			log.Error().Err(err).Msg("error closing audit logger")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	predictor, err := newPredictor(cfg.Predictor, log)
	if err != nil {
		return err
	}

	authMiddleware, err := newAuth(cfg.Auth)
	if err != nil {
		return err
	}

	store := state.NewStore()
	sessions := hub.NewServer(store, predictor,
		hub.Options{
			QueueSize:   cfg.Broadcast.QueueSize,
			SendTimeout: cfg.Broadcast.SendTimeout(),
		},
		hub.SessionOptions{
			ProbeInterval:   cfg.Keepalive.ProbeInterval(),
			ProbeTimeout:    cfg.Keepalive.ProbeTimeout(),
			WriteWait:       cfg.Broadcast.SendTimeout(),
			PredictTimeout:  cfg.Predictor.Timeout(),
			MaxMessageBytes: cfg.Server.MaxMessageBytes,
		},
		hub.Deps{Log: log, Metrics: m, Audit: auditLogger})

	server := api.NewServer(store, sessions, reg, authMiddleware, log,
		cfg.Server.ReadTimeout(), cfg.Server.WriteTimeout(), cfg.Server.IdleTimeout())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Addr)
	}()

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("predictor", cfg.Predictor.Mode).
		Bool("auth", authMiddleware.Enabled()).
		Msg("vehicle health hub started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("server error")
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Sessions first: hijacked sockets are invisible to http.Server.Shutdown.
	if err := sessions.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error closing sessions")
	}
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error stopping HTTP server")
	}

	log.Info().Msg("vehicle health hub shutdown complete")
	return runErr
}

func newPredictor(cfg config.PredictorConfig, log zerolog.Logger) (hub.Predictor, error) {
	switch cfg.Mode {
	case "rules", "":
		return predict.NewRulesPair(), nil
	case "remote":
		log.Info().Str("url", cfg.URL).Msg("using remote inference service")
		return predict.NewRemotePair(cfg.URL, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown predictor mode %q", cfg.Mode)
	}
}

func newAuth(cfg config.AuthConfig) (*auth.Middleware, error) {
	if cfg.Algorithm == "" {
		return auth.NewMiddleware(nil), nil
	}
	v, err := auth.NewVerifier(auth.VerifierConfig{
		Algorithm:    cfg.Algorithm,
		SecretKey:    cfg.SecretKey,
		PublicKeyPEM: cfg.PublicKeyPEM,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}
	return auth.NewMiddleware(v), nil
}
