// Package main runs a vehicle agent that streams synthetic telemetry to a
// health hub, reconnecting with exponential backoff.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/mukundvijay123/5thSemEL/internal/agent"
	"github.com/mukundvijay123/5thSemEL/internal/config"
	"github.com/mukundvijay123/5thSemEL/internal/logging"
	"github.com/mukundvijay123/5thSemEL/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vehicle-agent: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "path to YAML config (default $"+config.EnvConfigPath+")")
	url := pflag.String("url", "", "hub producer endpoint, overrides agent.url")
	vehicleID := pflag.String("vehicle-id", "", "vehicle identity, overrides agent.vehicle_id")
	seed := pflag.Int64("seed", 0, "synthetic telemetry seed (0 uses the clock)")
	logLevel := pflag.String("log-level", "", "log level, overrides log.level")
	metricsAddr := pflag.String("metrics-addr", "", "serve /metrics on this address (disabled when empty)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *url != "" {
		cfg.Agent.URL = *url
	}
	if *vehicleID != "" {
		cfg.Agent.VehicleID = *vehicleID
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	var m *metrics.Metrics
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	client := agent.New(agent.Options{
		URL:           cfg.Agent.URL,
		VehicleID:     cfg.Agent.VehicleID,
		SendInterval:  cfg.Agent.SendInterval(),
		BackoffBase:   cfg.Agent.BackoffBase(),
		BackoffMax:    cfg.Agent.BackoffMax(),
		ProbeInterval: cfg.Keepalive.ProbeInterval(),
		ProbeTimeout:  cfg.Keepalive.ProbeTimeout(),
		WriteWait:     cfg.Broadcast.SendTimeout(),
	}, agent.NewSyntheticSource(*seed), log, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("url", cfg.Agent.URL).
		Str("vehicle", cfg.Agent.VehicleID).
		Dur("interval", cfg.Agent.SendInterval()).
		Msg("vehicle agent started")

	if err := client.Run(ctx); err != nil {
		return err
	}

	log.Info().Int64("sent", client.Sent()).Int64("replies", client.Replies()).Msg("vehicle agent stopped")
	return nil
}
