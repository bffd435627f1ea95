// Package main runs a local inference service for the hub's remote
// predictor mode.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mukundvijay123/5thSemEL/internal/config"
	"github.com/mukundvijay123/5thSemEL/internal/inference"
	"github.com/mukundvijay123/5thSemEL/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "inference-mock: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := pflag.String("addr", ":8090", "listen address")
	latency := pflag.Duration("latency", 0, "artificial delay added to every prediction")
	logLevel := pflag.String("log-level", "info", "log level")
	logFormat := pflag.String("log-format", "console", "log format (console or json)")
	pflag.Parse()

	logCfg := config.Defaults().Log
	logCfg.Level = *logLevel
	logCfg.Format = *logFormat

	log, logCloser, err := logging.New(logCfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	svc := inference.NewServer(log)
	svc.SetLatency(*latency)

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      svc.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second + *latency,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", *addr).Dur("latency", *latency).Msg("inference service listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	log.Info().Int64("requests", svc.Requests()).Msg("inference service stopped")
	return nil
}
