package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/driftexport/internal/config"
	"github.com/MikeSquared-Agency/driftexport/internal/drift"
	"github.com/MikeSquared-Agency/driftexport/internal/export"
	"github.com/MikeSquared-Agency/driftexport/internal/hermes"
	"github.com/MikeSquared-Agency/driftexport/internal/slack"
	"github.com/MikeSquared-Agency/driftexport/internal/store"
)

// app is everything an export needs, opened once per process.
type app struct {
	cfg    config.Config
	store  store.Store
	runner *export.Runner
	hermes *hermes.Client
}

// loadConfig reads the environment and configures logging.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	setupLogging(cfg.LogLevel)
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	s, err := store.Open(ctx, cfg.StoreDriver, cfg.SQLitePath, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	slog.Info("store ready", "driver", cfg.StoreDriver)
	return s, nil
}

func newApp(ctx context.Context, cfg config.Config, runCfg export.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := drift.NewClient(cfg.DriftAPIURL, cfg.DriftAuthToken, cfg.DriftRequestsPerSecond, slog.Default())
	slog.Info("drift client ready", "url", cfg.DriftAPIURL, "requests_per_second", cfg.DriftRequestsPerSecond)

	runner := export.NewRunner(runCfg, client, st, slog.Default())
	runner.SetPacer(export.DelayPacer{Delay: cfg.Delay})

	a := &app{cfg: cfg, store: st, runner: runner}

	// NATS is optional; without it no events are published.
	if cfg.NatsURL != "" {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		a.hermes = hc
		runner.SetPublisher(hc)
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	if cfg.SlackEnabled() {
		runner.SetPoster(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default()))
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Debug("slack not configured, run summaries will be logged")
	}

	return a, nil
}

func (a *app) Close() {
	if a.hermes != nil {
		a.hermes.Close()
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("closing store", "error", err)
	}
}

// runConfig builds the export run settings from config and flag overrides.
func runConfig(cfg config.Config) export.Config {
	return export.Config{
		Lookback: cfg.Lookback,
		Enrich:   cfg.Enrich,
		LinkBase: cfg.LinkBase,
	}
}
