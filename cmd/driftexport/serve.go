package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/driftexport/internal/api"
	"github.com/MikeSquared-Agency/driftexport/internal/export"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Export on a schedule and serve the status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, runConfig(cfg))
		if err != nil {
			return err
		}
		defer a.Close()

		sched := export.NewScheduler(a.runner, cfg.Interval, slog.Default())

		srv := api.NewServer(cfg.Port, sched, a.store)
		go func() {
			if err := srv.Start(); err != nil {
				slog.Error("HTTP server error", "error", err)
			}
		}()

		slog.Info("driftexport serving", "port", cfg.Port, "interval", cfg.Interval.String())
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		slog.Info("driftexport stopped")
		return nil
	},
}
