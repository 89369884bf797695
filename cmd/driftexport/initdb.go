package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the conversations table if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Open applies the schema.
		s, err := openStore(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		slog.Info("conversations table ready", "driver", cfg.StoreDriver)
		return nil
	},
}
