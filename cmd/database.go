package cmd

import (
	"fmt"

	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/spf13/cobra"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Create the database if needed and run all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		grm, err := openDatabase(cfg, l)
		if err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		defer closeDatabase(grm)

		l.Sugar().Infow("Database is up to date", "driver", cfg.GetDatabaseDriver())
		return nil
	},
}
