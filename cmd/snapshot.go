package cmd

import (
	"context"
	"fmt"

	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/pkg/snapshot"
	"github.com/spf13/cobra"
)

var exportSnapshotCmd = &cobra.Command{
	Use:   "export-snapshot",
	Short: "Write the share ledger to a CSV snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		svc, err := snapshot.NewSnapshotService(&snapshot.SnapshotConfig{
			OutputFile: cfg.SnapshotConfig.OutputFile,
		}, l)
		if err != nil {
			return err
		}

		store, closeStore, err := openLedgerStore(cfg, l)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := svc.CreateSnapshot(context.Background(), store); err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}
		return nil
	},
}

var restoreSnapshotCmd = &cobra.Command{
	Use:   "restore-snapshot",
	Short: "Load a CSV snapshot into an empty share ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		svc, err := snapshot.NewSnapshotService(&snapshot.SnapshotConfig{
			InputFile: cfg.SnapshotConfig.InputFile,
		}, l)
		if err != nil {
			return err
		}

		store, closeStore, err := openLedgerStore(cfg, l)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := svc.RestoreSnapshot(context.Background(), store); err != nil {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}
		return nil
	},
}
