package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/pkg/types/numbers"
	"github.com/rhinofi/ampleforth-wrapper/pkg/wrapper"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show a holder's shares and their current value",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()
		ctx := context.Background()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		holderFlag, _ := cmd.Flags().GetString("holder")
		holder, err := parseAddressFlag("holder", holderFlag)
		if err != nil {
			return err
		}
		decimals, _ := cmd.Flags().GetInt32("decimals")

		asset, client, err := dialEthereumAsset(ctx, cfg, l)
		if err != nil {
			return err
		}
		defer client.Close()

		store, closeStore, err := openLedgerStore(cfg, l)
		if err != nil {
			return err
		}
		defer closeStore()

		w, _, err := newWrapper(cfg, store, asset, asset, nil, l)
		if err != nil {
			return err
		}

		shares, err := w.SharesOf(ctx, holder)
		if err != nil {
			return err
		}
		value, err := w.BalanceOf(ctx, holder)
		if err != nil {
			return err
		}
		totalShares, err := w.TotalShares(ctx)
		if err != nil {
			return err
		}
		excess, err := w.BalanceDifference(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Holder: %s\n", holder.Hex())
		fmt.Printf("Shares: %s\n", shares)
		fmt.Printf("Value: %s (%s)\n", value, numbers.FormatUnits(value, decimals))
		fmt.Printf("TotalShares: %s\n", totalShares)
		fmt.Printf("Unattributed: %s (%s)\n", excess, numbers.FormatUnits(excess, decimals))
		return nil
	},
}

var stateRootCmd = &cobra.Command{
	Use:   "state-root",
	Short: "Print the merkle root of the share ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()
		ctx := context.Background()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		store, closeStore, err := openLedgerStore(cfg, l)
		if err != nil {
			return err
		}
		defer closeStore()

		tree, err := wrapper.MerkleizeLedger(ctx, store)
		if err != nil {
			return fmt.Errorf("failed to merkleize ledger: %w", err)
		}
		fmt.Printf("StateRoot: %s\n", common.BytesToHash(tree.Root()).Hex())
		return nil
	},
}
