package cmd

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/pkg/elasticAsset/memoryAsset"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore/memoryLedgerStore"
	"github.com/rhinofi/ampleforth-wrapper/pkg/withdrawalAuth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var simulationSupply = big.NewInt(50000000000000000)

var (
	simOwner     = common.HexToAddress("0x1000000000000000000000000000000000000001")
	simHolder    = common.HexToAddress("0x2000000000000000000000000000000000000002")
	simCustody   = common.HexToAddress("0x3000000000000000000000000000000000000003")
	simProxy     = common.HexToAddress("0x4000000000000000000000000000000000000004")
	simRecipient = common.HexToAddress("0x5000000000000000000000000000000000000005")
)

type simulationResult struct {
	Mode             config.ValuationMode
	HolderWrapped    *big.Int
	HolderAsset      *big.Int
	RecipientWrapped *big.Int
	Swept            *big.Int
	ControllerAsset  *big.Int
	StateRoot        common.Hash
}

// runSimulation deposits 10 of a holder's 100 units, doubles the supply, withdraws 3 with a signed
// authorization, moves 7 to a recipient through a proxy, donates 25 straight to the pool and sweeps.
func runSimulation(ctx context.Context, mode config.ValuationMode, l *zap.Logger) (*simulationResult, error) {
	cfg := &config.Config{WrapperConfig: config.WrapperConfig{ValuationMode: string(mode)}}

	controllerKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	controller := crypto.PubkeyToAddress(controllerKey.PublicKey)

	asset, err := memoryAsset.NewMemoryAsset(simOwner, simulationSupply, l)
	if err != nil {
		return nil, err
	}
	if err := asset.Transfer(simOwner, simHolder, big.NewInt(100)); err != nil {
		return nil, err
	}
	asset.Approve(simHolder, simCustody, big.NewInt(100))
	pool := asset.Pool(simCustody)

	w, _, err := newWrapper(cfg, memoryLedgerStore.NewMemoryLedgerStore(l), pool, pool, nil, l)
	if err != nil {
		return nil, err
	}
	if err := w.Initialize(ctx, controller); err != nil {
		return nil, err
	}

	if _, err := w.Deposit(ctx, simHolder, big.NewInt(10), big.NewInt(0)); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	if _, err := asset.Rebase(simulationSupply); err != nil {
		return nil, err
	}

	auth, err := withdrawalAuth.Sign(controllerKey, simHolder, w.Address(), asset.Height()+10)
	if err != nil {
		return nil, err
	}
	if err := w.Withdraw(ctx, simHolder, big.NewInt(3), auth); err != nil {
		return nil, fmt.Errorf("withdraw: %w", err)
	}

	if err := w.AddProxy(ctx, controller, simProxy); err != nil {
		return nil, err
	}
	if err := w.TransferFrom(ctx, simProxy, simHolder, simRecipient, big.NewInt(7)); err != nil {
		return nil, fmt.Errorf("transferFrom: %w", err)
	}

	if err := asset.Transfer(simOwner, simCustody, big.NewInt(25)); err != nil {
		return nil, err
	}
	swept, err := w.WithdrawBalanceDifference(ctx, controller)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	holderWrapped, err := w.BalanceOf(ctx, simHolder)
	if err != nil {
		return nil, err
	}
	recipientWrapped, err := w.BalanceOf(ctx, simRecipient)
	if err != nil {
		return nil, err
	}
	root, err := w.StateRoot(ctx)
	if err != nil {
		return nil, err
	}
	return &simulationResult{
		Mode:             mode,
		HolderWrapped:    holderWrapped,
		HolderAsset:      asset.BalanceOf(simHolder),
		RecipientWrapped: recipientWrapped,
		Swept:            swept,
		ControllerAsset:  asset.BalanceOf(controller),
		StateRoot:        root,
	}, nil
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a deposit, rebase, withdraw and sweep scenario against an in-memory asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		mode, err := cfg.GetValuationMode()
		if err != nil {
			return err
		}

		res, err := runSimulation(context.Background(), mode, l)
		if err != nil {
			return err
		}
		fmt.Printf("ValuationMode: %s\n", res.Mode)
		fmt.Printf("HolderWrapped: %s\n", res.HolderWrapped)
		fmt.Printf("HolderAsset: %s\n", res.HolderAsset)
		fmt.Printf("RecipientWrapped: %s\n", res.RecipientWrapped)
		fmt.Printf("Swept: %s\n", res.Swept)
		fmt.Printf("ControllerAsset: %s\n", res.ControllerAsset)
		fmt.Printf("StateRoot: %s\n", res.StateRoot.Hex())
		return nil
	},
}
