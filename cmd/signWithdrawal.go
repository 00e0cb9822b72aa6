package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/pkg/withdrawalAuth"
	"github.com/spf13/cobra"
)

var signWithdrawalCmd = &cobra.Command{
	Use:   "sign-withdrawal",
	Short: "Sign a withdrawal authorization with the controller key",
	RunE: func(cmd *cobra.Command, args []string) error {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()

		key, err := parsePrivateKey(cfg.SignerConfig.ControllerPrivateKey)
		if err != nil {
			return fmt.Errorf("controller key: %w", err)
		}

		holderFlag, _ := cmd.Flags().GetString("holder")
		holder, err := parseAddressFlag("holder", holderFlag)
		if err != nil {
			return err
		}
		validUntil, _ := cmd.Flags().GetUint64("valid-until")
		if validUntil == 0 {
			return fmt.Errorf("--valid-until is required")
		}

		wrapperAddress, err := resolveWrapperAddress(cmd, cfg)
		if err != nil {
			return err
		}

		auth, err := withdrawalAuth.Sign(key, holder, wrapperAddress, validUntil)
		if err != nil {
			return fmt.Errorf("failed to sign authorization: %w", err)
		}

		fmt.Printf("Controller: %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
		fmt.Printf("Holder: %s\n", holder.Hex())
		fmt.Printf("Wrapper: %s\n", wrapperAddress.Hex())
		fmt.Printf("ValidUntil: %d\n", auth.ValidUntil)
		fmt.Printf("Digest: %s\n", withdrawalAuth.Digest(holder, wrapperAddress, validUntil).Hex())
		fmt.Printf("Signature: %s\n", hexutil.Encode(auth.Signature))
		return nil
	},
}

func resolveWrapperAddress(cmd *cobra.Command, cfg *config.Config) (common.Address, error) {
	if flag, _ := cmd.Flags().GetString("wrapper-address"); flag != "" {
		return parseAddressFlag("wrapper-address", flag)
	}
	custody, err := parsePrivateKey(cfg.EthereumConfig.CustodyPrivateKey)
	if err != nil {
		return common.Address{}, fmt.Errorf("--wrapper-address or a custody key is required: %w", err)
	}
	return crypto.PubkeyToAddress(custody.PublicKey), nil
}
