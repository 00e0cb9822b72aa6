package elasticAsset

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrTransferReverted      = errors.New("transfer reverted")
)

// IElasticAsset is the view the wrapper has of a rebasing token. Every method reads live state;
// implementations must not cache balances or supplies because a rebase can change them at any time.
type IElasticAsset interface {
	// Address is the wrapper's custody address, i.e. the pool.
	Address() common.Address

	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)

	// Transfer moves amount from the pool to the recipient.
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error

	// TransferFrom pulls amount from the holder into the pool using the holder's prior approval.
	TransferFrom(ctx context.Context, from common.Address, amount *big.Int) error

	TotalSupply(ctx context.Context) (*big.Int, error)

	// ScaledTotalSupply is the rebase-invariant supply. Its ratio to TotalSupply is the asset's
	// rebase index.
	ScaledTotalSupply(ctx context.Context) (*big.Int, error)
}

// IHeightSource reports the external ledger's monotonically increasing height.
type IHeightSource interface {
	CurrentHeight(ctx context.Context) (uint64, error)
}
