package ledgerStore

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var ErrNegativeShares = errors.New("share balance would become negative")

type HolderShares struct {
	Holder common.Address
	Shares *big.Int
}

type AuthorizationUse struct {
	Digest common.Hash
	Holder common.Address
}

type ILedgerReader interface {
	GetShares(ctx context.Context, holder common.Address) (*big.Int, error)
	GetTotalShares(ctx context.Context) (*big.Int, error)
	// ListHolders returns every holder with a non-zero balance, ordered by address.
	ListHolders(ctx context.Context) ([]*HolderShares, error)
	// GetController returns false when no controller has been set.
	GetController(ctx context.Context) (common.Address, bool, error)
	IsProxy(ctx context.Context, address common.Address) (bool, error)
	// ListProxies returns every registered proxy, ordered by address.
	ListProxies(ctx context.Context) ([]common.Address, error)
	IsAuthorizationUsed(ctx context.Context, digest common.Hash) (bool, error)
	// ListUsedAuthorizations returns every consumed authorization, ordered by digest.
	ListUsedAuthorizations(ctx context.Context) ([]*AuthorizationUse, error)
}

type ILedgerWriter interface {
	ILedgerReader

	// AdjustShares adds delta (which may be negative) to the holder's shares and to the total,
	// returning the holder's new balance.
	AdjustShares(ctx context.Context, holder common.Address, delta *big.Int) (*big.Int, error)
	SetController(ctx context.Context, controller common.Address) error
	AddProxy(ctx context.Context, address common.Address) error
	RemoveProxy(ctx context.Context, address common.Address) error
	MarkAuthorizationUsed(ctx context.Context, digest common.Hash, holder common.Address) error
}

// ILedgerStore is the persistent share ledger. Every write happens inside WithTransaction: when fn
// returns an error none of its writes are kept. Reads inside fn must go through tx.
type ILedgerStore interface {
	ILedgerReader
	WithTransaction(ctx context.Context, fn func(tx ILedgerWriter) error) error
}

// Tables.
type HolderShare struct {
	Holder string `gorm:"primaryKey"`
	Shares string
}

type LedgerConfig struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (LedgerConfig) TableName() string {
	return "ledger_config"
}

type Proxy struct {
	Address string `gorm:"primaryKey"`
}

type UsedAuthorization struct {
	Digest string `gorm:"primaryKey"`
	Holder string
}

const (
	ConfigKey_TotalShares = "total_shares"
	ConfigKey_Controller  = "controller"
)

func FormatAddress(address common.Address) string {
	return strings.ToLower(address.Hex())
}

// ApplyDelta returns current+delta, or ErrNegativeShares if that would drop below zero.
func ApplyDelta(holder common.Address, current *big.Int, delta *big.Int) (*big.Int, error) {
	next := new(big.Int).Add(current, delta)
	if next.Sign() < 0 {
		return nil, errors.Wrapf(ErrNegativeShares, "%s holds %s, adjustment %s", holder.Hex(), current, delta)
	}
	return next, nil
}
