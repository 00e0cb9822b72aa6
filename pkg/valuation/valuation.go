package valuation

import (
	"context"
	"math/big"

	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/pkg/elasticAsset"
	"github.com/rhinofi/ampleforth-wrapper/pkg/types/numbers"
	"go.uber.org/zap"
)

// ErrNoBacking is returned when shares are outstanding but nothing backs them.
var ErrNoBacking = errors.New("shares outstanding with no backing assets")

// Rate is the exchange rate between asset base units and wrapper shares at one point in time.
// Every conversion floors.
type Rate struct {
	Assets *big.Int
	Shares *big.Int
}

func (r *Rate) ToAssets(shares *big.Int) *big.Int {
	return numbers.MulDivFloor(shares, r.Assets, r.Shares)
}

func (r *Rate) ToShares(amount *big.Int) *big.Int {
	return numbers.MulDivFloor(amount, r.Shares, r.Assets)
}

type IValuation interface {
	Quote(ctx context.Context, totalShares *big.Int) (*Rate, error)
}

// PoolValuation prices shares against the custody balance: one share is worth
// poolBalance / totalShares, and the first deposit mints 1:1.
type PoolValuation struct {
	asset  elasticAsset.IElasticAsset
	logger *zap.Logger
}

func NewPoolValuation(asset elasticAsset.IElasticAsset, l *zap.Logger) *PoolValuation {
	return &PoolValuation{asset: asset, logger: l}
}

func (p *PoolValuation) Quote(ctx context.Context, totalShares *big.Int) (*Rate, error) {
	balance, err := p.asset.BalanceOf(ctx, p.asset.Address())
	if err != nil {
		p.logger.Sugar().Errorw("Failed to fetch pool balance", zap.Error(err))
		return nil, err
	}
	if totalShares.Sign() == 0 {
		return &Rate{Assets: big.NewInt(1), Shares: big.NewInt(1)}, nil
	}
	if balance.Sign() == 0 {
		return nil, errors.Wrapf(ErrNoBacking, "%s shares outstanding", totalShares)
	}
	return &Rate{Assets: balance, Shares: new(big.Int).Set(totalShares)}, nil
}

// IndexValuation prices shares against the asset's own scaling index: one share is one internal
// unit of the token and an amount is worth amount * unitsPerToken shares, where unitsPerToken is
// floor(scaledTotalSupply / totalSupply) exactly as the token computes it. Balances that reach the
// pool without a deposit stay unattributed and can be swept.
type IndexValuation struct {
	asset  elasticAsset.IElasticAsset
	logger *zap.Logger
}

func NewIndexValuation(asset elasticAsset.IElasticAsset, l *zap.Logger) *IndexValuation {
	return &IndexValuation{asset: asset, logger: l}
}

func (i *IndexValuation) Quote(ctx context.Context, _ *big.Int) (*Rate, error) {
	supply, err := i.asset.TotalSupply(ctx)
	if err != nil {
		i.logger.Sugar().Errorw("Failed to fetch total supply", zap.Error(err))
		return nil, err
	}
	scaled, err := i.asset.ScaledTotalSupply(ctx)
	if err != nil {
		i.logger.Sugar().Errorw("Failed to fetch scaled total supply", zap.Error(err))
		return nil, err
	}
	if supply.Sign() <= 0 {
		return nil, errors.Errorf("asset reported total supply %s", supply)
	}
	unitsPerToken := new(big.Int).Quo(scaled, supply)
	if unitsPerToken.Sign() <= 0 {
		return nil, errors.Errorf("asset reported scaled supply %s below total supply %s", scaled, supply)
	}
	return &Rate{Assets: big.NewInt(1), Shares: unitsPerToken}, nil
}

func NewValuation(mode config.ValuationMode, asset elasticAsset.IElasticAsset, l *zap.Logger) (IValuation, error) {
	switch mode {
	case config.ValuationMode_Index:
		return NewIndexValuation(asset, l), nil
	case config.ValuationMode_Pool:
		return NewPoolValuation(asset, l), nil
	}
	return nil, errors.Errorf("unsupported valuation mode '%s'", mode)
}
