package memoryAsset

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/pkg/elasticAsset"
	"go.uber.org/zap"
)

var (
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	maxSupply  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// MemoryAsset is an in-process rebasing token. Balances are held in "gons", a fixed-size internal
// unit; a rebase only changes how many gons make up one fragment, so every holder's balance scales
// by the same factor at once.
type MemoryAsset struct {
	logger *zap.Logger
	mu     sync.Mutex

	totalGons       *big.Int
	totalSupply     *big.Int
	gonsPerFragment *big.Int
	gonBalances     map[common.Address]*big.Int
	allowances      map[common.Address]map[common.Address]*big.Int

	paused bool
	height uint64
}

// NewMemoryAsset mints initialSupply to owner.
func NewMemoryAsset(owner common.Address, initialSupply *big.Int, l *zap.Logger) (*MemoryAsset, error) {
	if initialSupply == nil || initialSupply.Sign() <= 0 {
		return nil, errors.New("initial supply must be positive")
	}
	totalGons := new(big.Int).Sub(maxUint256, new(big.Int).Mod(maxUint256, initialSupply))

	a := &MemoryAsset{
		logger:          l,
		totalGons:       totalGons,
		totalSupply:     new(big.Int).Set(initialSupply),
		gonsPerFragment: new(big.Int).Quo(totalGons, initialSupply),
		gonBalances:     make(map[common.Address]*big.Int),
		allowances:      make(map[common.Address]map[common.Address]*big.Int),
		height:          1,
	}
	a.gonBalances[owner] = new(big.Int).Set(totalGons)
	return a, nil
}

func (a *MemoryAsset) gonsOf(account common.Address) *big.Int {
	if g, ok := a.gonBalances[account]; ok {
		return g
	}
	return big.NewInt(0)
}

func (a *MemoryAsset) BalanceOf(account common.Address) *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Quo(a.gonsOf(account), a.gonsPerFragment)
}

func (a *MemoryAsset) TotalSupply() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.totalSupply)
}

func (a *MemoryAsset) ScaledTotalSupply() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.totalGons)
}

func (a *MemoryAsset) Allowance(owner common.Address, spender common.Address) *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return new(big.Int).Set(a.allowanceOf(owner, spender))
}

func (a *MemoryAsset) allowanceOf(owner common.Address, spender common.Address) *big.Int {
	if spenders, ok := a.allowances[owner]; ok {
		if v, ok := spenders[spender]; ok {
			return v
		}
	}
	return big.NewInt(0)
}

func (a *MemoryAsset) Approve(owner common.Address, spender common.Address, amount *big.Int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.allowances[owner]; !ok {
		a.allowances[owner] = make(map[common.Address]*big.Int)
	}
	a.allowances[owner][spender] = new(big.Int).Set(amount)
}

// Pause makes every subsequent transfer revert until unpaused.
func (a *MemoryAsset) Pause(paused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paused = paused
}

func (a *MemoryAsset) Transfer(from common.Address, to common.Address, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.moveFragments(from, to, amount)
}

func (a *MemoryAsset) TransferFrom(spender common.Address, from common.Address, to common.Address, amount *big.Int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.paused {
		return elasticAsset.ErrTransferReverted
	}
	allowance := a.allowanceOf(from, spender)
	if allowance.Cmp(amount) < 0 {
		return errors.Wrapf(elasticAsset.ErrInsufficientAllowance, "allowance %s, requested %s", allowance, amount)
	}
	if err := a.moveFragments(from, to, amount); err != nil {
		return err
	}
	if _, ok := a.allowances[from]; !ok {
		a.allowances[from] = make(map[common.Address]*big.Int)
	}
	a.allowances[from][spender] = new(big.Int).Sub(allowance, amount)
	return nil
}

func (a *MemoryAsset) moveFragments(from common.Address, to common.Address, amount *big.Int) error {
	if a.paused {
		return elasticAsset.ErrTransferReverted
	}
	if amount.Sign() < 0 {
		return errors.New("negative transfer amount")
	}
	gonValue := new(big.Int).Mul(amount, a.gonsPerFragment)
	fromGons := a.gonsOf(from)
	if fromGons.Cmp(gonValue) < 0 {
		return errors.Wrapf(elasticAsset.ErrInsufficientBalance, "%s holds %s, requested %s",
			from.Hex(), new(big.Int).Quo(fromGons, a.gonsPerFragment), amount)
	}
	a.gonBalances[from] = new(big.Int).Sub(fromGons, gonValue)
	a.gonBalances[to] = new(big.Int).Add(a.gonsOf(to), gonValue)
	return nil
}

// Rebase changes the total supply by supplyDelta (which may be negative) and returns the new supply.
func (a *MemoryAsset) Rebase(supplyDelta *big.Int) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if supplyDelta.Sign() == 0 {
		return new(big.Int).Set(a.totalSupply), nil
	}
	next := new(big.Int).Add(a.totalSupply, supplyDelta)
	if next.Sign() <= 0 {
		return nil, errors.Errorf("rebase by %s would leave a non-positive supply", supplyDelta)
	}
	if next.Cmp(maxSupply) > 0 {
		next.Set(maxSupply)
	}
	a.totalSupply = next
	a.gonsPerFragment = new(big.Int).Quo(a.totalGons, a.totalSupply)
	a.height++

	a.logger.Sugar().Debugw("Rebased elastic asset",
		zap.String("supplyDelta", supplyDelta.String()),
		zap.String("totalSupply", a.totalSupply.String()),
	)
	return new(big.Int).Set(a.totalSupply), nil
}

// Mine advances the height counter by n.
func (a *MemoryAsset) Mine(n uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.height += n
	return a.height
}

func (a *MemoryAsset) Height() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.height
}

// Pool returns the wrapper-facing view of the asset with custody as the pool address.
func (a *MemoryAsset) Pool(custody common.Address) *Pool {
	return &Pool{asset: a, custody: custody}
}

// Pool adapts a MemoryAsset to elasticAsset.IElasticAsset and elasticAsset.IHeightSource.
type Pool struct {
	asset   *MemoryAsset
	custody common.Address
}

func (p *Pool) Address() common.Address {
	return p.custody
}

func (p *Pool) BalanceOf(_ context.Context, account common.Address) (*big.Int, error) {
	return p.asset.BalanceOf(account), nil
}

func (p *Pool) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	return p.asset.Transfer(p.custody, to, amount)
}

func (p *Pool) TransferFrom(_ context.Context, from common.Address, amount *big.Int) error {
	return p.asset.TransferFrom(p.custody, from, p.custody, amount)
}

func (p *Pool) TotalSupply(_ context.Context) (*big.Int, error) {
	return p.asset.TotalSupply(), nil
}

func (p *Pool) ScaledTotalSupply(_ context.Context) (*big.Int, error) {
	return p.asset.ScaledTotalSupply(), nil
}

func (p *Pool) CurrentHeight(_ context.Context) (uint64, error) {
	return p.asset.Height(), nil
}
