package memoryLedgerStore

import (
	"bytes"
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

type ledgerState struct {
	shares        map[common.Address]*big.Int
	totalShares   *big.Int
	controller    common.Address
	hasController bool
	proxies       map[common.Address]struct{}
	used          map[common.Hash]common.Address
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		shares:      make(map[common.Address]*big.Int),
		totalShares: big.NewInt(0),
		proxies:     make(map[common.Address]struct{}),
		used:        make(map[common.Hash]common.Address),
	}
}

func (s *ledgerState) clone() *ledgerState {
	c := &ledgerState{
		shares:        make(map[common.Address]*big.Int, len(s.shares)),
		totalShares:   new(big.Int).Set(s.totalShares),
		controller:    s.controller,
		hasController: s.hasController,
		proxies:       make(map[common.Address]struct{}, len(s.proxies)),
		used:          make(map[common.Hash]common.Address, len(s.used)),
	}
	for k, v := range s.shares {
		c.shares[k] = new(big.Int).Set(v)
	}
	for k := range s.proxies {
		c.proxies[k] = struct{}{}
	}
	for k, v := range s.used {
		c.used[k] = v
	}
	return c
}

func (s *ledgerState) GetShares(_ context.Context, holder common.Address) (*big.Int, error) {
	if v, ok := s.shares[holder]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (s *ledgerState) GetTotalShares(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.totalShares), nil
}

func (s *ledgerState) ListHolders(_ context.Context) ([]*ledgerStore.HolderShares, error) {
	holders := make([]*ledgerStore.HolderShares, 0, len(s.shares))
	for h, v := range s.shares {
		holders = append(holders, &ledgerStore.HolderShares{Holder: h, Shares: new(big.Int).Set(v)})
	}
	sort.Slice(holders, func(i, j int) bool {
		return bytes.Compare(holders[i].Holder.Bytes(), holders[j].Holder.Bytes()) < 0
	})
	return holders, nil
}

func (s *ledgerState) GetController(_ context.Context) (common.Address, bool, error) {
	return s.controller, s.hasController, nil
}

func (s *ledgerState) IsProxy(_ context.Context, address common.Address) (bool, error) {
	_, ok := s.proxies[address]
	return ok, nil
}

func (s *ledgerState) ListProxies(_ context.Context) ([]common.Address, error) {
	proxies := make([]common.Address, 0, len(s.proxies))
	for p := range s.proxies {
		proxies = append(proxies, p)
	}
	sort.Slice(proxies, func(i, j int) bool {
		return bytes.Compare(proxies[i].Bytes(), proxies[j].Bytes()) < 0
	})
	return proxies, nil
}

func (s *ledgerState) IsAuthorizationUsed(_ context.Context, digest common.Hash) (bool, error) {
	_, ok := s.used[digest]
	return ok, nil
}

func (s *ledgerState) ListUsedAuthorizations(_ context.Context) ([]*ledgerStore.AuthorizationUse, error) {
	used := make([]*ledgerStore.AuthorizationUse, 0, len(s.used))
	for digest, holder := range s.used {
		used = append(used, &ledgerStore.AuthorizationUse{Digest: digest, Holder: holder})
	}
	sort.Slice(used, func(i, j int) bool {
		return bytes.Compare(used[i].Digest.Bytes(), used[j].Digest.Bytes()) < 0
	})
	return used, nil
}

func (s *ledgerState) AdjustShares(ctx context.Context, holder common.Address, delta *big.Int) (*big.Int, error) {
	current, _ := s.GetShares(ctx, holder)
	next, err := ledgerStore.ApplyDelta(holder, current, delta)
	if err != nil {
		return nil, err
	}
	if next.Sign() == 0 {
		delete(s.shares, holder)
	} else {
		s.shares[holder] = next
	}
	s.totalShares = new(big.Int).Add(s.totalShares, delta)
	return new(big.Int).Set(next), nil
}

func (s *ledgerState) SetController(_ context.Context, controller common.Address) error {
	s.controller = controller
	s.hasController = true
	return nil
}

func (s *ledgerState) AddProxy(_ context.Context, address common.Address) error {
	s.proxies[address] = struct{}{}
	return nil
}

func (s *ledgerState) RemoveProxy(_ context.Context, address common.Address) error {
	delete(s.proxies, address)
	return nil
}

func (s *ledgerState) MarkAuthorizationUsed(_ context.Context, digest common.Hash, holder common.Address) error {
	s.used[digest] = holder
	return nil
}

// MemoryLedgerStore keeps the ledger in process. A transaction works on a copy of the state that
// replaces the live state only when fn succeeds.
type MemoryLedgerStore struct {
	mu     deadlock.RWMutex
	state  *ledgerState
	logger *zap.Logger
}

func NewMemoryLedgerStore(l *zap.Logger) *MemoryLedgerStore {
	return &MemoryLedgerStore{
		state:  newLedgerState(),
		logger: l,
	}
}

func (m *MemoryLedgerStore) WithTransaction(ctx context.Context, fn func(tx ledgerStore.ILedgerWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := m.state.clone()
	if err := fn(staged); err != nil {
		m.logger.Sugar().Debugw("Discarding ledger transaction", zap.Error(err))
		return err
	}
	m.state = staged
	return nil
}

func (m *MemoryLedgerStore) GetShares(ctx context.Context, holder common.Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetShares(ctx, holder)
}

func (m *MemoryLedgerStore) GetTotalShares(ctx context.Context) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetTotalShares(ctx)
}

func (m *MemoryLedgerStore) ListHolders(ctx context.Context) ([]*ledgerStore.HolderShares, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListHolders(ctx)
}

func (m *MemoryLedgerStore) GetController(ctx context.Context) (common.Address, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetController(ctx)
}

func (m *MemoryLedgerStore) IsProxy(ctx context.Context, address common.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.IsProxy(ctx, address)
}

func (m *MemoryLedgerStore) ListProxies(ctx context.Context) ([]common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListProxies(ctx)
}

func (m *MemoryLedgerStore) IsAuthorizationUsed(ctx context.Context, digest common.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.IsAuthorizationUsed(ctx, digest)
}

func (m *MemoryLedgerStore) ListUsedAuthorizations(ctx context.Context) ([]*ledgerStore.AuthorizationUse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListUsedAuthorizations(ctx)
}
