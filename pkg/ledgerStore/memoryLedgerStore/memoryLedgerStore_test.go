package memoryLedgerStore

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"github.com/stretchr/testify/assert"
)

var (
	alice = common.HexToAddress("0xa000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x0b00000000000000000000000000000000000002")
)

func Test_MemoryLedgerStore(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	t.Run("Should keep the total equal to the sum of holder shares", func(t *testing.T) {
		s := NewMemoryLedgerStore(l)
		err := s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			if _, err := tx.AdjustShares(ctx, alice, big.NewInt(30)); err != nil {
				return err
			}
			if _, err := tx.AdjustShares(ctx, bob, big.NewInt(12)); err != nil {
				return err
			}
			_, err := tx.AdjustShares(ctx, alice, big.NewInt(-10))
			return err
		})
		assert.Nil(t, err)

		total, _ := s.GetTotalShares(ctx)
		assert.Equal(t, "32", total.String())
		shares, _ := s.GetShares(ctx, alice)
		assert.Equal(t, "20", shares.String())

		holders, _ := s.ListHolders(ctx)
		assert.Len(t, holders, 2)
		assert.Equal(t, bob, holders[0].Holder)
		assert.Equal(t, alice, holders[1].Holder)
	})
	t.Run("Should reject a balance going negative", func(t *testing.T) {
		s := NewMemoryLedgerStore(l)
		err := s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_, err := tx.AdjustShares(ctx, alice, big.NewInt(-1))
			return err
		})
		assert.True(t, errors.Is(err, ledgerStore.ErrNegativeShares))
	})
	t.Run("Should drop holders that reach zero", func(t *testing.T) {
		s := NewMemoryLedgerStore(l)
		_ = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_, _ = tx.AdjustShares(ctx, alice, big.NewInt(5))
			_, err := tx.AdjustShares(ctx, alice, big.NewInt(-5))
			return err
		})
		holders, _ := s.ListHolders(ctx)
		assert.Len(t, holders, 0)
	})
	t.Run("Should discard every write when the transaction fails", func(t *testing.T) {
		s := NewMemoryLedgerStore(l)
		_ = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_, err := tx.AdjustShares(ctx, alice, big.NewInt(5))
			return err
		})

		boom := errors.New("boom")
		err := s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_, _ = tx.AdjustShares(ctx, alice, big.NewInt(100))
			_ = tx.AddProxy(ctx, bob)
			_ = tx.SetController(ctx, bob)
			staged, _ := tx.GetShares(ctx, alice)
			assert.Equal(t, "105", staged.String())
			return boom
		})
		assert.Equal(t, boom, err)

		shares, _ := s.GetShares(ctx, alice)
		assert.Equal(t, "5", shares.String())
		isProxy, _ := s.IsProxy(ctx, bob)
		assert.False(t, isProxy)
		_, found, _ := s.GetController(ctx)
		assert.False(t, found)
	})
	t.Run("Should track controller, proxies and used authorizations", func(t *testing.T) {
		s := NewMemoryLedgerStore(l)
		digest := common.HexToHash("0x01")
		err := s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_ = tx.SetController(ctx, alice)
			_ = tx.AddProxy(ctx, alice)
			_ = tx.AddProxy(ctx, bob)
			_ = tx.AddProxy(ctx, bob)
			return tx.MarkAuthorizationUsed(ctx, digest, bob)
		})
		assert.Nil(t, err)

		controller, found, _ := s.GetController(ctx)
		assert.True(t, found)
		assert.Equal(t, alice, controller)

		proxies, _ := s.ListProxies(ctx)
		assert.Equal(t, []common.Address{bob, alice}, proxies)

		used, _ := s.IsAuthorizationUsed(ctx, digest)
		assert.True(t, used)
		used, _ = s.IsAuthorizationUsed(ctx, common.HexToHash("0x02"))
		assert.False(t, used)

		uses, err := s.ListUsedAuthorizations(ctx)
		assert.Nil(t, err)
		assert.Equal(t, []*ledgerStore.AuthorizationUse{{Digest: digest, Holder: bob}}, uses)

		_ = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			return tx.RemoveProxy(ctx, alice)
		})
		isProxy, _ := s.IsProxy(ctx, alice)
		assert.False(t, isProxy)
	})
}
