package sqlLedgerStore

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/internal/tests"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	alice = common.HexToAddress("0xa000000000000000000000000000000000000001")
	bob   = common.HexToAddress("0x0b00000000000000000000000000000000000002")
)

func setup() (*gorm.DB, *zap.Logger, error) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	grm, err := tests.GetInMemorySqliteDatabaseConnection(l)
	if err != nil {
		return nil, nil, err
	}
	return grm, l, nil
}

func Test_SqlLedgerStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Should persist shares and the running total", func(t *testing.T) {
		grm, l, err := setup()
		assert.Nil(t, err)
		defer tests.CloseDatabase(grm)

		s := NewSqlLedgerStore(grm, l)
		err = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			if _, err := tx.AdjustShares(ctx, alice, big.NewInt(30)); err != nil {
				return err
			}
			next, err := tx.AdjustShares(ctx, bob, big.NewInt(12))
			assert.Equal(t, "12", next.String())
			return err
		})
		assert.Nil(t, err)

		total, err := s.GetTotalShares(ctx)
		assert.Nil(t, err)
		assert.Equal(t, "42", total.String())

		holders, err := s.ListHolders(ctx)
		assert.Nil(t, err)
		assert.Len(t, holders, 2)
		assert.Equal(t, bob, holders[0].Holder)
		assert.Equal(t, "30", holders[1].Shares.String())
	})
	t.Run("Should store amounts wider than 64 bits", func(t *testing.T) {
		grm, l, err := setup()
		assert.Nil(t, err)
		defer tests.CloseDatabase(grm)

		huge, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129000000", 10)
		s := NewSqlLedgerStore(grm, l)
		err = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_, err := tx.AdjustShares(ctx, alice, huge)
			return err
		})
		assert.Nil(t, err)

		shares, _ := s.GetShares(ctx, alice)
		assert.Equal(t, huge.String(), shares.String())
	})
	t.Run("Should delete a holder row at zero and reject negative balances", func(t *testing.T) {
		grm, l, err := setup()
		assert.Nil(t, err)
		defer tests.CloseDatabase(grm)

		s := NewSqlLedgerStore(grm, l)
		_ = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_, err := tx.AdjustShares(ctx, alice, big.NewInt(7))
			return err
		})
		err = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_, err := tx.AdjustShares(ctx, alice, big.NewInt(-8))
			return err
		})
		assert.True(t, errors.Is(err, ledgerStore.ErrNegativeShares))

		_ = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_, err := tx.AdjustShares(ctx, alice, big.NewInt(-7))
			return err
		})
		var count int64
		grm.Model(&ledgerStore.HolderShare{}).Count(&count)
		assert.Equal(t, int64(0), count)

		total, _ := s.GetTotalShares(ctx)
		assert.Equal(t, "0", total.String())
	})
	t.Run("Should roll back every write when the transaction fails", func(t *testing.T) {
		grm, l, err := setup()
		assert.Nil(t, err)
		defer tests.CloseDatabase(grm)

		s := NewSqlLedgerStore(grm, l)
		boom := errors.New("boom")
		err = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			_, _ = tx.AdjustShares(ctx, alice, big.NewInt(100))
			_ = tx.AddProxy(ctx, bob)
			_ = tx.SetController(ctx, bob)
			return boom
		})
		assert.Equal(t, boom, err)

		shares, _ := s.GetShares(ctx, alice)
		assert.Equal(t, "0", shares.String())
		total, _ := s.GetTotalShares(ctx)
		assert.Equal(t, "0", total.String())
		isProxy, _ := s.IsProxy(ctx, bob)
		assert.False(t, isProxy)
		_, found, _ := s.GetController(ctx)
		assert.False(t, found)
	})
	t.Run("Should track controller, proxies and used authorizations", func(t *testing.T) {
		grm, l, err := setup()
		assert.Nil(t, err)
		defer tests.CloseDatabase(grm)

		s := NewSqlLedgerStore(grm, l)
		digest := common.HexToHash("0x01")
		err = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			if err := tx.SetController(ctx, alice); err != nil {
				return err
			}
			if err := tx.SetController(ctx, bob); err != nil {
				return err
			}
			if err := tx.AddProxy(ctx, alice); err != nil {
				return err
			}
			if err := tx.AddProxy(ctx, bob); err != nil {
				return err
			}
			if err := tx.AddProxy(ctx, bob); err != nil {
				return err
			}
			return tx.MarkAuthorizationUsed(ctx, digest, alice)
		})
		assert.Nil(t, err)

		controller, found, err := s.GetController(ctx)
		assert.Nil(t, err)
		assert.True(t, found)
		assert.Equal(t, bob, controller)

		proxies, _ := s.ListProxies(ctx)
		assert.Equal(t, []common.Address{bob, alice}, proxies)

		used, _ := s.IsAuthorizationUsed(ctx, digest)
		assert.True(t, used)

		uses, err := s.ListUsedAuthorizations(ctx)
		assert.Nil(t, err)
		assert.Equal(t, []*ledgerStore.AuthorizationUse{{Digest: digest, Holder: alice}}, uses)

		err = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			return tx.MarkAuthorizationUsed(ctx, digest, alice)
		})
		assert.NotNil(t, err)

		_ = s.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
			return tx.RemoveProxy(ctx, alice)
		})
		isProxy, _ := s.IsProxy(ctx, alice)
		assert.False(t, isProxy)
	})
}
