package cmd

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/stretchr/testify/assert"
)

func Test_Simulate(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	ctx := context.Background()

	t.Run("Should sweep the donation under index valuation", func(t *testing.T) {
		res, err := runSimulation(ctx, config.ValuationMode_Index, l)
		assert.Nil(t, err)

		assert.Equal(t, "10", res.HolderWrapped.String())
		assert.Equal(t, "183", res.HolderAsset.String())
		assert.Equal(t, "7", res.RecipientWrapped.String())
		assert.Equal(t, "25", res.Swept.String())
		assert.Equal(t, "25", res.ControllerAsset.String())
		assert.NotEqual(t, common.Hash{}, res.StateRoot)
	})
	t.Run("Should spread the donation across holders under pool valuation", func(t *testing.T) {
		res, err := runSimulation(ctx, config.ValuationMode_Pool, l)
		assert.Nil(t, err)

		assert.Equal(t, "28", res.HolderWrapped.String())
		assert.Equal(t, "183", res.HolderAsset.String())
		assert.Equal(t, "14", res.RecipientWrapped.String())
		assert.Equal(t, "0", res.Swept.String())
		assert.Equal(t, "0", res.ControllerAsset.String())
	})
}

func Test_Helpers(t *testing.T) {
	t.Run("Should parse private keys with or without a 0x prefix", func(t *testing.T) {
		const hexKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
		a, err := parsePrivateKey(hexKey)
		assert.Nil(t, err)
		b, err := parsePrivateKey("0x" + hexKey)
		assert.Nil(t, err)
		assert.Equal(t, a.D, b.D)

		_, err = parsePrivateKey("")
		assert.NotNil(t, err)
		_, err = parsePrivateKey("0xnothex")
		assert.NotNil(t, err)
	})
	t.Run("Should validate address flags", func(t *testing.T) {
		addr, err := parseAddressFlag("holder", "0x2000000000000000000000000000000000000002")
		assert.Nil(t, err)
		assert.Equal(t, simHolder, addr)

		_, err = parseAddressFlag("holder", "alice")
		assert.NotNil(t, err)
	})
	t.Run("Should open and migrate an in-memory sqlite ledger", func(t *testing.T) {
		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
		cfg := &config.Config{DatabaseConfig: config.DatabaseConfig{
			Driver:     string(config.DbDriver_Sqlite),
			SqlitePath: "file:cmd_helpers?mode=memory&cache=shared",
		}}
		store, closeStore, err := openLedgerStore(cfg, l)
		assert.Nil(t, err)
		defer closeStore()

		total, err := store.GetTotalShares(context.Background())
		assert.Nil(t, err)
		assert.Equal(t, "0", total.String())
	})
}
