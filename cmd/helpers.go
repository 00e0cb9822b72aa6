package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/metrics"
	"github.com/rhinofi/ampleforth-wrapper/internal/sqlite"
	sqliteMigrations "github.com/rhinofi/ampleforth-wrapper/internal/sqlite/migrations"
	"github.com/rhinofi/ampleforth-wrapper/pkg/elasticAsset"
	"github.com/rhinofi/ampleforth-wrapper/pkg/elasticAsset/ethereumAsset"
	"github.com/rhinofi/ampleforth-wrapper/pkg/eventBus"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore/sqlLedgerStore"
	"github.com/rhinofi/ampleforth-wrapper/pkg/postgres"
	"github.com/rhinofi/ampleforth-wrapper/pkg/postgres/migrations"
	"github.com/rhinofi/ampleforth-wrapper/pkg/valuation"
	"github.com/rhinofi/ampleforth-wrapper/pkg/wrapper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		return nil, errors.New("private key is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return key, nil
}

func parseAddressFlag(name string, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("--%s must be a hex address, got '%s'", name, value)
	}
	return common.HexToAddress(value), nil
}

// openDatabase connects to the configured database and runs its migrations.
func openDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	switch cfg.GetDatabaseDriver() {
	case config.DbDriver_Postgres:
		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true

		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			l.Sugar().Errorw("Failed to setup postgres connection", zap.Error(err))
			return nil, err
		}
		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			l.Sugar().Errorw("Failed to create gorm instance", zap.Error(err))
			return nil, err
		}
		if err := migrations.NewMigrator(pg.Db, grm, l).MigrateAll(); err != nil {
			l.Sugar().Errorw("Failed to migrate", zap.Error(err))
			return nil, err
		}
		return grm, nil
	default:
		grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(cfg.DatabaseConfig.SqlitePath))
		if err != nil {
			l.Sugar().Errorw("Failed to open sqlite database", zap.Error(err))
			return nil, err
		}
		if err := sqliteMigrations.NewSqliteMigrator(grm, l).MigrateAll(); err != nil {
			l.Sugar().Errorw("Failed to migrate", zap.Error(err))
			return nil, err
		}
		return grm, nil
	}
}

func closeDatabase(grm *gorm.DB) {
	if rawDb, err := grm.DB(); err == nil {
		_ = rawDb.Close()
	}
}

func openLedgerStore(cfg *config.Config, l *zap.Logger) (*sqlLedgerStore.SqlLedgerStore, func(), error) {
	grm, err := openDatabase(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	return sqlLedgerStore.NewSqlLedgerStore(grm, l), func() { closeDatabase(grm) }, nil
}

func newMetricsSink(cfg *config.Config, l *zap.Logger) (*metrics.MetricsSink, error) {
	clients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		l.Sugar().Errorw("Failed to setup metrics sink", zap.Error(err))
		return nil, err
	}
	return metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, clients)
}

func dialEthereumAsset(ctx context.Context, cfg *config.Config, l *zap.Logger) (*ethereumAsset.EthereumAsset, *ethclient.Client, error) {
	assetAddress, err := cfg.GetAssetAddress()
	if err != nil {
		return nil, nil, err
	}
	key, err := parsePrivateKey(cfg.EthereumConfig.CustodyPrivateKey)
	if err != nil {
		return nil, nil, errors.Wrap(err, "custody key")
	}
	client, err := ethclient.DialContext(ctx, cfg.EthereumConfig.RpcUrl)
	if err != nil {
		l.Sugar().Errorw("Failed to dial ethereum node", zap.String("rpcUrl", cfg.EthereumConfig.RpcUrl), zap.Error(err))
		return nil, nil, err
	}

	chainId := new(big.Int).SetUint64(cfg.EthereumConfig.ChainId)
	if chainId.Sign() == 0 {
		chainId, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
	}

	asset, err := ethereumAsset.NewEthereumAsset(&ethereumAsset.EthereumAssetConfig{
		AssetAddress: assetAddress,
		ChainId:      chainId,
		CustodyKey:   key,
	}, client, l)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return asset, client, nil
}

// newWrapper builds a wrapper over store with the configured valuation mode.
func newWrapper(
	cfg *config.Config,
	store ledgerStore.ILedgerStore,
	asset elasticAsset.IElasticAsset,
	heights elasticAsset.IHeightSource,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) (*wrapper.Wrapper, *eventBus.EventBus, error) {
	mode, err := cfg.GetValuationMode()
	if err != nil {
		return nil, nil, err
	}
	val, err := valuation.NewValuation(mode, asset, l)
	if err != nil {
		return nil, nil, err
	}
	eb := eventBus.NewEventBus(l)
	w := wrapper.NewWrapper(&wrapper.WrapperConfig{
		SingleUseAuthorizations: cfg.WrapperConfig.SingleUseAuthorizations,
	}, store, asset, heights, val, eb, ms, l)
	return w, eb, nil
}
