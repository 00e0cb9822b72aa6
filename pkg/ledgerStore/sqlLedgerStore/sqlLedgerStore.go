package sqlLedgerStore

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"github.com/rhinofi/ampleforth-wrapper/pkg/types/numbers"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sqlLedgerReader struct {
	db     *gorm.DB
	logger *zap.Logger
}

func (r *sqlLedgerReader) GetShares(ctx context.Context, holder common.Address) (*big.Int, error) {
	var rows []*ledgerStore.HolderShare
	res := r.db.WithContext(ctx).Model(&ledgerStore.HolderShare{}).
		Where("holder = ?", ledgerStore.FormatAddress(holder)).
		Limit(1).
		Find(&rows)
	if res.Error != nil {
		r.logger.Sugar().Errorw("Failed to fetch holder shares",
			zap.String("holder", holder.Hex()),
			zap.Error(res.Error),
		)
		return nil, res.Error
	}
	if len(rows) == 0 {
		return big.NewInt(0), nil
	}
	return numbers.ParseBig(rows[0].Shares)
}

func (r *sqlLedgerReader) getConfigValue(ctx context.Context, key string) (string, bool, error) {
	var rows []*ledgerStore.LedgerConfig
	res := r.db.WithContext(ctx).Model(&ledgerStore.LedgerConfig{}).Where("key = ?", key).Limit(1).Find(&rows)
	if res.Error != nil {
		r.logger.Sugar().Errorw("Failed to fetch ledger config",
			zap.String("key", key),
			zap.Error(res.Error),
		)
		return "", false, res.Error
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

func (r *sqlLedgerReader) GetTotalShares(ctx context.Context) (*big.Int, error) {
	value, found, err := r.getConfigValue(ctx, ledgerStore.ConfigKey_TotalShares)
	if err != nil {
		return nil, err
	}
	if !found {
		return big.NewInt(0), nil
	}
	return numbers.ParseBig(value)
}

func (r *sqlLedgerReader) ListHolders(ctx context.Context) ([]*ledgerStore.HolderShares, error) {
	var rows []*ledgerStore.HolderShare
	res := r.db.WithContext(ctx).Model(&ledgerStore.HolderShare{}).Order("holder asc").Find(&rows)
	if res.Error != nil {
		r.logger.Sugar().Errorw("Failed to list holders", zap.Error(res.Error))
		return nil, res.Error
	}
	holders := make([]*ledgerStore.HolderShares, 0, len(rows))
	for _, row := range rows {
		shares, err := numbers.ParseBig(row.Shares)
		if err != nil {
			return nil, err
		}
		holders = append(holders, &ledgerStore.HolderShares{
			Holder: common.HexToAddress(row.Holder),
			Shares: shares,
		})
	}
	return holders, nil
}

func (r *sqlLedgerReader) GetController(ctx context.Context) (common.Address, bool, error) {
	value, found, err := r.getConfigValue(ctx, ledgerStore.ConfigKey_Controller)
	if err != nil || !found {
		return common.Address{}, false, err
	}
	return common.HexToAddress(value), true, nil
}

func (r *sqlLedgerReader) IsProxy(ctx context.Context, address common.Address) (bool, error) {
	var count int64
	res := r.db.WithContext(ctx).Model(&ledgerStore.Proxy{}).
		Where("address = ?", ledgerStore.FormatAddress(address)).
		Count(&count)
	if res.Error != nil {
		r.logger.Sugar().Errorw("Failed to check proxy", zap.Error(res.Error))
		return false, res.Error
	}
	return count > 0, nil
}

func (r *sqlLedgerReader) ListProxies(ctx context.Context) ([]common.Address, error) {
	var rows []*ledgerStore.Proxy
	res := r.db.WithContext(ctx).Model(&ledgerStore.Proxy{}).Order("address asc").Find(&rows)
	if res.Error != nil {
		r.logger.Sugar().Errorw("Failed to list proxies", zap.Error(res.Error))
		return nil, res.Error
	}
	proxies := make([]common.Address, 0, len(rows))
	for _, row := range rows {
		proxies = append(proxies, common.HexToAddress(row.Address))
	}
	return proxies, nil
}

func (r *sqlLedgerReader) IsAuthorizationUsed(ctx context.Context, digest common.Hash) (bool, error) {
	var count int64
	res := r.db.WithContext(ctx).Model(&ledgerStore.UsedAuthorization{}).
		Where("digest = ?", digest.Hex()).
		Count(&count)
	if res.Error != nil {
		r.logger.Sugar().Errorw("Failed to check authorization", zap.Error(res.Error))
		return false, res.Error
	}
	return count > 0, nil
}

func (r *sqlLedgerReader) ListUsedAuthorizations(ctx context.Context) ([]*ledgerStore.AuthorizationUse, error) {
	var rows []*ledgerStore.UsedAuthorization
	res := r.db.WithContext(ctx).Model(&ledgerStore.UsedAuthorization{}).Order("digest asc").Find(&rows)
	if res.Error != nil {
		r.logger.Sugar().Errorw("Failed to list used authorizations", zap.Error(res.Error))
		return nil, res.Error
	}
	used := make([]*ledgerStore.AuthorizationUse, 0, len(rows))
	for _, row := range rows {
		used = append(used, &ledgerStore.AuthorizationUse{
			Digest: common.HexToHash(row.Digest),
			Holder: common.HexToAddress(row.Holder),
		})
	}
	return used, nil
}

type sqlLedgerTx struct {
	sqlLedgerReader
}

func (t *sqlLedgerTx) setConfigValue(ctx context.Context, key string, value string) error {
	row := &ledgerStore.LedgerConfig{Key: key, Value: value}
	res := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(row)
	if res.Error != nil {
		t.logger.Sugar().Errorw("Failed to write ledger config",
			zap.String("key", key),
			zap.Error(res.Error),
		)
		return res.Error
	}
	return nil
}

func (t *sqlLedgerTx) AdjustShares(ctx context.Context, holder common.Address, delta *big.Int) (*big.Int, error) {
	current, err := t.GetShares(ctx, holder)
	if err != nil {
		return nil, err
	}
	next, err := ledgerStore.ApplyDelta(holder, current, delta)
	if err != nil {
		return nil, err
	}
	total, err := t.GetTotalShares(ctx)
	if err != nil {
		return nil, err
	}

	address := ledgerStore.FormatAddress(holder)
	if next.Sign() == 0 {
		res := t.db.WithContext(ctx).Where("holder = ?", address).Delete(&ledgerStore.HolderShare{})
		if res.Error != nil {
			t.logger.Sugar().Errorw("Failed to delete holder shares", zap.Error(res.Error))
			return nil, res.Error
		}
	} else {
		row := &ledgerStore.HolderShare{Holder: address, Shares: next.String()}
		res := t.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "holder"}},
			DoUpdates: clause.AssignmentColumns([]string{"shares"}),
		}).Create(row)
		if res.Error != nil {
			t.logger.Sugar().Errorw("Failed to write holder shares", zap.Error(res.Error))
			return nil, res.Error
		}
	}

	if err := t.setConfigValue(ctx, ledgerStore.ConfigKey_TotalShares, new(big.Int).Add(total, delta).String()); err != nil {
		return nil, err
	}
	return next, nil
}

func (t *sqlLedgerTx) SetController(ctx context.Context, controller common.Address) error {
	return t.setConfigValue(ctx, ledgerStore.ConfigKey_Controller, ledgerStore.FormatAddress(controller))
}

func (t *sqlLedgerTx) AddProxy(ctx context.Context, address common.Address) error {
	res := t.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ledgerStore.Proxy{Address: ledgerStore.FormatAddress(address)})
	if res.Error != nil {
		t.logger.Sugar().Errorw("Failed to add proxy", zap.Error(res.Error))
		return res.Error
	}
	return nil
}

func (t *sqlLedgerTx) RemoveProxy(ctx context.Context, address common.Address) error {
	res := t.db.WithContext(ctx).Where("address = ?", ledgerStore.FormatAddress(address)).Delete(&ledgerStore.Proxy{})
	if res.Error != nil {
		t.logger.Sugar().Errorw("Failed to remove proxy", zap.Error(res.Error))
		return res.Error
	}
	return nil
}

func (t *sqlLedgerTx) MarkAuthorizationUsed(ctx context.Context, digest common.Hash, holder common.Address) error {
	res := t.db.WithContext(ctx).Create(&ledgerStore.UsedAuthorization{
		Digest: digest.Hex(),
		Holder: ledgerStore.FormatAddress(holder),
	})
	if res.Error != nil {
		t.logger.Sugar().Errorw("Failed to record authorization", zap.Error(res.Error))
		return fmt.Errorf("failed to record authorization %s: %w", digest.Hex(), res.Error)
	}
	return nil
}

// SqlLedgerStore persists the ledger through gorm. It runs unchanged on sqlite and postgres once
// the migrations for either have been applied.
type SqlLedgerStore struct {
	sqlLedgerReader
}

func NewSqlLedgerStore(grm *gorm.DB, l *zap.Logger) *SqlLedgerStore {
	return &SqlLedgerStore{
		sqlLedgerReader: sqlLedgerReader{db: grm, logger: l},
	}
}

func (s *SqlLedgerStore) WithTransaction(ctx context.Context, fn func(tx ledgerStore.ILedgerWriter) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqlLedgerTx{sqlLedgerReader{db: tx, logger: s.logger}})
	})
}
