package wrapper

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/internal/metrics"
	"github.com/rhinofi/ampleforth-wrapper/internal/metrics/metricsTypes"
	"github.com/rhinofi/ampleforth-wrapper/pkg/elasticAsset"
	"github.com/rhinofi/ampleforth-wrapper/pkg/eventBus/eventBusTypes"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"github.com/rhinofi/ampleforth-wrapper/pkg/types/numbers"
	"github.com/rhinofi/ampleforth-wrapper/pkg/valuation"
	"github.com/rhinofi/ampleforth-wrapper/pkg/withdrawalAuth"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

type WrapperConfig struct {
	// SingleUseAuthorizations rejects a withdrawal authorization that has already been spent.
	SingleUseAuthorizations bool
}

// Wrapper is a custodial share ledger over an elastic-supply asset. Holders own shares of the
// pooled balance held at the asset's custody address, so a rebase changes what every share is
// worth without touching the ledger.
type Wrapper struct {
	store      ledgerStore.ILedgerStore
	asset      elasticAsset.IElasticAsset
	valuation  valuation.IValuation
	authorizer *withdrawalAuth.Authorizer
	eventBus   eventBusTypes.IEventBus
	metrics    *metrics.MetricsSink
	config     *WrapperConfig
	logger     *zap.Logger

	mu deadlock.RWMutex
}

func NewWrapper(
	cfg *WrapperConfig,
	store ledgerStore.ILedgerStore,
	asset elasticAsset.IElasticAsset,
	heights elasticAsset.IHeightSource,
	val valuation.IValuation,
	eb eventBusTypes.IEventBus,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Wrapper {
	return &Wrapper{
		store:      store,
		asset:      asset,
		valuation:  val,
		authorizer: withdrawalAuth.NewAuthorizer(heights, l),
		eventBus:   eb,
		metrics:    ms,
		config:     cfg,
		logger:     l,
	}
}

// Initialize records controller as the first controller. It does nothing once a controller exists.
func (w *Wrapper) Initialize(ctx context.Context, controller common.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	existing, found, err := w.store.GetController(ctx)
	if err != nil {
		return err
	}
	if found {
		if existing != controller {
			w.logger.Sugar().Infow("Keeping stored controller",
				zap.String("stored", existing.Hex()),
				zap.String("configured", controller.Hex()),
			)
		}
		return nil
	}
	err = w.store.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		return tx.SetController(ctx, controller)
	})
	if err != nil {
		return err
	}
	w.logger.Sugar().Infow("Initialized controller", zap.String("controller", controller.Hex()))
	return nil
}

// Address is the wrapper's identity in withdrawal authorizations: the custody address of the pool.
func (w *Wrapper) Address() common.Address {
	return w.asset.Address()
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "got %v", amount)
	}
	return nil
}

func (w *Wrapper) recordOperation(operation string, start time.Time, err error) {
	if w.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	_ = w.metrics.Incr(metricsTypes.Metric_Incr_Operation, []metricsTypes.MetricsLabel{
		{Name: metricsTypes.Label_Operation, Value: operation},
		{Name: metricsTypes.Label_Outcome, Value: outcome},
	}, 1)
	_ = w.metrics.Timing(metricsTypes.Metric_Timing_OperationDuration, time.Since(start), []metricsTypes.MetricsLabel{
		{Name: metricsTypes.Label_Operation, Value: operation},
	})
}

func (w *Wrapper) gaugeTotalShares(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	total, err := w.store.GetTotalShares(ctx)
	if err != nil {
		return
	}
	_ = w.metrics.Gauge(metricsTypes.Metric_Gauge_TotalShares, numbers.ToFloat64(total), nil)
}

func (w *Wrapper) publish(name string, data any) {
	if w.eventBus == nil {
		return
	}
	w.eventBus.Publish(&eventBusTypes.Event{Name: name, Data: data})
}

func (w *Wrapper) requireController(ctx context.Context, reader ledgerStore.ILedgerReader, caller common.Address) (common.Address, error) {
	controller, found, err := reader.GetController(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if !found {
		return common.Address{}, errors.Wrap(ErrUnauthorized, "no controller has been set")
	}
	if caller != controller {
		return controller, errors.Wrapf(ErrUnauthorized, "%s is not the controller", caller.Hex())
	}
	return controller, nil
}

// quote prices shares against the current state of the asset and ledger.
func (w *Wrapper) quote(ctx context.Context, reader ledgerStore.ILedgerReader) (*valuation.Rate, error) {
	total, err := reader.GetTotalShares(ctx)
	if err != nil {
		return nil, err
	}
	return w.valuation.Quote(ctx, total)
}

// Deposit pulls amount from holder into the pool and credits the holder with the shares it buys at
// the current rate. It fails with ErrSlippageExceeded if that is fewer than minSharesOut.
func (w *Wrapper) Deposit(ctx context.Context, holder common.Address, amount *big.Int, minSharesOut *big.Int) (minted *big.Int, err error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if minSharesOut == nil {
		minSharesOut = big.NewInt(0)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	defer func(start time.Time) { w.recordOperation("deposit", start, err) }(time.Now())

	if amount.Sign() == 0 {
		if minSharesOut.Sign() > 0 {
			return nil, errors.Wrapf(ErrSlippageExceeded, "minted 0, wanted at least %s", minSharesOut)
		}
		return big.NewInt(0), nil
	}

	err = w.store.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		rate, err := w.quote(ctx, tx)
		if err != nil {
			return err
		}
		minted = rate.ToShares(amount)
		if minted.Cmp(minSharesOut) < 0 {
			return errors.Wrapf(ErrSlippageExceeded, "minted %s, wanted at least %s", minted, minSharesOut)
		}
		if _, err := tx.AdjustShares(ctx, holder, minted); err != nil {
			return err
		}
		if err := w.asset.TransferFrom(ctx, holder, amount); err != nil {
			return fmt.Errorf("%w: pull %s from %s: %w", ErrTransferFailed, amount, holder.Hex(), err)
		}
		return nil
	})
	if err != nil {
		w.logger.Sugar().Debugw("Deposit failed",
			zap.String("holder", holder.Hex()),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	w.logger.Sugar().Infow("Deposited",
		zap.String("holder", holder.Hex()),
		zap.String("amount", amount.String()),
		zap.String("shares", minted.String()),
	)
	w.publish(eventBusTypes.Event_Deposit, &eventBusTypes.DepositData{Holder: holder, Amount: amount, Shares: minted})
	w.gaugeTotalShares(ctx)
	return minted, nil
}

// Withdraw burns the shares worth amount and pays amount out of the pool to holder. It requires a
// controller authorization for holder that has not expired.
func (w *Wrapper) Withdraw(ctx context.Context, holder common.Address, amount *big.Int, auth *withdrawalAuth.Authorization) (err error) {
	if err := validateAmount(amount); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	defer func(start time.Time) { w.recordOperation("withdraw", start, err) }(time.Now())

	controller, found, err := w.store.GetController(ctx)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrap(ErrUnauthorized, "no controller has been set")
	}
	digest, err := w.authorizer.Authorize(ctx, controller, holder, w.Address(), auth)
	if err != nil {
		return err
	}
	if w.config.SingleUseAuthorizations {
		used, err := w.store.IsAuthorizationUsed(ctx, digest)
		if err != nil {
			return err
		}
		if used {
			return errors.Wrapf(ErrAuthorizationUsed, "digest %s", digest.Hex())
		}
	}
	if amount.Sign() == 0 {
		return nil
	}

	var burned *big.Int
	err = w.store.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		rate, err := w.quote(ctx, tx)
		if err != nil {
			return err
		}
		burned = rate.ToShares(amount)
		shares, err := tx.GetShares(ctx, holder)
		if err != nil {
			return err
		}
		if burned.Cmp(shares) > 0 {
			return errors.Wrapf(ErrInsufficientShares, "%s holds %s shares, %s needed", holder.Hex(), shares, burned)
		}
		if _, err := tx.AdjustShares(ctx, holder, new(big.Int).Neg(burned)); err != nil {
			return err
		}
		if w.config.SingleUseAuthorizations {
			if err := tx.MarkAuthorizationUsed(ctx, digest, holder); err != nil {
				return err
			}
		}
		if err := w.asset.Transfer(ctx, holder, amount); err != nil {
			return fmt.Errorf("%w: push %s to %s: %w", ErrTransferFailed, amount, holder.Hex(), err)
		}
		return nil
	})
	if err != nil {
		w.logger.Sugar().Debugw("Withdraw failed",
			zap.String("holder", holder.Hex()),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return err
	}

	w.logger.Sugar().Infow("Withdrew",
		zap.String("holder", holder.Hex()),
		zap.String("amount", amount.String()),
		zap.String("shares", burned.String()),
	)
	w.publish(eventBusTypes.Event_Withdraw, &eventBusTypes.WithdrawData{Holder: holder, Amount: amount, Shares: burned})
	w.gaugeTotalShares(ctx)
	return nil
}

// TransferFrom moves the shares worth amount from one holder to another. Only a registered proxy
// may call it and no asset leaves the pool.
func (w *Wrapper) TransferFrom(ctx context.Context, caller common.Address, from common.Address, to common.Address, amount *big.Int) (err error) {
	if err := validateAmount(amount); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	defer func(start time.Time) { w.recordOperation("transferFrom", start, err) }(time.Now())

	isProxy, err := w.store.IsProxy(ctx, caller)
	if err != nil {
		return err
	}
	if !isProxy {
		return errors.Wrapf(ErrUnauthorized, "%s is not a proxy", caller.Hex())
	}
	if amount.Sign() == 0 {
		return nil
	}

	var moved *big.Int
	err = w.store.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		rate, err := w.quote(ctx, tx)
		if err != nil {
			return err
		}
		moved = rate.ToShares(amount)
		shares, err := tx.GetShares(ctx, from)
		if err != nil {
			return err
		}
		if moved.Cmp(shares) > 0 {
			return errors.Wrapf(ErrInsufficientShares, "%s holds %s shares, %s needed", from.Hex(), shares, moved)
		}
		if _, err := tx.AdjustShares(ctx, from, new(big.Int).Neg(moved)); err != nil {
			return err
		}
		_, err = tx.AdjustShares(ctx, to, moved)
		return err
	})
	if err != nil {
		return err
	}

	w.logger.Sugar().Infow("Proxy transfer",
		zap.String("proxy", caller.Hex()),
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
		zap.String("shares", moved.String()),
	)
	w.publish(eventBusTypes.Event_ProxyTransfer, &eventBusTypes.ProxyTransferData{
		Proxy:  caller,
		From:   from,
		To:     to,
		Amount: amount,
		Shares: moved,
	})
	return nil
}

// Transfer exists for token interface compatibility. Holders can only move shares through a proxy,
// so it always succeeds without changing anything.
func (w *Wrapper) Transfer(_ context.Context, caller common.Address, to common.Address, amount *big.Int) error {
	w.logger.Sugar().Debugw("Ignoring direct transfer",
		zap.String("caller", caller.Hex()),
		zap.String("to", to.Hex()),
		zap.Any("amount", amount),
	)
	return nil
}

func (w *Wrapper) AddProxy(ctx context.Context, caller common.Address, proxy common.Address) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer func(start time.Time) { w.recordOperation("addProxy", start, err) }(time.Now())

	err = w.store.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		if _, err := w.requireController(ctx, tx, caller); err != nil {
			return err
		}
		return tx.AddProxy(ctx, proxy)
	})
	if err != nil {
		return err
	}
	w.logger.Sugar().Infow("Added proxy", zap.String("proxy", proxy.Hex()))
	w.publish(eventBusTypes.Event_ProxyAdded, &eventBusTypes.ProxyData{Proxy: proxy})
	return nil
}

func (w *Wrapper) RemoveProxy(ctx context.Context, caller common.Address, proxy common.Address) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer func(start time.Time) { w.recordOperation("removeProxy", start, err) }(time.Now())

	err = w.store.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		if _, err := w.requireController(ctx, tx, caller); err != nil {
			return err
		}
		return tx.RemoveProxy(ctx, proxy)
	})
	if err != nil {
		return err
	}
	w.logger.Sugar().Infow("Removed proxy", zap.String("proxy", proxy.Hex()))
	w.publish(eventBusTypes.Event_ProxyRemoved, &eventBusTypes.ProxyData{Proxy: proxy})
	return nil
}

// SetController hands control to next. Authorizations signed by the previous controller stop
// working immediately.
func (w *Wrapper) SetController(ctx context.Context, caller common.Address, next common.Address) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer func(start time.Time) { w.recordOperation("setController", start, err) }(time.Now())

	var previous common.Address
	err = w.store.WithTransaction(ctx, func(tx ledgerStore.ILedgerWriter) error {
		current, err := w.requireController(ctx, tx, caller)
		if err != nil {
			return err
		}
		previous = current
		return tx.SetController(ctx, next)
	})
	if err != nil {
		return err
	}
	w.logger.Sugar().Infow("Changed controller",
		zap.String("previous", previous.Hex()),
		zap.String("next", next.Hex()),
	)
	w.publish(eventBusTypes.Event_ControllerChanged, &eventBusTypes.ControllerChangedData{Previous: previous, Next: next})
	return nil
}

// balanceDifference is the part of the pool balance no share accounts for, never negative.
func (w *Wrapper) balanceDifference(ctx context.Context, reader ledgerStore.ILedgerReader) (*big.Int, error) {
	pool, err := w.asset.BalanceOf(ctx, w.asset.Address())
	if err != nil {
		return nil, err
	}
	owed, err := w.valueOfTotal(ctx, reader)
	if err != nil {
		return nil, err
	}
	return numbers.Max(new(big.Int).Sub(pool, owed), big.NewInt(0)), nil
}

func (w *Wrapper) BalanceDifference(ctx context.Context) (*big.Int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balanceDifference(ctx, w.store)
}

// WithdrawBalanceDifference pays the unattributed pool balance to the controller and returns the
// amount paid. It does nothing when there is no excess.
func (w *Wrapper) WithdrawBalanceDifference(ctx context.Context, caller common.Address) (swept *big.Int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	defer func(start time.Time) { w.recordOperation("withdrawBalanceDifference", start, err) }(time.Now())

	if _, err := w.requireController(ctx, w.store, caller); err != nil {
		return nil, err
	}
	swept, err = w.balanceDifference(ctx, w.store)
	if err != nil {
		return nil, err
	}
	if swept.Sign() == 0 {
		return swept, nil
	}
	if err := w.asset.Transfer(ctx, caller, swept); err != nil {
		return nil, fmt.Errorf("%w: sweep %s to %s: %w", ErrTransferFailed, swept, caller.Hex(), err)
	}

	w.logger.Sugar().Infow("Swept unattributed balance",
		zap.String("controller", caller.Hex()),
		zap.String("amount", swept.String()),
	)
	if w.metrics != nil {
		_ = w.metrics.Incr(metricsTypes.Metric_Incr_Sweep, nil, 1)
	}
	w.publish(eventBusTypes.Event_BalanceSwept, &eventBusTypes.BalanceSweptData{Controller: caller, Amount: swept})
	return swept, nil
}

// valueOf converts shares to assets. With no shares outstanding, or nothing backing them, every
// balance is worth zero.
func (w *Wrapper) valueOf(ctx context.Context, reader ledgerStore.ILedgerReader, shares *big.Int) (*big.Int, error) {
	total, err := reader.GetTotalShares(ctx)
	if err != nil {
		return nil, err
	}
	if total.Sign() == 0 || shares.Sign() == 0 {
		return big.NewInt(0), nil
	}
	rate, err := w.valuation.Quote(ctx, total)
	if errors.Is(err, valuation.ErrNoBacking) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return rate.ToAssets(shares), nil
}

func (w *Wrapper) valueOfTotal(ctx context.Context, reader ledgerStore.ILedgerReader) (*big.Int, error) {
	total, err := reader.GetTotalShares(ctx)
	if err != nil {
		return nil, err
	}
	return w.valueOf(ctx, reader, total)
}

func (w *Wrapper) BalanceOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	shares, err := w.store.GetShares(ctx, holder)
	if err != nil {
		return nil, err
	}
	return w.valueOf(ctx, w.store, shares)
}

func (w *Wrapper) TotalSupply(ctx context.Context) (*big.Int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.valueOfTotal(ctx, w.store)
}

func (w *Wrapper) SharesOf(ctx context.Context, holder common.Address) (*big.Int, error) {
	return w.store.GetShares(ctx, holder)
}

func (w *Wrapper) TotalShares(ctx context.Context) (*big.Int, error) {
	return w.store.GetTotalShares(ctx)
}

func (w *Wrapper) Controller(ctx context.Context) (common.Address, error) {
	controller, found, err := w.store.GetController(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if !found {
		return common.Address{}, errors.New("no controller has been set")
	}
	return controller, nil
}

func (w *Wrapper) IsProxy(ctx context.Context, address common.Address) (bool, error) {
	return w.store.IsProxy(ctx, address)
}

func (w *Wrapper) Proxies(ctx context.Context) ([]common.Address, error) {
	return w.store.ListProxies(ctx)
}

// WithdrawalDigest is the hash the controller signs to let holder withdraw until validUntil.
func (w *Wrapper) WithdrawalDigest(holder common.Address, validUntil uint64) common.Hash {
	return withdrawalAuth.Digest(holder, w.Address(), validUntil)
}
