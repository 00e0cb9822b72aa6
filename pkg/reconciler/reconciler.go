package reconciler

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rhinofi/ampleforth-wrapper/internal/metrics"
	"github.com/rhinofi/ampleforth-wrapper/internal/metrics/metricsTypes"
	"github.com/rhinofi/ampleforth-wrapper/pkg/elasticAsset"
	"github.com/rhinofi/ampleforth-wrapper/pkg/types/numbers"
	"go.uber.org/zap"
)

const defaultInterval = time.Minute

// IWrapper is the part of the wrapper the monitor reads and sweeps.
type IWrapper interface {
	TotalShares(ctx context.Context) (*big.Int, error)
	BalanceDifference(ctx context.Context) (*big.Int, error)
	WithdrawBalanceDifference(ctx context.Context, caller common.Address) (*big.Int, error)
}

type MonitorConfig struct {
	Interval  time.Duration
	AutoSweep bool
	// SweepThreshold is the smallest excess, in base units, worth sweeping.
	SweepThreshold *big.Int
	Controller     common.Address
}

type Report struct {
	Height      uint64
	PoolBalance *big.Int
	TotalShares *big.Int
	Excess      *big.Int
	Swept       *big.Int
}

// Monitor periodically measures the unattributed pool balance and, when enabled, sweeps it to the
// controller once it reaches the threshold.
type Monitor struct {
	wrapper IWrapper
	asset   elasticAsset.IElasticAsset
	heights elasticAsset.IHeightSource
	metrics *metrics.MetricsSink
	config  *MonitorConfig
	logger  *zap.Logger
}

func NewMonitor(
	cfg *MonitorConfig,
	w IWrapper,
	asset elasticAsset.IElasticAsset,
	heights elasticAsset.IHeightSource,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.SweepThreshold == nil || cfg.SweepThreshold.Sign() <= 0 {
		cfg.SweepThreshold = big.NewInt(1)
	}
	return &Monitor{
		wrapper: w,
		asset:   asset,
		heights: heights,
		metrics: ms,
		config:  cfg,
		logger:  l,
	}
}

func (m *Monitor) gauge(name string, value *big.Int) {
	if m.metrics == nil {
		return
	}
	_ = m.metrics.Gauge(name, numbers.ToFloat64(value), nil)
}

// Tick runs a single reconciliation pass.
func (m *Monitor) Tick(ctx context.Context) (*Report, error) {
	height, err := m.heights.CurrentHeight(ctx)
	if err != nil {
		m.logger.Sugar().Errorw("Failed to get current height", zap.Error(err))
		return nil, err
	}
	pool, err := m.asset.BalanceOf(ctx, m.asset.Address())
	if err != nil {
		m.logger.Sugar().Errorw("Failed to get pool balance", zap.Error(err))
		return nil, err
	}
	total, err := m.wrapper.TotalShares(ctx)
	if err != nil {
		return nil, err
	}
	excess, err := m.wrapper.BalanceDifference(ctx)
	if err != nil {
		m.logger.Sugar().Errorw("Failed to compute balance difference", zap.Error(err))
		return nil, err
	}

	report := &Report{
		Height:      height,
		PoolBalance: pool,
		TotalShares: total,
		Excess:      excess,
		Swept:       big.NewInt(0),
	}
	m.gauge(metricsTypes.Metric_Gauge_PoolBalance, pool)
	m.gauge(metricsTypes.Metric_Gauge_TotalShares, total)
	m.gauge(metricsTypes.Metric_Gauge_UnattributedBalance, excess)
	m.gauge(metricsTypes.Metric_Gauge_ReconcilerLastHeight, new(big.Int).SetUint64(height))

	if m.config.AutoSweep && excess.Cmp(m.config.SweepThreshold) >= 0 {
		swept, err := m.wrapper.WithdrawBalanceDifference(ctx, m.config.Controller)
		if err != nil {
			m.logger.Sugar().Errorw("Failed to sweep unattributed balance",
				zap.String("excess", excess.String()),
				zap.Error(err),
			)
			return report, err
		}
		report.Swept = swept
	}

	m.logger.Sugar().Debugw("Reconciled pool",
		zap.Uint64("height", height),
		zap.String("poolBalance", pool.String()),
		zap.String("totalShares", total.String()),
		zap.String("excess", excess.String()),
		zap.String("swept", report.Swept.String()),
	)
	return report, nil
}

// Run ticks every Interval until ctx is cancelled. Failed passes are logged and retried on the next
// tick. If reports is non-nil every successful pass is offered to it without blocking.
func (m *Monitor) Run(ctx context.Context, reports chan<- *Report) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	m.logger.Sugar().Infow("Starting reconciler",
		zap.Duration("interval", m.config.Interval),
		zap.Bool("autoSweep", m.config.AutoSweep),
	)
	for {
		select {
		case <-ctx.Done():
			m.logger.Sugar().Infow("Stopping reconciler")
			return
		case <-ticker.C:
			report, err := m.Tick(ctx)
			if err != nil || reports == nil {
				continue
			}
			select {
			case reports <- report:
			default:
			}
		}
	}
}
