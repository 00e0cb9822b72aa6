package cmd

import (
	"context"
	"time"

	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/internal/metrics/prometheus"
	"github.com/rhinofi/ampleforth-wrapper/internal/shutdown"
	"github.com/rhinofi/ampleforth-wrapper/pkg/eventBus/eventBusTypes"
	"github.com/rhinofi/ampleforth-wrapper/pkg/reconciler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciler against an Ethereum-backed asset",
	Run: func(cmd *cobra.Command, args []string) {
		bindCommandFlags(cmd)
		cfg := config.NewConfig()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		ms, err := newMetricsSink(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		asset, client, err := dialEthereumAsset(ctx, cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup elastic asset", zap.Error(err))
		}
		defer client.Close()

		store, closeStore, err := openLedgerStore(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to open ledger store", zap.Error(err))
		}
		defer closeStore()

		w, eb, err := newWrapper(cfg, store, asset, asset, ms, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to create wrapper", zap.Error(err))
		}

		controller, err := cfg.GetControllerAddress()
		if err != nil {
			l.Sugar().Fatalw("Invalid controller", zap.Error(err))
		}
		if err := w.Initialize(ctx, controller); err != nil {
			l.Sugar().Fatalw("Failed to initialize wrapper", zap.Error(err))
		}
		// sweeps go to whoever controls the ledger now, which may differ from the configured address
		current, err := w.Controller(ctx)
		if err != nil {
			l.Sugar().Fatalw("Failed to read controller", zap.Error(err))
		}

		threshold, err := cfg.GetSweepThreshold()
		if err != nil {
			l.Sugar().Fatalw("Invalid sweep threshold", zap.Error(err))
		}

		prometheusShutdown := make(chan bool, 1)
		if cfg.PrometheusConfig.Enabled {
			srv := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{Port: cfg.PrometheusConfig.Port}, l)
			if err := srv.Start(prometheusShutdown); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		consumer := eventBusTypes.NewConsumer(ctx, 100)
		eb.Subscribe(consumer)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case event := <-consumer.Channel:
					l.Sugar().Infow("Ledger event", zap.String("name", event.Name), zap.Any("data", event.Data))
				}
			}
		}()

		monitor := reconciler.NewMonitor(&reconciler.MonitorConfig{
			Interval:       cfg.ReconcilerConfig.Interval,
			AutoSweep:      cfg.ReconcilerConfig.AutoSweep,
			SweepThreshold: threshold,
			Controller:     current,
		}, w, asset, asset, ms, l)

		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			monitor.Run(ctx, nil)
		}()

		l.Sugar().Infow("Started wrapper",
			zap.String("custody", w.Address().Hex()),
			zap.String("controller", current.Hex()),
		)

		shutdown.ListenForShutdown(ctx, shutdown.CreateGracefulShutdownChannel(), cancel, stopped, func() {
			l.Sugar().Info("Shutting down...")
			eb.Unsubscribe(consumer)
			prometheusShutdown <- true
		}, time.Second*5, l)
	},
}
