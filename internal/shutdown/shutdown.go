package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// ListenForShutdown blocks until SIGTERM or SIGINT arrives or ctx ends. It then runs signalHandler,
// cancels the workers and waits up to timeToWait for stopped to close.
func ListenForShutdown(
	ctx context.Context,
	signalChan <-chan os.Signal,
	cancel context.CancelFunc,
	stopped <-chan struct{},
	signalHandler func(),
	timeToWait time.Duration,
	l *zap.Logger,
) {
	select {
	case sig := <-signalChan:
		l.Sugar().Infof("caught signal %v", sig)
	case <-ctx.Done():
		l.Sugar().Infow("Context finished, shutting down")
	}

	if signalHandler != nil {
		signalHandler()
	}
	cancel()

	l.Sugar().Infof("Waiting up to %v seconds to exit...", timeToWait.Seconds())
	select {
	case <-stopped:
	case <-time.After(timeToWait):
		l.Sugar().Warnw("Workers did not stop in time")
	}
	l.Sugar().Infof("Exiting")
}
