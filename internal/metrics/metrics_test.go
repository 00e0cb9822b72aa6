package metrics

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/internal/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
)

type call struct {
	kind   string
	name   string
	labels []metricsTypes.MetricsLabel
}

type recordingClient struct {
	calls []call
	err   error
}

func (r *recordingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	r.calls = append(r.calls, call{"incr", name, labels})
	return r.err
}

func (r *recordingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	r.calls = append(r.calls, call{"gauge", name, labels})
	return r.err
}

func (r *recordingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	r.calls = append(r.calls, call{"timing", name, labels})
	return r.err
}

func Test_MetricsSink(t *testing.T) {
	defaults := []metricsTypes.MetricsLabel{{Name: "chain", Value: "mainnet"}}

	t.Run("Should fan out to every client with default labels merged", func(t *testing.T) {
		a, b := &recordingClient{}, &recordingClient{}
		ms, err := NewMetricsSink(&MetricsSinkConfig{DefaultLabels: defaults}, []metricsTypes.IMetricsClient{a, b})
		assert.Nil(t, err)

		op := []metricsTypes.MetricsLabel{{Name: metricsTypes.Label_Operation, Value: "deposit"}}
		assert.Nil(t, ms.Incr(metricsTypes.Metric_Incr_Operation, op, 1))
		assert.Nil(t, ms.Gauge(metricsTypes.Metric_Gauge_TotalShares, 10, nil))
		assert.Nil(t, ms.Timing(metricsTypes.Metric_Timing_OperationDuration, time.Millisecond, op))

		for _, c := range []*recordingClient{a, b} {
			assert.Len(t, c.calls, 3)
			assert.Equal(t, append(append([]metricsTypes.MetricsLabel{}, defaults...), op...), c.calls[0].labels)
			assert.Equal(t, defaults, c.calls[1].labels)
			assert.Equal(t, "timing", c.calls[2].kind)
		}
	})
	t.Run("Should return the first client error", func(t *testing.T) {
		failing := &recordingClient{err: errors.New("unreachable")}
		ms, _ := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{failing})
		assert.NotNil(t, ms.Incr(metricsTypes.Metric_Incr_Sweep, nil, 1))
	})
	t.Run("Should work without any clients", func(t *testing.T) {
		ms, err := NewMetricsSink(&MetricsSinkConfig{}, nil)
		assert.Nil(t, err)
		assert.Nil(t, ms.Gauge(metricsTypes.Metric_Gauge_PoolBalance, 1, nil))
	})
	t.Run("Should build no clients when nothing is enabled", func(t *testing.T) {
		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
		clients, err := InitMetricsSinksFromConfig(&config.Config{}, l)
		assert.Nil(t, err)
		assert.Len(t, clients, 0)
	})
}
