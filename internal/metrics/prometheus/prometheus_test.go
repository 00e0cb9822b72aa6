package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/internal/metrics/metricsTypes"
	"github.com/stretchr/testify/assert"
)

func Test_PrometheusMetricsClient(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	registry := prometheus.NewRegistry()
	client, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
		Metrics:    metricsTypes.MetricTypes,
		Registerer: registry,
	}, l)
	assert.Nil(t, err)

	t.Run("Should count labelled operations", func(t *testing.T) {
		labels := []metricsTypes.MetricsLabel{
			{Name: metricsTypes.Label_Operation, Value: "deposit"},
			{Name: metricsTypes.Label_Outcome, Value: "success"},
		}
		assert.Nil(t, client.Incr(metricsTypes.Metric_Incr_Operation, labels, 1))
		assert.Nil(t, client.Incr(metricsTypes.Metric_Incr_Operation, labels, 1))

		counter := client.counters[metricsTypes.Metric_Incr_Operation].WithLabelValues("deposit", "success")
		assert.Equal(t, float64(2), testutil.ToFloat64(counter))
	})
	t.Run("Should set gauges", func(t *testing.T) {
		assert.Nil(t, client.Gauge(metricsTypes.Metric_Gauge_TotalShares, 42, nil))
		gauge := client.gauges[metricsTypes.Metric_Gauge_TotalShares].WithLabelValues()
		assert.Equal(t, float64(42), testutil.ToFloat64(gauge))
	})
	t.Run("Should return an error for mismatched labels instead of panicking", func(t *testing.T) {
		err := client.Incr(metricsTypes.Metric_Incr_Operation, []metricsTypes.MetricsLabel{{Name: "unknown", Value: "x"}}, 1)
		assert.NotNil(t, err)
	})
	t.Run("Should ignore unknown metrics", func(t *testing.T) {
		assert.Nil(t, client.Timing("not_registered", time.Millisecond, nil))
	})
	t.Run("Should fail to register the same metrics twice on one registry", func(t *testing.T) {
		_, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
			Metrics:    metricsTypes.MetricTypes,
			Registerer: registry,
		}, l)
		assert.NotNil(t, err)
	})
}
