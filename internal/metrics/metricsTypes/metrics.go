package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

// Label names shared by the wrapper metrics.
const (
	Label_Operation = "operation"
	Label_Outcome   = "outcome"
)

var (
	Metric_Incr_Operation = "wrapper_operation_total"
	Metric_Incr_Sweep     = "wrapper_sweep_total"

	Metric_Gauge_TotalShares          = "wrapper_total_shares"
	Metric_Gauge_PoolBalance          = "wrapper_pool_balance"
	Metric_Gauge_UnattributedBalance  = "wrapper_unattributed_balance"
	Metric_Gauge_ReconcilerLastHeight = "wrapper_reconciler_last_height"

	Metric_Timing_OperationDuration = "wrapper_operation_duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_Operation,
			Labels: []string{Label_Operation, Label_Outcome},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_Sweep,
			Labels: []string{},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_TotalShares,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_PoolBalance,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_UnattributedBalance,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_ReconcilerLastHeight,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_OperationDuration,
			Labels: []string{Label_Operation},
		},
	},
}
