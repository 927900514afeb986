package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus.
type Collector struct {
	runsSubmitted *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge

	nodesExecuted *prometheus.CounterVec
	nodeRetries   *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec

	workerPoolIdle prometheus.Gauge
	workerPoolBusy prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector. Metrics register
// on the default registry; construct at most once per process.
func NewCollector() *Collector {
	return &Collector{
		runsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maestro_runs_submitted_total",
				Help: "Total number of runs submitted",
			},
			[]string{"status"},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maestro_runs_completed_total",
				Help: "Total number of runs that reached a terminal status",
			},
			[]string{"status"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maestro_run_duration_seconds",
				Help:    "Run execution duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"status"},
		),
		activeRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "maestro_active_runs",
				Help: "Number of currently executing runs",
			},
		),
		nodesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maestro_nodes_executed_total",
				Help: "Total number of node terminal transitions",
			},
			[]string{"node_type", "status"},
		),
		nodeRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maestro_node_retries_total",
				Help: "Total number of node retry attempts scheduled",
			},
			[]string{"node_type"},
		),
		nodeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maestro_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"node_type"},
		),
		workerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "maestro_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "maestro_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
	}
}

// RecordRunSubmitted records a run submission.
func (c *Collector) RecordRunSubmitted(status string) {
	c.runsSubmitted.WithLabelValues(status).Inc()
}

// RecordRunCompleted records a run reaching a terminal status.
func (c *Collector) RecordRunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeExecuted records a node terminal transition.
func (c *Collector) RecordNodeExecuted(nodeType, status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(nodeType, status).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// RecordNodeRetry records a scheduled retry attempt.
func (c *Collector) RecordNodeRetry(nodeType string) {
	c.nodeRetries.WithLabelValues(nodeType).Inc()
}

// SetActiveRuns sets the number of currently executing runs.
func (c *Collector) SetActiveRuns(count int) {
	c.activeRuns.Set(float64(count))
}

// RecordWorkerPoolStatus records worker pool gauges.
func (c *Collector) RecordWorkerPoolStatus(idle, busy int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
}
