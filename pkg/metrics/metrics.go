// Package metrics stores lightweight runtime gauges and counters in an
// embedded time-series storage under the application workdir.
package metrics

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/nakabonne/tstorage"
)

// Metric names recorded by the reconciliation subsystem.
const (
	GaugeInstancesTotal = "wadesk_instances_total"
	GaugeInstancesOpen  = "wadesk_instances_open"
	GaugePushLagSeconds = "wadesk_push_lag_seconds"
	GaugeCPUPercent     = "wadesk_cpu_percent"
	GaugeMemPercent     = "wadesk_mem_percent"

	CounterSweeps      = "wadesk_reconcile_sweeps"
	CounterPollErrors  = "wadesk_poll_errors"
	CounterPushApplied = "wadesk_push_applied"
	CounterPushDropped = "wadesk_push_dropped"
	CounterWebhookTest = "wadesk_webhook_tests"
)

var (
	storage tstorage.Storage
	mu      sync.Mutex
	// counters are accumulated in memory and flushed as datapoints
	counters = make(map[string]int64)
)

// InitMetrics opens the time-series storage under workdir/metrics.
func InitMetrics(workdir string) error {
	s, err := tstorage.NewStorage(
		tstorage.WithDataPath(filepath.Join(workdir, "metrics")),
		tstorage.WithTimestampPrecision(tstorage.Seconds),
		tstorage.WithPartitionDuration(6*time.Hour),
	)
	if err != nil {
		return err
	}
	mu.Lock()
	storage = s
	mu.Unlock()
	return nil
}

// SetGauge records the current value of a gauge metric.
func SetGauge(name string, value float64) {
	mu.Lock()
	s := storage
	mu.Unlock()
	if s == nil {
		return
	}
	_ = s.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: value},
		},
	})
}

// IncrCounter increments a named counter and records the running total.
func IncrCounter(name string, delta int64) {
	mu.Lock()
	counters[name] += delta
	total := counters[name]
	s := storage
	mu.Unlock()
	if s == nil {
		return
	}
	_ = s.InsertRows([]tstorage.Row{
		{
			Metric:    name,
			DataPoint: tstorage.DataPoint{Timestamp: time.Now().Unix(), Value: float64(total)},
		},
	})
}

// Select returns datapoints for a metric between start and end (unix seconds).
func Select(name string, start, end int64) ([]*tstorage.DataPoint, error) {
	mu.Lock()
	s := storage
	mu.Unlock()
	if s == nil {
		return nil, nil
	}
	return s.Select(name, nil, start, end)
}

// Close flushes and closes the underlying storage.
func Close() error {
	mu.Lock()
	s := storage
	storage = nil
	mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
