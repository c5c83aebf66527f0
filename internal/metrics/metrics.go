package metrics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var totalRowsWritten atomic.Int64

var (
	ScanReadingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sysdiag_scan_readings_total",
		Help: "Readings matched in diagnostic dumps",
	}, []string{"source"})

	ScanDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sysdiag_scan_dropped_total",
		Help: "Readings matched but not attributable to the topology",
	}, []string{"source"})

	ScanRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sysdiag_scan_rows",
		Help: "Rows produced by the last scan of a source",
	}, []string{"source"})

	ScanUnsetCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sysdiag_scan_unset_cells",
		Help: "Unset cells left by the last scan of a source",
	}, []string{"source"})

	AlignDiscardedRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sysdiag_align_discarded_rows_total",
		Help: "Rows discarded when truncating tables to a common length",
	})

	RowsWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sysdiag_rows_written_total",
		Help: "Rows written to output tables",
	}, []string{"sink"})

	FlightUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sysdiag_flight_uploads_total",
		Help: "Tables uploaded over Arrow Flight",
	}, []string{"status"})

	KernelDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sysdiag_bench_kernel_duration_seconds",
		Help:    "Histogram of benchmark kernel iteration times",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 14),
	}, []string{"kernel"})

	KernelIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sysdiag_bench_kernel_iterations_total",
		Help: "Completed benchmark kernel iterations",
	}, []string{"kernel"})

	LastRunTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sysdiag_last_run_timestamp_seconds",
		Help: "Unix time of the last completed run of a tool",
	}, []string{"tool"})
)

// RecordScan records the outcome of scanning one source.
func RecordScan(source string, readings, rows, dropped, unset int) {
	ScanReadingsTotal.WithLabelValues(source).Add(float64(readings))
	ScanDroppedTotal.WithLabelValues(source).Add(float64(dropped))
	ScanRows.WithLabelValues(source).Set(float64(rows))
	ScanUnsetCells.WithLabelValues(source).Set(float64(unset))
}

// RecordAlignment records how many rows truncation discarded across tables
// of the given lengths aligned to n.
func RecordAlignment(lengths []int, n int) {
	discarded := 0
	for _, l := range lengths {
		if l > n {
			discarded += l - n
		}
	}
	AlignDiscardedRows.Add(float64(discarded))
}

func RecordRowsWritten(sink string, rows int) {
	RowsWrittenTotal.WithLabelValues(sink).Add(float64(rows))
	totalRowsWritten.Add(int64(rows))
}

// TotalRowsWritten returns rows written by this process across all sinks.
func TotalRowsWritten() int64 {
	return totalRowsWritten.Load()
}

func RecordFlightUpload(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	FlightUploads.WithLabelValues(status).Inc()
}

func RecordKernelDuration(name string, duration time.Duration) {
	KernelDuration.WithLabelValues(name).Observe(duration.Seconds())
	KernelIterations.WithLabelValues(name).Inc()
}

func RecordRun(tool string) {
	LastRunTimestamp.WithLabelValues(tool).SetToCurrentTime()
}

// Push sends the default registry to a Pushgateway. An empty url is a no-op.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
