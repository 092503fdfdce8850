// Package metrics exposes Prometheus collectors for target-parquet. A
// target runs as a batch process, so instead of serving /metrics the
// registry can be dumped to a node_exporter textfile at the end of a sync.
//
// # Basic Usage
//
//	metrics.RecordsProcessed.WithLabelValues("users").Inc()
//
//	timer := metrics.NewTimer()
//	writeBatch(rows)
//	metrics.FlushLatency.WithLabelValues("users").Observe(timer.Stop().Seconds())
//
//	_ = metrics.WriteTextfile("/var/lib/node_exporter/target_parquet.prom")
package metrics

import (
	"os"
	"time"

	"github.com/ajitpratap0/target-parquet/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"
)

// Flush reasons used as the "reason" label of FlushesTotal.
const (
	ReasonThreshold    = "threshold"
	ReasonSchemaChange = "schema_change"
	ReasonFinal        = "final"
)

var (
	// RecordsProcessed counts RECORD messages accepted per stream.
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "target_parquet_records_processed_total",
			Help: "Total number of records buffered for writing",
		},
		[]string{"stream"},
	)

	// RowsWritten counts rows persisted to parquet files per stream.
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "target_parquet_rows_written_total",
			Help: "Total number of rows written to parquet files",
		},
		[]string{"stream"},
	)

	// FilesWritten counts parquet files per stream.
	FilesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "target_parquet_files_written_total",
			Help: "Total number of parquet files written",
		},
		[]string{"stream"},
	)

	// BytesWritten counts encoded parquet bytes per stream.
	BytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "target_parquet_bytes_written_total",
			Help: "Total number of parquet bytes written",
		},
		[]string{"stream"},
	)

	// FlushesTotal counts flushes per stream and reason.
	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "target_parquet_flushes_total",
			Help: "Total number of buffer flushes",
		},
		[]string{"stream", "reason"},
	)

	// FlushErrors counts failed flushes per stream.
	FlushErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "target_parquet_flush_errors_total",
			Help: "Total number of failed buffer flushes",
		},
		[]string{"stream"},
	)

	// FlushLatency tracks how long a flush takes, encoding and upload
	// included.
	FlushLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "target_parquet_flush_duration_seconds",
			Help:    "Duration of buffer flushes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		},
		[]string{"stream"},
	)

	// BufferedRows is the number of rows currently waiting in a stream's
	// buffer.
	BufferedRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "target_parquet_buffered_rows",
			Help: "Rows currently buffered per stream",
		},
		[]string{"stream"},
	)

	// StateMessages counts forwarded STATE messages.
	StateMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "target_parquet_state_messages_total",
			Help: "Total number of state messages forwarded",
		},
	)

	// ProcessRSS is the resident set size of the process, sampled with
	// UpdateProcessMemory.
	ProcessRSS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "target_parquet_process_resident_memory_bytes",
			Help: "Resident memory of the target process in bytes",
		},
	)
)

// UpdateProcessMemory samples the resident memory of the current process
// into ProcessRSS and returns it.
func UpdateProcessMemory() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, "failed to inspect process")
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read process memory")
	}
	ProcessRSS.Set(float64(info.RSS))
	return info.RSS, nil
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write metrics textfile").
			WithDetail("path", path)
	}
	return nil
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the time elapsed since the timer started. It can be called
// more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
