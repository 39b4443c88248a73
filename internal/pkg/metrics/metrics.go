package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every dash-updater collector. It is private to the process
// so that a textfile export only contains our own series.
var Registry = prometheus.NewRegistry()

var (
	// BlocksWritten counts frames accepted by the device, per destination tag.
	BlocksWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dash_updater_blocks_written_total",
			Help: "Total number of 1 KiB blocks accepted by the device.",
		},
		[]string{"tag"},
	)

	// BlockWriteFailures counts write sequences aborted by a failed frame.
	BlockWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dash_updater_block_write_failures_total",
			Help: "Total number of write sequences aborted by a failed block.",
		},
		[]string{"tag"},
	)

	// FlashDuration records how long a complete write sequence took.
	FlashDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dash_updater_flash_duration_seconds",
			Help:    "Duration of complete block write sequences.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"tag"},
	)

	// RunsTotal counts update runs by plan and final state.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dash_updater_runs_total",
			Help: "Total number of update runs by plan and final state.",
		},
		[]string{"plan", "state"},
	)
)

func init() {
	Registry.MustRegister(BlocksWritten)
	Registry.MustRegister(BlockWriteFailures)
	Registry.MustRegister(FlashDuration)
	Registry.MustRegister(RunsTotal)
}

// WriteTextfile writes the current state of Registry to path in the text
// exposition format understood by the node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
