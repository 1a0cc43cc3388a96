package converter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "converter"

// Metrics holds the counters of one or more conversion runs. All methods
// are safe for concurrent use by the workers.
type Metrics struct {
	Registry        *prometheus.Registry
	FramesProcessed *prometheus.CounterVec
	FramesSkipped   *prometheus.CounterVec
	EmptyPulses     *prometheus.CounterVec
	FilesProcessed  *prometheus.CounterVec
	ShardsWritten   *prometheus.CounterVec
	RowsMerged      *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_processed_total",
			Help:      "Physics frames extracted, by worker.",
		}, []string{"worker"}),
		FramesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_skipped_total",
			Help:      "Physics frames dropped because they could not be decoded, by worker.",
		}, []string{"worker"}),
		EmptyPulses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_empty_pulsemap_total",
			Help:      "Frames kept without pulsemap rows, by worker.",
		}, []string{"worker"}),
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "files_processed_total",
			Help:      "Event files read to the end, by worker.",
		}, []string{"worker"}),
		ShardsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "shards_written_total",
			Help:      "Temporary databases flushed, by worker.",
		}, []string{"worker"}),
		RowsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_merged_total",
			Help:      "Rows copied into the final database, by table.",
		}, []string{"table"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
	}
	m.Registry.MustRegister(
		m.FramesProcessed,
		m.FramesSkipped,
		m.EmptyPulses,
		m.FilesProcessed,
		m.ShardsWritten,
		m.RowsMerged,
		m.StageDuration,
	)
	return m
}

func workerLabel(id int) string {
	return strconv.Itoa(id)
}

// WriteToTextfile dumps the registry in the text exposition format, for
// the node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
