package syncer

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// lastSyncTimestamp is a Gauge that captures the timestamp of the last
	// successful sync
	lastSyncTimestamp *prometheus.GaugeVec
	// syncCount is a Counter vector of sync attempts
	syncCount *prometheus.CounterVec
	// syncLatency is a Histogram vector that keeps track of sync durations
	syncLatency *prometheus.HistogramVec
	// batchCount is a Counter vector of pushed history batches
	batchCount *prometheus.CounterVec
)

// EnableMetrics will enable metrics collection for project syncs.
// Available metrics are...
//   - last_sync_timestamp - (tags: project)
//     A Gauge that captures the Timestamp of the last successful sync per project.
//   - sync_count - (tags: project,success)
//     A Counter for each sync, incremented with each attempt and tagged with the result (success=true|false)
//   - sync_latency_seconds - (tags: project)
//     A Histogram that keeps track of sync latency per project.
//   - sync_batch_count - (tags: project)
//     A Counter of history batches pushed per project.
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	factory := promauto.With(registerer)

	lastSyncTimestamp = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_sync_timestamp",
		Help:      "Timestamp of the last successful project sync",
	},
		[]string{
			// id of the project
			"project",
		},
	)

	syncCount = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sync_count",
		Help:      "Count of project sync operations",
	},
		[]string{
			// id of the project
			"project",
			// Whether the sync was successful or not
			"success",
		},
	)

	syncLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "sync_latency_seconds",
		Help:      "Latency for project sync",
		Buckets:   []float64{0.5, 1, 5, 10, 20, 30, 60, 90, 120, 150, 300},
	},
		[]string{
			// id of the project
			"project",
		},
	)

	batchCount = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sync_batch_count",
		Help:      "Count of pushed history batches",
	},
		[]string{
			// id of the project
			"project",
		},
	)
}

// recordSync records a sync attempt by updating all the relevant metrics
func recordSync(project string, success bool) {
	// if metrics not enabled return
	if lastSyncTimestamp == nil || syncCount == nil {
		return
	}
	if success {
		lastSyncTimestamp.With(prometheus.Labels{
			"project": project,
		}).Set(float64(time.Now().Unix()))
	}
	syncCount.With(prometheus.Labels{
		"project": project,
		"success": strconv.FormatBool(success),
	}).Inc()
}

func updateSyncLatency(project string, start time.Time) {
	// if metrics not enabled return
	if syncLatency == nil {
		return
	}
	syncLatency.WithLabelValues(project).Observe(time.Since(start).Seconds())
}

func recordBatchPushed(project string) {
	// if metrics not enabled return
	if batchCount == nil {
		return
	}
	batchCount.WithLabelValues(project).Inc()
}
