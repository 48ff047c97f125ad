// Package metrics holds the Prometheus collectors for cost aggregation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons recorded on the propagation inconsistency counter.
const (
	ReasonMissingNode   = "missing_node"
	ReasonDepthExceeded = "depth_exceeded"
)

var (
	// FolderRecomputeTotal counts folder summary recomputations by result.
	FolderRecomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finmon_folder_recompute_total",
		Help: "Total folder cost recomputations by result",
	}, []string{"result"})

	// FolderRecomputeDuration tracks a single folder recomputation.
	FolderRecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finmon_folder_recompute_duration_seconds",
		Help:    "Folder cost recomputation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	// FolderRecomputeFiles tracks how many file costs fed one recomputation.
	FolderRecomputeFiles = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finmon_folder_recompute_files",
		Help:    "Number of descendant file costs per folder recomputation",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
	})

	// PropagationSteps tracks how many ancestors one propagation walk recomputed.
	PropagationSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finmon_cost_propagation_steps",
		Help:    "Number of ancestors recomputed per propagation walk",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 64, 128, 256},
	})

	// PropagationInconsistencies counts walks stopped early by a broken chain.
	PropagationInconsistencies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finmon_cost_propagation_inconsistencies_total",
		Help: "Total propagation walks stopped by a missing ancestor or the depth bound",
	}, []string{"reason"})
)

// RecordRecompute records the outcome of one folder recomputation.
func RecordRecompute(seconds float64, files int, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	FolderRecomputeTotal.WithLabelValues(result).Inc()
	FolderRecomputeDuration.Observe(seconds)
	if err == nil {
		FolderRecomputeFiles.Observe(float64(files))
	}
}
