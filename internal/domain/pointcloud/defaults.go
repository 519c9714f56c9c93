package pointcloud

import "github.com/turtacn/embedscope/internal/domain/metric"

// DefaultMetric is the metric selected when the user has not chosen one:
// drift when a reference dataset exists, accuracy otherwise.
func DefaultMetric(hasReference bool) metric.Definition {
	if hasReference {
		return metric.Drift{}
	}
	return metric.Performance{MetricKey: metric.AccuracyScore}
}

// DefaultUMAPParameters mirrors the fetch service defaults.
func DefaultUMAPParameters() UMAPParameters {
	return UMAPParameters{MinDist: 0, NNeighbors: 30, NSamples: 500}
}

// DefaultHDBSCANParameters mirrors the fetch service defaults.
func DefaultHDBSCANParameters() HDBSCANParameters {
	return HDBSCANParameters{MinClusterSize: 10, ClusterMinSamples: 1, ClusterSelectionEpsilon: 0}
}
