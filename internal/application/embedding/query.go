package embedding

import (
	"github.com/turtacn/embedscope/internal/domain/metric"
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	embtypes "github.com/turtacn/embedscope/pkg/types/embedding"
)

type metricFlags struct {
	fetchDataQuality  bool
	columnName        *string
	fetchPerformance  bool
	performanceMetric string
}

type flagBuilder struct{}

func (flagBuilder) VisitDataQuality(m metric.DataQuality) (metricFlags, error) {
	name := m.DimensionName
	return metricFlags{
		fetchDataQuality:  true,
		columnName:        &name,
		performanceMetric: embtypes.PlaceholderPerformanceMetric,
	}, nil
}

func (flagBuilder) VisitDrift(metric.Drift) (metricFlags, error) {
	return metricFlags{performanceMetric: embtypes.PlaceholderPerformanceMetric}, nil
}

func (flagBuilder) VisitPerformance(m metric.Performance) (metricFlags, error) {
	return metricFlags{fetchPerformance: true, performanceMetric: string(m.MetricKey)}, nil
}

// BuildQueryParams assembles the query variables.  It is pure: the same inputs
// always yield the same QueryParams.  A nil metric requests neither metric
// block.
func BuildQueryParams(
	embeddingID string,
	tr pointcloud.TimeRange,
	umap pointcloud.UMAPParameters,
	hdbscan pointcloud.HDBSCANParameters,
	def metric.Definition,
) embtypes.QueryParams {
	flags, err := metric.Visit[metricFlags](def, flagBuilder{})
	if err != nil {
		flags = metricFlags{performanceMetric: embtypes.PlaceholderPerformanceMetric}
	}

	return embtypes.QueryParams{
		EmbeddingID:             embeddingID,
		TimeRange:               embtypes.TimeRangeInput{Start: tr.Start.UTC(), End: tr.End.UTC()},
		MinDist:                 umap.MinDist,
		NNeighbors:              umap.NNeighbors,
		NSamples:                umap.NSamples,
		MinClusterSize:          hdbscan.MinClusterSize,
		ClusterMinSamples:       hdbscan.ClusterMinSamples,
		ClusterSelectionEpsilon: hdbscan.ClusterSelectionEpsilon,

		FetchDataQualityMetric:      flags.fetchDataQuality,
		DataQualityMetricColumnName: flags.columnName,
		FetchPerformanceMetric:      flags.fetchPerformance,
		PerformanceMetric:           flags.performanceMetric,
	}
}
