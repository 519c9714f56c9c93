package embedding

import (
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
	embtypes "github.com/turtacn/embedscope/pkg/types/embedding"
)

// Normalize converts a fetch result into store-ready points and clusters.
// Points of both datasets are merged under mode; cluster metric values are
// taken from whichever metric block params requested.  A metric block the
// query did not ask for is logged and ignored.
func Normalize(
	result *embtypes.UMAPPoints,
	params embtypes.QueryParams,
	mode pointcloud.DisplayMode,
	logger logging.Logger,
) ([]pointcloud.Point, []pointcloud.Cluster, error) {
	if result == nil {
		return nil, nil, errors.ErrFetchFailed.WithDetail("empty result")
	}
	logger = logging.OrNop(logger)

	points, err := pointcloud.MergeDatasets(toInputs(result.Data), toInputs(result.ReferenceData), mode)
	if err != nil {
		return nil, nil, err
	}

	_, wantDataQuality := params.RequestedDataQualityColumn()
	_, wantPerformance := params.RequestedPerformanceMetric()

	clusters := make([]pointcloud.Cluster, 0, len(result.Clusters))
	for _, cp := range result.Clusters {
		c := pointcloud.Cluster{
			ID:         cp.ID,
			EventIDs:   pointcloud.NewEventIDSet(cp.EventIDs...),
			DriftRatio: cp.DriftRatio,
		}

		var mv *embtypes.MetricValue
		switch {
		case wantDataQuality:
			mv = cp.DataQualityMetric
		case wantPerformance:
			mv = cp.PerformanceMetric
		}
		if cp.PerformanceMetric != nil && !wantPerformance {
			logger.Error("performance metric returned without being requested, ignoring",
				logging.String("cluster_id", cp.ID),
				logging.String("embedding_id", params.EmbeddingID))
		}
		if cp.DataQualityMetric != nil && !wantDataQuality {
			logger.Warn("data quality metric returned without being requested, ignoring",
				logging.String("cluster_id", cp.ID))
		}
		if mv != nil {
			c.PrimaryMetricValue = mv.PrimaryValue
			c.ReferenceMetricValue = mv.ReferenceValue
		}
		clusters = append(clusters, c)
	}

	if err := pointcloud.ValidateClusterReferences(points, clusters); err != nil {
		return nil, nil, err
	}
	return points, clusters, nil
}

func toInputs(payloads []embtypes.PointPayload) []pointcloud.PointInput {
	out := make([]pointcloud.PointInput, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, pointcloud.PointInput{
			ID:          p.ID,
			EventID:     p.EventID,
			Coordinates: toCoordinates(p.Coordinates),
			Metadata: pointcloud.PointMetadata{
				LinkToData:      p.EmbeddingMetadata.LinkToData,
				RawData:         p.EmbeddingMetadata.RawData,
				PredictionID:    p.EventMetadata.PredictionID,
				PredictionLabel: p.EventMetadata.PredictionLabel,
				ActualLabel:     p.EventMetadata.ActualLabel,
				PredictionScore: p.EventMetadata.PredictionScore,
				ActualScore:     p.EventMetadata.ActualScore,
			},
		})
	}
	return out
}

// toCoordinates maps the wire union.  A Point3D without z is left untagged so
// the merge rejects it.
func toCoordinates(c embtypes.Coordinates) pointcloud.Coordinates {
	out := pointcloud.Coordinates{Kind: pointcloud.CoordinateKind(c.TypeName), X: c.X, Y: c.Y}
	if out.Kind == pointcloud.Point3D {
		if c.Z == nil {
			out.Kind = ""
		} else {
			out.Z = *c.Z
		}
	}
	return out
}
