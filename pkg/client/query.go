package client

// UMAPQueryOperation is the operation name of UMAPQuery.
const UMAPQueryOperation = "EmbeddingUMAPQuery"

const pointFields = `
      id
      eventId
      coordinates {
        __typename
        ... on Point3D { x y z }
        ... on Point2D { x y }
      }
      embeddingMetadata { linkToData rawData }
      eventMetadata {
        predictionId
        predictionLabel
        actualLabel
        predictionScore
        actualScore
      }`

// UMAPQuery fetches the projected points of the primary and reference
// datasets together with their clusters.  The cluster metric blocks are
// included only when the matching fetch flag is set.
const UMAPQuery = `query EmbeddingUMAPQuery(
  $id: GlobalID!
  $timeRange: TimeRange!
  $minDist: Float!
  $nNeighbors: Int!
  $nSamples: Int!
  $minClusterSize: Int!
  $clusterMinSamples: Int!
  $clusterSelectionEpsilon: Float!
  $fetchDataQualityMetric: Boolean!
  $dataQualityMetricColumnName: String
  $fetchPerformanceMetric: Boolean!
  $performanceMetric: PerformanceMetric!
) {
  embedding: node(id: $id) {
    ... on EmbeddingDimension {
      UMAPPoints(
        timeRange: $timeRange
        minDist: $minDist
        nNeighbors: $nNeighbors
        nSamples: $nSamples
        minClusterSize: $minClusterSize
        clusterMinSamples: $clusterMinSamples
        clusterSelectionEpsilon: $clusterSelectionEpsilon
      ) {
        data {` + pointFields + `
        }
        referenceData {` + pointFields + `
        }
        clusters {
          id
          eventIds
          driftRatio
          dataQualityMetric(
            metric: { columnName: $dataQualityMetricColumnName, metric: mean }
          ) @include(if: $fetchDataQualityMetric) {
            primaryValue
            referenceValue
          }
          performanceMetric(metric: { metric: $performanceMetric })
            @include(if: $fetchPerformanceMetric) {
            primaryValue
            referenceValue
          }
        }
      }
    }
  }
}`
