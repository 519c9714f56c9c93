// Package embedding defines the request and response shapes of the remote
// UMAP/HDBSCAN point cloud query.  Field names follow the GraphQL schema of
// the fetch service.
package embedding

import (
	"time"
)

// PlaceholderPerformanceMetric is sent as performanceMetric when no
// performance metric is requested.  The service schema requires a value;
// it must never be evaluated.
const PlaceholderPerformanceMetric = "accuracyScore"

// TimeRangeInput is the query time window.
type TimeRangeInput struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// QueryParams are the variables of one point cloud query.
type QueryParams struct {
	EmbeddingID             string         `json:"id"`
	TimeRange               TimeRangeInput `json:"timeRange"`
	MinDist                 float64        `json:"minDist"`
	NNeighbors              int            `json:"nNeighbors"`
	NSamples                int            `json:"nSamples"`
	MinClusterSize          int            `json:"minClusterSize"`
	ClusterMinSamples       int            `json:"clusterMinSamples"`
	ClusterSelectionEpsilon float64        `json:"clusterSelectionEpsilon"`

	FetchDataQualityMetric      bool    `json:"fetchDataQualityMetric"`
	DataQualityMetricColumnName *string `json:"dataQualityMetricColumnName"`
	FetchPerformanceMetric      bool    `json:"fetchPerformanceMetric"`
	PerformanceMetric           string  `json:"performanceMetric"`
}

// RequestedPerformanceMetric returns the performance metric key only when one
// was requested.  Callers must use it instead of reading PerformanceMetric,
// which holds a placeholder otherwise.
func (q QueryParams) RequestedPerformanceMetric() (string, bool) {
	if !q.FetchPerformanceMetric {
		return "", false
	}
	return q.PerformanceMetric, true
}

// RequestedDataQualityColumn returns the dimension name only when a data
// quality metric was requested.
func (q QueryParams) RequestedDataQualityColumn() (string, bool) {
	if !q.FetchDataQualityMetric || q.DataQualityMetricColumnName == nil {
		return "", false
	}
	return *q.DataQualityMetricColumnName, true
}

// Coordinates is the position union; TypeName is "Point2D" or "Point3D".
type Coordinates struct {
	TypeName string   `json:"__typename"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Z        *float64 `json:"z,omitempty"`
}

// EmbeddingMetadata links a point to its source record.
type EmbeddingMetadata struct {
	LinkToData *string `json:"linkToData"`
	RawData    *string `json:"rawData"`
}

// EventMetadata carries model inputs and outcomes of the event.
type EventMetadata struct {
	PredictionID    *string  `json:"predictionId"`
	PredictionLabel *string  `json:"predictionLabel"`
	ActualLabel     *string  `json:"actualLabel"`
	PredictionScore *float64 `json:"predictionScore"`
	ActualScore     *float64 `json:"actualScore"`
}

// PointPayload is one projected event.
type PointPayload struct {
	ID                string            `json:"id"`
	EventID           string            `json:"eventId"`
	Coordinates       Coordinates       `json:"coordinates"`
	EmbeddingMetadata EmbeddingMetadata `json:"embeddingMetadata"`
	EventMetadata     EventMetadata     `json:"eventMetadata"`
}

// MetricValue is a cluster metric over the primary and reference datasets.
type MetricValue struct {
	PrimaryValue   *float64 `json:"primaryValue"`
	ReferenceValue *float64 `json:"referenceValue"`
}

// ClusterPayload is one HDBSCAN cluster.  DataQualityMetric and
// PerformanceMetric are present only when requested.
type ClusterPayload struct {
	ID                string       `json:"id"`
	EventIDs          []string     `json:"eventIds"`
	DriftRatio        *float64     `json:"driftRatio"`
	DataQualityMetric *MetricValue `json:"dataQualityMetric,omitempty"`
	PerformanceMetric *MetricValue `json:"performanceMetric,omitempty"`
}

// UMAPPoints is the query result.
type UMAPPoints struct {
	Data          []PointPayload   `json:"data"`
	ReferenceData []PointPayload   `json:"referenceData"`
	Clusters      []ClusterPayload `json:"clusters"`
}
