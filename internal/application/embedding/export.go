package embedding

import (
	"context"
	"time"

	"github.com/turtacn/embedscope/internal/domain/metric"
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
)

// SnapshotDocument is the serialisable view of a session used by the HTTP
// API and by snapshot exports.
type SnapshotDocument struct {
	SessionID    string                       `json:"session_id"`
	EmbeddingID  string                       `json:"embedding_id"`
	Version      uint64                       `json:"version"`
	CapturedAt   time.Time                    `json:"captured_at"`
	TimeRange    pointcloud.TimeRange         `json:"time_range"`
	UMAP         pointcloud.UMAPParameters    `json:"umap"`
	HDBSCAN      pointcloud.HDBSCANParameters `json:"hdbscan"`
	Metric       *metric.Spec                 `json:"metric,omitempty"`
	MetricLabel  string                       `json:"metric_label,omitempty"`
	HasReference bool                         `json:"has_reference"`
	Fetch        LifecycleState               `json:"fetch"`
	Error        *string                      `json:"error"`
	Selection    pointcloud.SelectionState    `json:"selection"`
	Points       []pointcloud.Point           `json:"points"`
	Clusters     []pointcloud.ClusterView     `json:"clusters"`
}

// SnapshotLocation is where an exported document was stored.
type SnapshotLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	ETag   string `json:"etag,omitempty"`
	Size   int64  `json:"size"`
	URL    string `json:"url,omitempty"`
}

// SnapshotStore persists exported documents.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, doc *SnapshotDocument) (*SnapshotLocation, error)
}

// Document captures the session's current store state.  Clusters are
// returned in fetch order.
func (s *Session) Document(now time.Time) (*SnapshotDocument, error) {
	s.mu.Lock()
	params := s.params
	q := s.queryLocked()
	s.mu.Unlock()

	snap := s.store.Snapshot()
	doc := &SnapshotDocument{
		SessionID:    s.id,
		EmbeddingID:  params.EmbeddingID,
		Version:      snap.Version,
		CapturedAt:   now.UTC(),
		TimeRange:    pointcloud.TimeRange{Start: q.TimeRange.Start, End: q.TimeRange.End},
		UMAP:         params.UMAP,
		HDBSCAN:      params.HDBSCAN,
		MetricLabel:  snap.MetricLabel,
		HasReference: snap.View.HasReference,
		Fetch:        s.coord.State(),
		Error:        snap.ErrorMessage,
		Selection:    snap.Selection,
		Points:       snap.Points,
		Clusters:     snap.ClusterViews(),
	}
	if params.Metric != nil {
		spec, err := metric.ToSpec(params.Metric)
		if err != nil {
			return nil, err
		}
		doc.Metric = &spec
	}
	if doc.Points == nil {
		doc.Points = []pointcloud.Point{}
	}
	return doc, nil
}

// ExportSnapshot stores the session's current document.  A session whose
// last fetch failed or that has no data yet is not exported.
func ExportSnapshot(ctx context.Context, s *Session, dst SnapshotStore, now time.Time) (*SnapshotLocation, error) {
	doc, err := s.Document(now)
	if err != nil {
		return nil, err
	}
	if doc.Error != nil {
		return nil, errors.ErrFetchFailed.WithDetail(*doc.Error)
	}
	if doc.Fetch.Phase != PhaseResolved {
		return nil, errors.New(errors.ErrCodeConflict, "no resolved point cloud to export").
			WithDetail(string(doc.Fetch.Phase))
	}
	s.logger.Info("exporting point cloud snapshot",
		logging.Int("points", len(doc.Points)),
		logging.Int("clusters", len(doc.Clusters)))
	return dst.SaveSnapshot(ctx, doc)
}
