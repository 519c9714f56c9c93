package embedding

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/embedscope/internal/domain/metric"
	"github.com/turtacn/embedscope/pkg/errors"
)

type memorySnapshotStore struct {
	saved []*SnapshotDocument
}

func (m *memorySnapshotStore) SaveSnapshot(_ context.Context, doc *SnapshotDocument) (*SnapshotLocation, error) {
	m.saved = append(m.saved, doc)
	return &SnapshotLocation{Bucket: "b", Key: doc.SessionID + ".json"}, nil
}

func TestSession_Document(t *testing.T) {
	fx := newSessionFixture(t, SessionConfig{Datasets: primaryOnly()})
	fx.started(t)
	_, err := fx.session.Selection().ClusterClick("ca")
	require.NoError(t, err)

	now := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)
	doc, err := fx.session.Document(now)
	require.NoError(t, err)

	assert.Equal(t, fx.session.ID(), doc.SessionID)
	assert.Equal(t, "emb", doc.EmbeddingID)
	assert.Equal(t, now, doc.CapturedAt)
	assert.Equal(t, primaryEnd, doc.TimeRange.End)
	assert.Equal(t, PhaseResolved, doc.Fetch.Phase)
	require.NotNil(t, doc.Metric)
	assert.Equal(t, metric.KindPerformance, doc.Metric.Type)
	assert.Len(t, doc.Points, 2)
	require.Len(t, doc.Clusters, 1)
	assert.True(t, doc.Clusters[0].IsSelected)
	assert.Equal(t, 2, doc.Clusters[0].NumPoints)
	assert.True(t, doc.Clusters[0].HideReference)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "ca", decoded["selection"].(map[string]any)["selected_cluster_id"])
	assert.Contains(t, decoded, "clusters")
}

func TestExportSnapshot(t *testing.T) {
	fx := newSessionFixture(t, SessionConfig{Datasets: primaryOnly()})
	fx.started(t)
	dst := &memorySnapshotStore{}

	loc, err := ExportSnapshot(context.Background(), fx.session, dst, time.Now())
	require.NoError(t, err)
	assert.Equal(t, fx.session.ID()+".json", loc.Key)
	require.Len(t, dst.saved, 1)
	assert.Len(t, dst.saved[0].Points, 2)
}

func TestExportSnapshot_NotResolved(t *testing.T) {
	fx := newSessionFixture(t, SessionConfig{Datasets: primaryOnly()})
	dst := &memorySnapshotStore{}

	_, err := ExportSnapshot(context.Background(), fx.session, dst, time.Now())
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
	assert.Empty(t, dst.saved)
}

func TestExportSnapshot_FailedFetch(t *testing.T) {
	fx := newSessionFixture(t, SessionConfig{Datasets: primaryOnly()})
	h := fx.session.Start(context.Background())
	fx.fetcher.next(t).fail(assert.AnError)
	_, _ = wait(t, h)

	_, err := ExportSnapshot(context.Background(), fx.session, &memorySnapshotStore{}, time.Now())
	assert.True(t, errors.IsCode(err, errors.ErrCodeFetchFailed))
}
