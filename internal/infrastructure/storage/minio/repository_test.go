package minio

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/embedscope/internal/application/embedding"
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
)

func newTestRepository(api *MockMinIOAPI) *SnapshotRepository {
	cfg := &MinIOConfig{Bucket: "snaps", Prefix: "snapshots"}
	applyDefaults(cfg)
	c := &MinIOClient{client: api, config: cfg, logger: logging.NewNopLogger()}
	return NewSnapshotRepository(c, nil)
}

func testDocument() *embedding.SnapshotDocument {
	return &embedding.SnapshotDocument{
		SessionID:   "sess-1",
		EmbeddingID: "text embedding",
		Version:     7,
		CapturedAt:  time.Date(2024, 5, 2, 12, 30, 0, 0, time.UTC),
		Points: []pointcloud.Point{
			{ID: "p1", EventID: "e1", Position: []float64{0, 1, 2}, DatasetRole: pointcloud.RolePrimary},
		},
	}
}

func TestSnapshotRepository_SnapshotKey(t *testing.T) {
	r := newTestRepository(new(MockMinIOAPI))
	assert.Equal(t, "snapshots/text_embedding/20240502T123000Z-sess-1.json", r.SnapshotKey(testDocument()))
}

func TestSnapshotRepository_SaveSnapshot(t *testing.T) {
	api := new(MockMinIOAPI)
	r := newTestRepository(api)
	doc := testDocument()
	key := r.SnapshotKey(doc)
	ctx := context.Background()

	api.On("PutObject", ctx, "snaps", key, mock.MatchedBy(func(data []byte) bool {
		var got embedding.SnapshotDocument
		return json.Unmarshal(data, &got) == nil && got.SessionID == "sess-1" && len(got.Points) == 1
	}), mock.AnythingOfType("int64"), mock.MatchedBy(func(o minio.PutObjectOptions) bool {
		return o.ContentType == "application/json" && o.UserMetadata["Snapshot-Version"] == "7"
	})).Return(minio.UploadInfo{Bucket: "snaps", Key: key, ETag: "abc", Size: 321}, nil)
	u, _ := url.Parse("http://minio/snaps/" + key)
	api.On("PresignedGetObject", ctx, "snaps", key, time.Hour, url.Values(nil)).Return(u, nil)

	loc, err := r.SaveSnapshot(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "snaps", loc.Bucket)
	assert.Equal(t, key, loc.Key)
	assert.Equal(t, "abc", loc.ETag)
	assert.Equal(t, int64(321), loc.Size)
	assert.Equal(t, u.String(), loc.URL)
	api.AssertExpectations(t)
}

func TestSnapshotRepository_SaveSnapshot_PresignFailureKeepsUpload(t *testing.T) {
	api := new(MockMinIOAPI)
	r := newTestRepository(api)
	api.On("PutObject", mock.Anything, "snaps", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{Size: 10}, nil)
	api.On("PresignedGetObject", mock.Anything, "snaps", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	loc, err := r.SaveSnapshot(context.Background(), testDocument())
	require.NoError(t, err)
	assert.Empty(t, loc.URL)
}

func TestSnapshotRepository_SaveSnapshot_Errors(t *testing.T) {
	api := new(MockMinIOAPI)
	r := newTestRepository(api)

	_, err := r.SaveSnapshot(context.Background(), &embedding.SnapshotDocument{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	api.On("PutObject", mock.Anything, "snaps", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, assert.AnError)
	_, err = r.SaveSnapshot(context.Background(), testDocument())
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorage))
}

func TestSnapshotRepository_Exists(t *testing.T) {
	api := new(MockMinIOAPI)
	r := newTestRepository(api)
	ctx := context.Background()

	api.On("StatObject", ctx, "snaps", "a", minio.StatObjectOptions{}).Return(minio.ObjectInfo{Key: "a"}, nil)
	api.On("StatObject", ctx, "snaps", "b", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})

	ok, err := r.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotRepository_List(t *testing.T) {
	api := new(MockMinIOAPI)
	r := newTestRepository(api)
	ctx := context.Background()

	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "snapshots/emb/20240501T000000Z-a.json", Size: 1}
	ch <- minio.ObjectInfo{Key: "snapshots/emb/20240502T000000Z-b.json", Size: 2}
	close(ch)
	api.On("ListObjects", ctx, "snaps", minio.ListObjectsOptions{Prefix: "snapshots/emb/", Recursive: true}).
		Return((<-chan minio.ObjectInfo)(ch))

	infos, err := r.List(ctx, "emb")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "snapshots/emb/20240502T000000Z-b.json", infos[0].Key)
}
