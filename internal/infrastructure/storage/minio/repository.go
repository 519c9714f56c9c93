package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/embedscope/internal/application/embedding"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
)

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrUploadFailed   = errors.New(errors.ErrCodeStorage, "upload failed")
	ErrInvalidRequest = errors.New(errors.ErrCodeValidation, "invalid request")
)

const contentTypeJSON = "application/json"

// Object metadata keys set on every snapshot.
const (
	metaEmbeddingID = "Embedding-Id"
	metaSessionID   = "Session-Id"
	metaVersion     = "Snapshot-Version"
)

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// SnapshotRepository writes SnapshotDocuments as JSON objects named
// <prefix><embedding id>/<captured at>-<session id>.json.
type SnapshotRepository struct {
	client *MinIOClient
	logger logging.Logger
}

var _ embedding.SnapshotStore = (*SnapshotRepository)(nil)

func NewSnapshotRepository(client *MinIOClient, log logging.Logger) *SnapshotRepository {
	return &SnapshotRepository{client: client, logger: logging.OrNop(log).Named("snapshots")}
}

// SnapshotKey returns the object key of doc.
func (r *SnapshotRepository) SnapshotKey(doc *embedding.SnapshotDocument) string {
	return r.embeddingPrefix(doc.EmbeddingID) +
		doc.CapturedAt.UTC().Format("20060102T150405Z") + "-" + doc.SessionID + ".json"
}

func (r *SnapshotRepository) embeddingPrefix(embeddingID string) string {
	return r.client.config.Prefix + sanitizeKeySegment(embeddingID) + "/"
}

// SaveSnapshot uploads doc and returns its location with a presigned
// download URL.  A presign failure is logged and leaves URL empty.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, doc *embedding.SnapshotDocument) (*embedding.SnapshotLocation, error) {
	if doc == nil || doc.EmbeddingID == "" {
		return nil, ErrInvalidRequest.WithDetail("snapshot requires an embedding id")
	}
	api, err := r.client.GetClient()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal snapshot")
	}

	key := r.SnapshotKey(doc)
	opts := minio.PutObjectOptions{
		ContentType: contentTypeJSON,
		UserMetadata: map[string]string{
			metaEmbeddingID: doc.EmbeddingID,
			metaSessionID:   doc.SessionID,
			metaVersion:     strconv.FormatUint(doc.Version, 10),
		},
	}
	info, err := api.PutObject(ctx, r.client.Bucket(), key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return nil, ErrUploadFailed.WithCause(err).WithDetail(key)
	}

	loc := &embedding.SnapshotLocation{
		Bucket: r.client.Bucket(),
		Key:    key,
		ETag:   info.ETag,
		Size:   info.Size,
	}
	if u, err := r.client.GeneratePresignedGetURL(ctx, key, 0); err != nil {
		r.logger.Warn("failed to presign snapshot", logging.String("key", key), logging.Err(err))
	} else {
		loc.URL = u
	}
	r.logger.Info("snapshot uploaded",
		logging.String("key", key),
		logging.Int64("size", loc.Size))
	return loc, nil
}

// Exists reports whether key is stored.
func (r *SnapshotRepository) Exists(ctx context.Context, key string) (bool, error) {
	api, err := r.client.GetClient()
	if err != nil {
		return false, err
	}
	_, err = api.StatObject(ctx, r.client.Bucket(), key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeStorage, "failed to stat snapshot").WithDetail(key)
}

// List returns the snapshots of embeddingID, newest first.
func (r *SnapshotRepository) List(ctx context.Context, embeddingID string) ([]SnapshotInfo, error) {
	api, err := r.client.GetClient()
	if err != nil {
		return nil, err
	}
	var out []SnapshotInfo
	opts := minio.ListObjectsOptions{Prefix: r.embeddingPrefix(embeddingID), Recursive: true}
	for obj := range api.ListObjects(ctx, r.client.Bucket(), opts) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeStorage, "failed to list snapshots")
		}
		out = append(out, SnapshotInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

func sanitizeKeySegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(s)
}
