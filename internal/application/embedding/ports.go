// Package embedding orchestrates the point cloud of one embedding dimension:
// it builds the remote query from the current parameters, runs at most one
// current fetch through the Coordinator, normalizes the result into the
// pointcloud.Store and turns store errors into notifications.
package embedding

import (
	"context"
	"time"

	embtypes "github.com/turtacn/embedscope/pkg/types/embedding"
)

// FetchService resolves one point cloud query.  pkg/client.Client implements
// it; CachedFetchService decorates it.
type FetchService interface {
	FetchUMAPPoints(ctx context.Context, params embtypes.QueryParams) (*embtypes.UMAPPoints, error)
}

// FetchRecorder receives coordinator activity for metrics.  SetFetchInFlight
// is called with the coordinator lock held, in the order of the lifecycle
// transitions it reports, and must not block.
type FetchRecorder interface {
	RecordFetchIssued()
	RecordFetchOutcome(outcome string, elapsed time.Duration)
	SetFetchInFlight(inFlight bool)
}

// CacheRecorder receives fetch cache hits and misses.
type CacheRecorder interface {
	RecordCacheAccess(hit bool)
}

// CacheInvalidator drops cached fetch results of one embedding.
// CachedFetchService implements it.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, embeddingID string) error
}

// EventPublisher ships lifecycle events to an external stream.
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event LifecycleEvent) error
}

type nopFetchRecorder struct{}

func (nopFetchRecorder) RecordFetchIssued()                        {}
func (nopFetchRecorder) RecordFetchOutcome(string, time.Duration) {}
func (nopFetchRecorder) SetFetchInFlight(bool)                     {}

type nopCacheRecorder struct{}

func (nopCacheRecorder) RecordCacheAccess(bool) {}
