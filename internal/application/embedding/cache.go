package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"time"

	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
	embtypes "github.com/turtacn/embedscope/pkg/types/embedding"
)

// ResultCache is the slice of the redis cache the fetch decorator needs.
type ResultCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) (bool, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

const cacheKeyPrefix = "umap:"

// CacheKey derives the cache key for params.  Identical parameters map to
// the same key, and all keys of one embedding share EmbeddingKeyPrefix.
func CacheKey(params embtypes.QueryParams) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode query params")
	}
	sum := sha256.Sum256(raw)
	return EmbeddingKeyPrefix(params.EmbeddingID) + hex.EncodeToString(sum[:]), nil
}

// EmbeddingKeyPrefix is the key prefix of every cached result of
// embeddingID.
func EmbeddingKeyPrefix(embeddingID string) string {
	return cacheKeyPrefix + url.QueryEscape(embeddingID) + ":"
}

// CachedFetchService serves repeated queries from a ResultCache.  Failed
// fetches are never cached, and a cache outage degrades to direct fetches.
type CachedFetchService struct {
	next     FetchService
	cache    ResultCache
	ttl      time.Duration
	recorder CacheRecorder
	logger   logging.Logger
}

// NewCachedFetchService wraps next.  A nil recorder is allowed.
func NewCachedFetchService(next FetchService, cache ResultCache, ttl time.Duration, recorder CacheRecorder, logger logging.Logger) *CachedFetchService {
	if recorder == nil {
		recorder = nopCacheRecorder{}
	}
	return &CachedFetchService{
		next:     next,
		cache:    cache,
		ttl:      ttl,
		recorder: recorder,
		logger:   logging.OrNop(logger).Named("fetch_cache"),
	}
}

func (s *CachedFetchService) FetchUMAPPoints(ctx context.Context, params embtypes.QueryParams) (*embtypes.UMAPPoints, error) {
	key, err := CacheKey(params)
	if err != nil {
		return s.next.FetchUMAPPoints(ctx, params)
	}

	var out embtypes.UMAPPoints
	loaded, err := s.cache.GetOrSet(ctx, key, &out, s.ttl, func(ctx context.Context) (interface{}, error) {
		result, err := s.next.FetchUMAPPoints(ctx, params)
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, errors.ErrFetchFailed.WithDetail("empty result")
		}
		return result, nil
	})
	switch {
	case err == nil:
		s.recorder.RecordCacheAccess(!loaded)
		return &out, nil
	case errors.IsCode(err, errors.ErrCodeCacheError), errors.IsCode(err, errors.ErrCodeSerialization):
		s.logger.Warn("fetch cache unavailable, fetching directly",
			logging.String("embedding_id", params.EmbeddingID),
			logging.Err(err))
		return s.next.FetchUMAPPoints(ctx, params)
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		// A load shared with a cancelled caller; this caller is still live.
		s.logger.Debug("shared fetch cancelled, fetching directly",
			logging.String("embedding_id", params.EmbeddingID))
		return s.next.FetchUMAPPoints(ctx, params)
	default:
		if !loaded {
			s.recorder.RecordCacheAccess(false)
		}
		return nil, err
	}
}

// Invalidate drops every cached result of embeddingID, whatever parameters
// produced it.
func (s *CachedFetchService) Invalidate(ctx context.Context, embeddingID string) error {
	n, err := s.cache.DeleteByPrefix(ctx, EmbeddingKeyPrefix(embeddingID))
	if err != nil {
		return err
	}
	s.logger.Debug("fetch cache invalidated",
		logging.String("embedding_id", embeddingID),
		logging.Int64("keys", n))
	return nil
}
