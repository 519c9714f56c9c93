package embedding

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/embedscope/internal/domain/metric"
	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/embedscope/pkg/errors"
	embtypes "github.com/turtacn/embedscope/pkg/types/embedding"
)

// Parameters are the user-controlled inputs of a point cloud query.
type Parameters struct {
	EmbeddingID       string
	UMAP              pointcloud.UMAPParameters
	HDBSCAN           pointcloud.HDBSCANParameters
	Metric            metric.Definition
	SelectedTimestamp *time.Time
}

func (p Parameters) equal(o Parameters) bool {
	if p.EmbeddingID != o.EmbeddingID || p.UMAP != o.UMAP || p.HDBSCAN != o.HDBSCAN || p.Metric != o.Metric {
		return false
	}
	if p.SelectedTimestamp == nil || o.SelectedTimestamp == nil {
		return p.SelectedTimestamp == o.SelectedTimestamp
	}
	return p.SelectedTimestamp.Equal(*o.SelectedTimestamp)
}

// SessionConfig seeds a Session.  Zero values fall back to the defaults of
// the pointcloud package.
type SessionConfig struct {
	EmbeddingID string
	Datasets    DatasetContext
	Window      time.Duration
	UMAP        *pointcloud.UMAPParameters
	HDBSCAN     *pointcloud.HDBSCANParameters
	Metric      metric.Definition
	ShortNames  metric.ShortNames
	Recorder    pointcloud.Recorder
	// Cache, when set, is invalidated for the embedding on Refetch.
	Cache       CacheInvalidator
}

// Session binds the parameter sources of one embedding view to a store and
// a coordinator.  Every parameter change resets the store and issues a new
// request; setting a parameter to its current value does nothing.
//
// Lock order is session, coordinator, store.
type Session struct {
	id         string
	store      *pointcloud.Store
	coord      *Coordinator
	selection  *pointcloud.SelectionController
	shortNames metric.ShortNames
	window     time.Duration
	cache      CacheInvalidator
	logger     logging.Logger

	mu       sync.Mutex
	params   Parameters
	datasets DatasetContext
	issued   *embtypes.QueryParams
}

// NewSession validates cfg and configures the store's view.  No fetch is
// issued until Start.
func NewSession(store *pointcloud.Store, coord *Coordinator, cfg SessionConfig, logger logging.Logger) (*Session, error) {
	s := &Session{
		id:         uuid.NewString(),
		store:      store,
		coord:      coord,
		selection:  pointcloud.NewSelectionController(store, cfg.Recorder),
		shortNames: cfg.ShortNames,
		window:     cfg.Window,
		datasets:   cfg.Datasets,
		cache:      cfg.Cache,
	}
	if s.shortNames == nil {
		s.shortNames = metric.DefaultShortNames()
	}
	if s.window <= 0 {
		s.window = pointcloud.DefaultWindow
	}
	s.logger = logging.OrNop(logger).Named("session").With(logging.String("session_id", s.id))

	s.params = Parameters{
		EmbeddingID: cfg.EmbeddingID,
		UMAP:        pointcloud.DefaultUMAPParameters(),
		HDBSCAN:     pointcloud.DefaultHDBSCANParameters(),
		Metric:      cfg.Metric,
	}
	if cfg.UMAP != nil {
		s.params.UMAP = *cfg.UMAP
	}
	if cfg.HDBSCAN != nil {
		s.params.HDBSCAN = *cfg.HDBSCAN
	}
	if s.params.Metric == nil {
		s.params.Metric = pointcloud.DefaultMetric(cfg.Datasets.HasReference())
	}
	if err := s.validate(s.params); err != nil {
		return nil, err
	}
	store.SetViewConfig(pointcloud.ViewConfig{Metric: s.params.Metric, HasReference: s.datasets.HasReference()})
	return s, nil
}

// ID identifies the session in logs and events.
func (s *Session) ID() string { return s.id }

// Store returns the store the session writes into.
func (s *Session) Store() *pointcloud.Store { return s.store }

// Selection returns the controller for interaction events.
func (s *Session) Selection() *pointcloud.SelectionController { return s.selection }

// State returns the coordinator's lifecycle state.
func (s *Session) State() LifecycleState { return s.coord.State() }

// Parameters returns the current parameters.
func (s *Session) Parameters() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Datasets returns the current dataset context.
func (s *Session) Datasets() DatasetContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.datasets
}

// QueryParams returns the query the current parameters produce.
func (s *Session) QueryParams() embtypes.QueryParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked()
}

// Start issues the first fetch.
func (s *Session) Start(ctx context.Context) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(ctx)
}

// Refetch reissues the current query without resetting the data, so a
// failure keeps the last good point cloud.  Cached results of the embedding
// are dropped first so the query reaches the fetch service.
func (s *Session) Refetch(ctx context.Context) *Handle {
	if s.cache != nil {
		id := s.Parameters().EmbeddingID
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.Warn("fetch cache invalidation failed",
				logging.String("embedding_id", id),
				logging.Err(err))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queryLocked()
	s.issued = &q
	return s.coord.Request(ctx, q)
}

// Update applies fn to the current parameters under the session lock, so
// writers that own different fields never revert each other.  Several
// fields changed by one fn issue a single request.  It returns a nil handle
// when nothing changed.
func (s *Session) Update(ctx context.Context, fn func(p *Parameters)) (*Handle, error) {
	return s.update(ctx, fn)
}

func (s *Session) SetUMAPParameters(ctx context.Context, u pointcloud.UMAPParameters) (*Handle, error) {
	return s.update(ctx, func(cur *Parameters) { cur.UMAP = u })
}

func (s *Session) SetHDBSCANParameters(ctx context.Context, h pointcloud.HDBSCANParameters) (*Handle, error) {
	return s.update(ctx, func(cur *Parameters) { cur.HDBSCAN = h })
}

// SetMetric switches the metric.  A performance key without a short name
// is rejected before anything changes.
func (s *Session) SetMetric(ctx context.Context, def metric.Definition) (*Handle, error) {
	return s.update(ctx, func(cur *Parameters) { cur.Metric = def })
}

// SetSelectedTimestamp moves the end of the time window; nil falls back to
// the end of the primary dataset.
func (s *Session) SetSelectedTimestamp(ctx context.Context, ts *time.Time) (*Handle, error) {
	return s.update(ctx, func(cur *Parameters) {
		if ts == nil {
			cur.SelectedTimestamp = nil
			return
		}
		t := *ts
		cur.SelectedTimestamp = &t
	})
}

func (s *Session) SetEmbeddingID(ctx context.Context, id string) (*Handle, error) {
	return s.update(ctx, func(cur *Parameters) { cur.EmbeddingID = id })
}

// SetDatasetContext replaces the dataset bounds.  The view is updated for
// the reference flag; a fetch is issued only if the session has started and
// the query changes.
func (s *Session) SetDatasetContext(ctx context.Context, d DatasetContext) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets = d
	s.store.SetViewConfig(pointcloud.ViewConfig{Metric: s.params.Metric, HasReference: d.HasReference()})
	if s.issued == nil || reflect.DeepEqual(*s.issued, s.queryLocked()) {
		return nil
	}
	return s.issueLocked(ctx)
}

func (s *Session) update(ctx context.Context, fn func(cur *Parameters)) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.params
	fn(&next)
	if next.equal(s.params) {
		return nil, nil
	}
	if err := s.validate(next); err != nil {
		s.logger.Warn("rejected parameter change", logging.Err(err))
		return nil, err
	}

	metricChanged := next.Metric != s.params.Metric
	s.params = next
	if metricChanged {
		s.store.SetViewConfig(pointcloud.ViewConfig{Metric: next.Metric, HasReference: s.datasets.HasReference()})
	}
	return s.issueLocked(ctx), nil
}

func (s *Session) issueLocked(ctx context.Context) *Handle {
	q := s.queryLocked()
	s.issued = &q
	s.logger.Info("requesting point cloud",
		logging.String("embedding_id", q.EmbeddingID),
		logging.Time("window_start", q.TimeRange.Start),
		logging.Time("window_end", q.TimeRange.End))
	return s.coord.RequestFresh(ctx, q)
}

func (s *Session) queryLocked() embtypes.QueryParams {
	tr := DeriveTimeRange(s.datasets, s.params.SelectedTimestamp, s.window)
	return BuildQueryParams(s.params.EmbeddingID, tr, s.params.UMAP, s.params.HDBSCAN, s.params.Metric)
}

func (s *Session) validate(p Parameters) error {
	if p.EmbeddingID == "" {
		return errors.ErrInvalidParameters.WithDetail("embedding id is required")
	}
	if err := p.UMAP.Validate(); err != nil {
		return err
	}
	if err := p.HDBSCAN.Validate(); err != nil {
		return err
	}
	if p.Metric == nil {
		return errors.ErrInvalidParameters.WithDetail("metric is required")
	}
	if _, err := metric.ResolveLabel(p.Metric, s.shortNames); err != nil {
		return err
	}
	return nil
}
