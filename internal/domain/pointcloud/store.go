package pointcloud

import (
	"sync"

	"github.com/turtacn/embedscope/internal/domain/metric"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
)

// Recorder receives store and selection activity for metrics.
type Recorder interface {
	RecordDataset(primary, reference, clusters int)
	RecordSelection(event string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordDataset(int, int, int) {}
func (NopRecorder) RecordSelection(string)      {}

// LabelFunc resolves the display label of a metric definition.
type LabelFunc func(def metric.Definition) (string, error)

// ViewConfig is the context the cluster views are derived from.
type ViewConfig struct {
	Metric       metric.Definition
	HasReference bool
}

// ClusterLookup finds a cluster of the current data set by id.
type ClusterLookup func(id string) (Cluster, bool)

// SelectionTransition computes the next selection from the current one.
// Returning an error aborts the transition.
type SelectionTransition func(cur SelectionState, lookup ClusterLookup) (SelectionState, error)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithShortNames resolves performance labels against names.
func WithShortNames(names metric.ShortNames) StoreOption {
	return func(s *Store) {
		s.labelFn = func(def metric.Definition) (string, error) {
			return metric.ResolveLabel(def, names)
		}
	}
}

// WithLabelFunc replaces the label resolver entirely.
func WithLabelFunc(fn LabelFunc) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.labelFn = fn
		}
	}
}

// WithRecorder reports dataset sizes to r.
func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithInitialView sets the view config before any data arrives.
func WithInitialView(v ViewConfig) StoreOption {
	return func(s *Store) { s.view = v }
}

// Store is the point cloud state container.  All writes go through its
// methods and are serialized by mu; every write that changes state bumps
// Version and notifies subscribers after mu is released.
type Store struct {
	mu        sync.RWMutex
	points    []Point
	clusters  []Cluster
	index     map[string]int
	selection SelectionState
	errMsg    *string
	view      ViewConfig
	label     string
	version   uint64

	labelFn  LabelFunc
	recorder Recorder
	logger   logging.Logger

	subMu   sync.Mutex
	subs    map[uint64]func(Snapshot)
	nextSub uint64
}

// NewStore creates an empty store.
func NewStore(logger logging.Logger, opts ...StoreOption) *Store {
	s := &Store{
		index:     map[string]int{},
		selection: EmptySelection(ColorModeDefault),
		recorder:  NopRecorder{},
		logger:    logging.OrNop(logger).Named("pointcloud"),
		subs:      map[uint64]func(Snapshot){},
	}
	WithShortNames(metric.DefaultShortNames())(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPointsAndClusters replaces both collections in one step and recomputes
// the memoized metric label.  Readers never observe one without the other.
func (s *Store) SetPointsAndClusters(points []Point, clusters []Cluster) {
	pts := append([]Point(nil), points...)
	cls := append([]Cluster(nil), clusters...)
	index := make(map[string]int, len(cls))
	for i, c := range cls {
		index[c.ID] = i
	}

	primary, reference := 0, 0
	for _, p := range pts {
		if p.DatasetRole == RoleReference {
			reference++
		} else {
			primary++
		}
	}

	s.mutate(func() bool {
		s.points = pts
		s.clusters = cls
		s.index = index
		s.label = s.resolveLabelLocked()
		s.resyncSelectionLocked()
		return true
	})
	s.recorder.RecordDataset(primary, reference, len(cls))
}

// Reset clears points, clusters, selection and highlight.  The color mode is
// kept since it follows the active tab, not the data.
func (s *Store) Reset() {
	s.mutate(func() bool {
		s.points = nil
		s.clusters = nil
		s.index = map[string]int{}
		s.selection = EmptySelection(s.selection.ColorMode)
		return true
	})
}

// ClearSelection empties the selection and highlight, keeping the data and
// the color mode.
func (s *Store) ClearSelection() {
	s.mutate(func() bool {
		next := EmptySelection(s.selection.ColorMode)
		if selectionEqual(s.selection, next) {
			return false
		}
		s.selection = next
		return true
	})
}

// SetViewConfig updates the metric and reference context.  The label is
// re-resolved only when the metric changes.
func (s *Store) SetViewConfig(v ViewConfig) {
	s.mutate(func() bool {
		if s.view == v {
			return false
		}
		metricChanged := s.view.Metric != v.Metric
		s.view = v
		if metricChanged {
			s.label = s.resolveLabelLocked()
		}
		return true
	})
}

// SetSelectedClusterID selects the cluster with id and replaces the point
// selection with its events.  An id not in the current clusters clears the
// cluster and the point selection.  nil clears the cluster only.
func (s *Store) SetSelectedClusterID(id *string) {
	s.mutate(func() bool {
		prev := s.selection
		switch {
		case id == nil:
			s.selection.SelectedClusterID = nil
		default:
			if i, ok := s.index[*id]; ok {
				cid := *id
				s.selection.SelectedClusterID = &cid
				s.selection.SelectedEventIDs = s.clusters[i].EventIDs.Clone()
			} else {
				s.logger.Warn("selected cluster not found, clearing selection", logging.String("cluster_id", *id))
				s.selection.SelectedClusterID = nil
				s.selection.SelectedEventIDs = EventIDSet{}
			}
		}
		return !selectionEqual(prev, s.selection)
	})
}

// SetSelectedEventIDs replaces the point selection.  A set that differs from
// the selected cluster's events deselects the cluster.
func (s *Store) SetSelectedEventIDs(ids EventIDSet) {
	s.mutate(func() bool {
		prev := s.selection
		s.selection.SelectedEventIDs = ids.Clone()
		s.resyncSelectionLocked()
		return !selectionEqual(prev, s.selection)
	})
}

// SetHighlightedClusterID sets or clears the hovered cluster.
func (s *Store) SetHighlightedClusterID(id *string) {
	s.mutate(func() bool {
		if equalPtr(s.selection.HighlightedClusterID, id) {
			return false
		}
		s.selection.HighlightedClusterID = clonePtr(id)
		return true
	})
}

// SetClusterColorMode sets the color mode.
func (s *Store) SetClusterColorMode(mode ColorMode) {
	s.mutate(func() bool {
		if s.selection.ColorMode == mode {
			return false
		}
		s.selection.ColorMode = mode
		return true
	})
}

// SetErrorMessage sets or clears (nil) the user-facing fetch error.  Setting
// the current value again is a no-op and does not notify.
func (s *Store) SetErrorMessage(msg *string) {
	s.mutate(func() bool {
		if equalPtr(s.errMsg, msg) {
			return false
		}
		s.errMsg = clonePtr(msg)
		return true
	})
}

// ApplySelection runs fn against the current selection and clusters as one
// atomic transition.  If fn fails the state is left unchanged.
func (s *Store) ApplySelection(fn SelectionTransition) (Snapshot, error) {
	var fnErr error
	snap := s.mutate(func() bool {
		next, err := fn(s.selection, s.lookupLocked)
		if err != nil {
			fnErr = err
			return false
		}
		prev := s.selection
		s.selection = next
		s.resyncSelectionLocked()
		return !selectionEqual(prev, s.selection)
	})
	return snap, fnErr
}

// Cluster returns the cluster with id from the current data set.
func (s *Store) Cluster(id string) (Cluster, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(id)
}

// Snapshot returns a consistent read-only view of the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change.
// Snapshots from concurrent writers may arrive out of order; compare Version
// to discard older ones.  The returned func unregisters fn.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) mutate(fn func() bool) Snapshot {
	s.mu.Lock()
	changed := fn()
	if changed {
		s.version++
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
	return snap
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Version:      s.version,
		Points:       s.points,
		Clusters:     s.clusters,
		Selection:    s.selection,
		ErrorMessage: clonePtr(s.errMsg),
		View:         s.view,
		MetricLabel:  s.label,
	}
}

func (s *Store) lookupLocked(id string) (Cluster, bool) {
	i, ok := s.index[id]
	if !ok {
		return Cluster{}, false
	}
	return s.clusters[i], true
}

func (s *Store) resolveLabelLocked() string {
	if s.view.Metric == nil {
		return ""
	}
	label, err := s.labelFn(s.view.Metric)
	if err != nil {
		s.logger.Error("failed to resolve metric label", logging.Err(err),
			logging.String("metric_kind", string(s.view.Metric.Kind())))
		return ""
	}
	return label
}

// resyncSelectionLocked restores the cluster/point selection invariant: a
// selected cluster that no longer exists, or whose events differ from the
// point selection, is deselected.
func (s *Store) resyncSelectionLocked() {
	if s.selection.SelectedEventIDs == nil {
		s.selection.SelectedEventIDs = EventIDSet{}
	}
	id := s.selection.SelectedClusterID
	if id == nil {
		return
	}
	c, ok := s.lookupLocked(*id)
	if !ok || !c.EventIDs.Equal(s.selection.SelectedEventIDs) {
		s.selection.SelectedClusterID = nil
	}
}

func selectionEqual(a, b SelectionState) bool {
	return equalPtr(a.SelectedClusterID, b.SelectedClusterID) &&
		equalPtr(a.HighlightedClusterID, b.HighlightedClusterID) &&
		a.ColorMode == b.ColorMode &&
		a.SelectedEventIDs.Equal(b.SelectedEventIDs)
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
