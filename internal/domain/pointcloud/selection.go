package pointcloud

import (
	"github.com/turtacn/embedscope/pkg/errors"
)

// SelectionState is the user's selection over the current point cloud.
// When SelectedClusterID is set, SelectedEventIDs equals that cluster's
// EventIDs.
type SelectionState struct {
	SelectedClusterID    *string    `json:"selected_cluster_id"`
	SelectedEventIDs     EventIDSet `json:"selected_event_ids"`
	HighlightedClusterID *string    `json:"highlighted_cluster_id"`
	ColorMode            ColorMode  `json:"color_mode"`
}

// EmptySelection returns a state with nothing selected or highlighted and the
// given color mode.
func EmptySelection(mode ColorMode) SelectionState {
	if mode == "" {
		mode = ColorModeDefault
	}
	return SelectionState{SelectedEventIDs: EventIDSet{}, ColorMode: mode}
}

// IsClusterSelected reports whether id is the selected cluster.
func (s SelectionState) IsClusterSelected(id string) bool {
	return s.SelectedClusterID != nil && *s.SelectedClusterID == id
}

// OnClusterClick toggles the cluster selection.  Clicking the selected cluster
// clears the cluster and the point selection; clicking any other cluster
// replaces the point selection with its events.
func OnClusterClick(s SelectionState, c Cluster) SelectionState {
	if s.IsClusterSelected(c.ID) {
		s.SelectedClusterID = nil
		s.SelectedEventIDs = EventIDSet{}
		return s
	}
	id := c.ID
	s.SelectedClusterID = &id
	s.SelectedEventIDs = c.EventIDs.Clone()
	return s
}

// OnClusterHoverEnter highlights c.
func OnClusterHoverEnter(s SelectionState, c Cluster) SelectionState {
	id := c.ID
	s.HighlightedClusterID = &id
	return s
}

// OnClusterHoverLeave clears the highlight.
func OnClusterHoverLeave(s SelectionState) SelectionState {
	s.HighlightedClusterID = nil
	return s
}

// OnConfigTabActivated switches to highlight coloring while the configuration
// tab is active.
func OnConfigTabActivated(s SelectionState, isConfigTab bool) SelectionState {
	if isConfigTab {
		s.ColorMode = ColorModeHighlight
	} else {
		s.ColorMode = ColorModeDefault
	}
	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// SelectionController
// ─────────────────────────────────────────────────────────────────────────────

// Selection event names, used as metric labels and in published events.
const (
	EventClusterClick      = "cluster_click"
	EventClusterHoverEnter = "cluster_hover_enter"
	EventClusterHoverLeave = "cluster_hover_leave"
	EventConfigTab         = "config_tab"
)

// SelectionController turns interaction events into store writes.  Each event
// is applied as one atomic transition against the store's current clusters.
type SelectionController struct {
	store    *Store
	recorder Recorder
}

// NewSelectionController binds a controller to store.
func NewSelectionController(store *Store, recorder Recorder) *SelectionController {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &SelectionController{store: store, recorder: recorder}
}

// ClusterClick toggles selection of clusterID.  An id that is not in the
// current cluster list is a not-found error and leaves the state unchanged.
func (c *SelectionController) ClusterClick(clusterID string) (Snapshot, error) {
	return c.apply(EventClusterClick, func(s SelectionState, lookup ClusterLookup) (SelectionState, error) {
		cl, ok := lookup(clusterID)
		if !ok {
			return s, errors.NotFound("cluster not found").WithDetail("cluster_id=" + clusterID)
		}
		return OnClusterClick(s, cl), nil
	})
}

// ClusterHoverEnter highlights clusterID.
func (c *SelectionController) ClusterHoverEnter(clusterID string) (Snapshot, error) {
	return c.apply(EventClusterHoverEnter, func(s SelectionState, lookup ClusterLookup) (SelectionState, error) {
		cl, ok := lookup(clusterID)
		if !ok {
			return s, errors.NotFound("cluster not found").WithDetail("cluster_id=" + clusterID)
		}
		return OnClusterHoverEnter(s, cl), nil
	})
}

// ClusterHoverLeave clears any highlight.
func (c *SelectionController) ClusterHoverLeave() Snapshot {
	snap, _ := c.apply(EventClusterHoverLeave, func(s SelectionState, _ ClusterLookup) (SelectionState, error) {
		return OnClusterHoverLeave(s), nil
	})
	return snap
}

// ConfigTabActivated sets the color mode from the active tab.
func (c *SelectionController) ConfigTabActivated(isConfigTab bool) Snapshot {
	snap, _ := c.apply(EventConfigTab, func(s SelectionState, _ ClusterLookup) (SelectionState, error) {
		return OnConfigTabActivated(s, isConfigTab), nil
	})
	return snap
}

func (c *SelectionController) apply(event string, fn SelectionTransition) (Snapshot, error) {
	snap, err := c.store.ApplySelection(fn)
	if err == nil {
		c.recorder.RecordSelection(event)
	}
	return snap, err
}
