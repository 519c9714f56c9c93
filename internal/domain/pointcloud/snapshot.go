package pointcloud

import "github.com/turtacn/embedscope/internal/domain/metric"

// Snapshot is an immutable view of the store at one Version.  Slices and sets
// are shared with the store and must not be modified.
type Snapshot struct {
	Version      uint64
	Points       []Point
	Clusters     []Cluster
	Selection    SelectionState
	ErrorMessage *string
	View         ViewConfig
	// MetricLabel is the memoized label of View.Metric, empty when it could
	// not be resolved.
	MetricLabel string
}

// ClusterView is a cluster decorated for display.
type ClusterView struct {
	Cluster
	NumPoints     int    `json:"num_points"`
	IsSelected    bool   `json:"is_selected"`
	IsHighlighted bool   `json:"is_highlighted"`
	MetricName    string `json:"metric_name"`
	HideReference bool   `json:"hide_reference"`
}

// HideReference reports whether reference values are meaningless for the
// current view: there is no reference dataset, or the metric is drift which
// already compares both datasets.
func (s Snapshot) HideReference() bool {
	if !s.View.HasReference {
		return true
	}
	_, isDrift := s.View.Metric.(metric.Drift)
	return isDrift
}

// ClusterViews decorates every cluster in fetch order.
func (s Snapshot) ClusterViews() []ClusterView {
	hide := s.HideReference()
	views := make([]ClusterView, 0, len(s.Clusters))
	for _, c := range s.Clusters {
		views = append(views, ClusterView{
			Cluster:       c,
			NumPoints:     c.Size(),
			IsSelected:    s.Selection.IsClusterSelected(c.ID),
			IsHighlighted: s.Selection.HighlightedClusterID != nil && *s.Selection.HighlightedClusterID == c.ID,
			MetricName:    s.MetricLabel,
			HideReference: hide,
		})
	}
	return views
}

// CountByRole returns the number of primary and reference points.
func (s Snapshot) CountByRole() (primary, reference int) {
	for _, p := range s.Points {
		if p.DatasetRole == RoleReference {
			reference++
		} else {
			primary++
		}
	}
	return primary, reference
}
