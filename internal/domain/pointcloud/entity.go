// Package pointcloud holds the client-resident state of an embedding point
// cloud: the merged points and clusters of the latest successful fetch, the
// user's selection and highlight, and the color mode.  Store is the single
// writer of that state; everything else reads Snapshots.
package pointcloud

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/embedscope/pkg/errors"
)

// DatasetRole tells which dataset a point was fetched from.
type DatasetRole string

const (
	RolePrimary   DatasetRole = "primary"
	RoleReference DatasetRole = "reference"
)

// DisplayMode fixes the coordinate arity of the whole point set.
type DisplayMode string

const (
	DisplayMode2D DisplayMode = "2d"
	DisplayMode3D DisplayMode = "3d"
)

// Dimensions returns 2 or 3.
func (m DisplayMode) Dimensions() int {
	if m == DisplayMode2D {
		return 2
	}
	return 3
}

// ParseDisplayMode accepts "2d"/"3d" in any case.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch DisplayMode(strings.ToLower(strings.TrimSpace(s))) {
	case DisplayMode2D:
		return DisplayMode2D, nil
	case DisplayMode3D:
		return DisplayMode3D, nil
	default:
		return "", errors.ErrInvalidParameters.WithDetail(fmt.Sprintf("display mode %q", s))
	}
}

// ColorMode selects how clusters are colored.
type ColorMode string

const (
	ColorModeDefault   ColorMode = "default"
	ColorModeHighlight ColorMode = "highlight"
)

// ─────────────────────────────────────────────────────────────────────────────
// Points
// ─────────────────────────────────────────────────────────────────────────────

// PointMetadata is the optional per-event information carried by a point.
type PointMetadata struct {
	LinkToData      *string  `json:"link_to_data,omitempty"`
	RawData         *string  `json:"raw_data,omitempty"`
	PredictionID    *string  `json:"prediction_id,omitempty"`
	PredictionLabel *string  `json:"prediction_label,omitempty"`
	ActualLabel     *string  `json:"actual_label,omitempty"`
	PredictionScore *float64 `json:"prediction_score,omitempty"`
	ActualScore     *float64 `json:"actual_score,omitempty"`
}

// Point is one projected event.  Points are built once by MergeDatasets and
// never modified afterwards; Position must be treated as read-only.
type Point struct {
	ID          string      `json:"id"`
	EventID     string      `json:"event_id"`
	Position    []float64   `json:"position"`
	DatasetRole DatasetRole `json:"dataset_role"`
	PointMetadata
}

// CoordinateKind is the dimensionality tag reported by the fetch service.
type CoordinateKind string

const (
	Point2D CoordinateKind = "Point2D"
	Point3D CoordinateKind = "Point3D"
)

// Coordinates is a projected position as reported by the fetch service.  Z is
// meaningful only for Point3D.
type Coordinates struct {
	Kind CoordinateKind
	X    float64
	Y    float64
	Z    float64
}

// Dimensions returns the arity implied by Kind, or 0 for an unknown tag.
func (c Coordinates) Dimensions() int {
	switch c.Kind {
	case Point2D:
		return 2
	case Point3D:
		return 3
	default:
		return 0
	}
}

// PointInput is a point as it arrives from the fetch service, before the
// dataset role is assigned and the position is derived.
type PointInput struct {
	ID          string
	EventID     string
	Coordinates Coordinates
	Metadata    PointMetadata
}

// ─────────────────────────────────────────────────────────────────────────────
// Clusters
// ─────────────────────────────────────────────────────────────────────────────

// EventIDSet is an immutable-by-convention set of event ids.  Nothing in this
// package mutates a set after construction; copy with Clone before changing it.
type EventIDSet map[string]struct{}

// NewEventIDSet builds a set from ids.  Duplicates collapse.
func NewEventIDSet(ids ...string) EventIDSet {
	s := make(EventIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s EventIDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s EventIDSet) Len() int { return len(s) }

// Equal reports whether s and o hold the same ids.  A nil set equals an empty one.
func (s EventIDSet) Equal(o EventIDSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if _, ok := o[id]; !ok {
			return false
		}
	}
	return true
}

func (s EventIDSet) Clone() EventIDSet {
	out := make(EventIDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the ids in ascending order.
func (s EventIDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s EventIDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *EventIDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewEventIDSet(ids...)
	return nil
}

// Cluster is a group of events found by HDBSCAN.  The optional values are
// present only when the corresponding metric was requested.
type Cluster struct {
	ID                   string     `json:"id"`
	EventIDs             EventIDSet `json:"event_ids"`
	DriftRatio           *float64   `json:"drift_ratio,omitempty"`
	PrimaryMetricValue   *float64   `json:"primary_metric_value,omitempty"`
	ReferenceMetricValue *float64   `json:"reference_metric_value,omitempty"`
}

// Size returns the number of events in the cluster.
func (c Cluster) Size() int { return c.EventIDs.Len() }

// ValidateClusterReferences checks that every cluster is non-empty and that
// every cluster event id belongs to some point.
func ValidateClusterReferences(points []Point, clusters []Cluster) error {
	known := make(map[string]struct{}, len(points))
	for _, p := range points {
		known[p.EventID] = struct{}{}
	}
	for _, c := range clusters {
		if c.EventIDs.Len() == 0 {
			return errors.ErrFetchFailed.WithDetail(fmt.Sprintf("cluster %s has no events", c.ID))
		}
		for id := range c.EventIDs {
			if _, ok := known[id]; !ok {
				return errors.ErrFetchFailed.WithDetail(
					fmt.Sprintf("cluster %s references unknown event %s", c.ID, id))
			}
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Query inputs
// ─────────────────────────────────────────────────────────────────────────────

// DefaultWindow is the length of the trailing time window.
const DefaultWindow = 48 * time.Hour

// TimeRange is a closed interval with Start <= End.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange validates start <= end.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.After(end) {
		return TimeRange{}, errors.ErrInvalidParameters.WithDetail(
			fmt.Sprintf("time range start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}
	return TimeRange{Start: start, End: end}, nil
}

// TrailingWindow returns [end-window, end].  A non-positive window yields the
// default two days.
func TrailingWindow(end time.Time, window time.Duration) TimeRange {
	if window <= 0 {
		window = DefaultWindow
	}
	return TimeRange{Start: end.Add(-window), End: end}
}

// UMAPParameters tune the remote dimensionality reduction.
type UMAPParameters struct {
	MinDist    float64 `json:"min_dist"`
	NNeighbors int     `json:"n_neighbors"`
	NSamples   int     `json:"n_samples"`
}

func (p UMAPParameters) Validate() error {
	if p.MinDist < 0 || p.MinDist > 1 {
		return errors.ErrInvalidParameters.WithDetail(fmt.Sprintf("min_dist %v not in [0,1]", p.MinDist))
	}
	if p.NNeighbors <= 0 {
		return errors.ErrInvalidParameters.WithDetail(fmt.Sprintf("n_neighbors %d must be positive", p.NNeighbors))
	}
	if p.NSamples <= 0 {
		return errors.ErrInvalidParameters.WithDetail(fmt.Sprintf("n_samples %d must be positive", p.NSamples))
	}
	return nil
}

// HDBSCANParameters tune the remote clustering.
type HDBSCANParameters struct {
	MinClusterSize          int     `json:"min_cluster_size"`
	ClusterMinSamples       int     `json:"cluster_min_samples"`
	ClusterSelectionEpsilon float64 `json:"cluster_selection_epsilon"`
}

func (p HDBSCANParameters) Validate() error {
	if p.MinClusterSize <= 0 {
		return errors.ErrInvalidParameters.WithDetail(fmt.Sprintf("min_cluster_size %d must be positive", p.MinClusterSize))
	}
	if p.ClusterMinSamples <= 0 {
		return errors.ErrInvalidParameters.WithDetail(fmt.Sprintf("cluster_min_samples %d must be positive", p.ClusterMinSamples))
	}
	if p.ClusterSelectionEpsilon < 0 {
		return errors.ErrInvalidParameters.WithDetail(
			fmt.Sprintf("cluster_selection_epsilon %v must be non-negative", p.ClusterSelectionEpsilon))
	}
	return nil
}
