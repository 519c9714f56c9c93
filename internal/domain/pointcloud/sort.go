package pointcloud

import (
	"slices"
	"strings"

	"github.com/turtacn/embedscope/pkg/errors"
)

// SortColumn is a cluster list ordering key.
type SortColumn string

const (
	SortBySize               SortColumn = "size"
	SortByDriftRatio         SortColumn = "driftRatio"
	SortByPrimaryMetricValue SortColumn = "primaryMetricValue"
)

// SortDir is the ordering direction.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// ClusterSort is the cluster list ordering.
type ClusterSort struct {
	Column SortColumn `json:"column"`
	Dir    SortDir    `json:"dir"`
}

// DefaultClusterSort orders by size, largest first.
func DefaultClusterSort() ClusterSort {
	return ClusterSort{Column: SortBySize, Dir: SortDesc}
}

// ParseClusterSort parses column and direction.  Empty values fall back to
// DefaultClusterSort.
func ParseClusterSort(column, dir string) (ClusterSort, error) {
	out := DefaultClusterSort()
	switch c := SortColumn(strings.TrimSpace(column)); c {
	case "":
	case SortBySize, SortByDriftRatio, SortByPrimaryMetricValue:
		out.Column = c
	default:
		return ClusterSort{}, errors.Newf(errors.ErrCodeValidation, "unknown sort column %q", column)
	}
	switch d := SortDir(strings.ToLower(strings.TrimSpace(dir))); d {
	case "":
	case SortAsc, SortDesc:
		out.Dir = d
	default:
		return ClusterSort{}, errors.Newf(errors.ErrCodeValidation, "unknown sort direction %q", dir)
	}
	return out, nil
}

// SortClusterViews returns a sorted copy of views.  Clusters missing the sort
// value go last in either direction; ties keep fetch order.
func SortClusterViews(views []ClusterView, by ClusterSort) []ClusterView {
	out := slices.Clone(views)
	slices.SortStableFunc(out, func(a, b ClusterView) int {
		av, aok := sortValue(a, by.Column)
		bv, bok := sortValue(b, by.Column)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		cmp := compareFloat(av, bv)
		if by.Dir == SortDesc {
			cmp = -cmp
		}
		return cmp
	})
	return out
}

func sortValue(v ClusterView, col SortColumn) (float64, bool) {
	switch col {
	case SortByDriftRatio:
		if v.DriftRatio == nil {
			return 0, false
		}
		return *v.DriftRatio, true
	case SortByPrimaryMetricValue:
		if v.PrimaryMetricValue == nil {
			return 0, false
		}
		return *v.PrimaryMetricValue, true
	default:
		return float64(v.NumPoints), true
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
