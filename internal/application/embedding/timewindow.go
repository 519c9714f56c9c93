package embedding

import (
	"time"

	"github.com/turtacn/embedscope/internal/domain/pointcloud"
)

// DatasetBounds is the time span covered by a dataset.
type DatasetBounds struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DatasetContext describes the primary dataset and the optional reference
// dataset the point cloud is drawn from.
type DatasetContext struct {
	Primary   DatasetBounds  `json:"primary"`
	Reference *DatasetBounds `json:"reference,omitempty"`
}

// HasReference reports whether a reference dataset is present.
func (d DatasetContext) HasReference() bool { return d.Reference != nil }

// DeriveTimeRange returns the trailing window ending at selected, or at the
// primary dataset's end when nothing is selected.
func DeriveTimeRange(d DatasetContext, selected *time.Time, window time.Duration) pointcloud.TimeRange {
	end := d.Primary.End
	if selected != nil {
		end = *selected
	}
	return pointcloud.TrailingWindow(end, window)
}
