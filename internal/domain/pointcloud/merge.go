package pointcloud

import (
	"fmt"

	"github.com/turtacn/embedscope/pkg/errors"
)

// MergeDatasets concatenates primary then reference points, tags each with its
// dataset role and derives its position.  Every point must report the arity
// of mode; the first mismatch fails the whole merge with
// ErrCodeMalformedCoordinate and no partial result is returned.
func MergeDatasets(primary, reference []PointInput, mode DisplayMode) ([]Point, error) {
	want := mode.Dimensions()
	out := make([]Point, 0, len(primary)+len(reference))

	appendRole := func(inputs []PointInput, role DatasetRole) error {
		for _, in := range inputs {
			pos, err := position(in.Coordinates, want)
			if err != nil {
				return err.WithDetail(fmt.Sprintf("point %s (%s): expected %s, got %q",
					in.ID, role, mode, in.Coordinates.Kind))
			}
			out = append(out, Point{
				ID:            in.ID,
				EventID:       in.EventID,
				Position:      pos,
				DatasetRole:   role,
				PointMetadata: in.Metadata,
			})
		}
		return nil
	}

	if err := appendRole(primary, RolePrimary); err != nil {
		return nil, err
	}
	if err := appendRole(reference, RoleReference); err != nil {
		return nil, err
	}
	return out, nil
}

func position(c Coordinates, want int) ([]float64, *errors.AppError) {
	if c.Dimensions() != want {
		return nil, errors.ErrMalformedCoordinate
	}
	if want == 2 {
		return []float64{c.X, c.Y}, nil
	}
	return []float64{c.X, c.Y, c.Z}, nil
}
