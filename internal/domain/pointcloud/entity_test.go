package pointcloud

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/embedscope/pkg/errors"
)

func TestParseDisplayMode(t *testing.T) {
	m, err := ParseDisplayMode("2D")
	require.NoError(t, err)
	assert.Equal(t, DisplayMode2D, m)
	assert.Equal(t, 2, m.Dimensions())
	assert.Equal(t, 3, DisplayMode3D.Dimensions())

	_, err = ParseDisplayMode("4d")
	assert.ErrorIs(t, err, errors.ErrInvalidParameters)
}

func TestEventIDSet_JSON(t *testing.T) {
	data, err := json.Marshal(NewEventIDSet("e2", "e1", "e2"))
	require.NoError(t, err)
	assert.JSONEq(t, `["e1","e2"]`, string(data))

	var back EventIDSet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(NewEventIDSet("e1", "e2")))
}

func TestEventIDSet_EqualNilAndEmpty(t *testing.T) {
	var nilSet EventIDSet
	assert.True(t, nilSet.Equal(EventIDSet{}))
	assert.False(t, NewEventIDSet("a").Equal(NewEventIDSet("b")))
}

func TestTimeRange(t *testing.T) {
	end := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	r := TrailingWindow(end, 0)
	assert.Equal(t, end.Add(-48*time.Hour), r.Start)
	assert.Equal(t, end, r.End)

	_, err := NewTimeRange(end, end.Add(-time.Second))
	assert.ErrorIs(t, err, errors.ErrInvalidParameters)

	_, err = NewTimeRange(end, end)
	assert.NoError(t, err)
}

func TestUMAPParameters_Validate(t *testing.T) {
	assert.NoError(t, DefaultUMAPParameters().Validate())
	assert.NoError(t, UMAPParameters{MinDist: 1, NNeighbors: 1, NSamples: 1}.Validate())
	assert.Error(t, UMAPParameters{MinDist: 1.5, NNeighbors: 1, NSamples: 1}.Validate())
	assert.Error(t, UMAPParameters{MinDist: 0.1, NNeighbors: 0, NSamples: 1}.Validate())
	assert.Error(t, UMAPParameters{MinDist: 0.1, NNeighbors: 1, NSamples: -1}.Validate())
}

func TestHDBSCANParameters_Validate(t *testing.T) {
	assert.NoError(t, DefaultHDBSCANParameters().Validate())
	assert.Error(t, HDBSCANParameters{MinClusterSize: 0, ClusterMinSamples: 1}.Validate())
	assert.Error(t, HDBSCANParameters{MinClusterSize: 1, ClusterMinSamples: 0}.Validate())
	assert.Error(t, HDBSCANParameters{MinClusterSize: 1, ClusterMinSamples: 1, ClusterSelectionEpsilon: -0.1}.Validate())
}

func TestDefaultMetric(t *testing.T) {
	assert.Equal(t, "drift", string(DefaultMetric(true).Kind()))
	assert.Equal(t, "performance", string(DefaultMetric(false).Kind()))
}
