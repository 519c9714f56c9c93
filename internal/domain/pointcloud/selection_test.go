package pointcloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/embedscope/pkg/errors"
)

func TestOnClusterClick_SelectThenToggleOff(t *testing.T) {
	c1 := cluster("c1", "e1", "e2")
	s := EmptySelection(ColorModeDefault)

	s = OnClusterClick(s, c1)
	require.NotNil(t, s.SelectedClusterID)
	assert.Equal(t, "c1", *s.SelectedClusterID)
	assert.True(t, s.SelectedEventIDs.Equal(NewEventIDSet("e1", "e2")))

	s = OnClusterClick(s, c1)
	assert.Nil(t, s.SelectedClusterID)
	assert.Equal(t, 0, s.SelectedEventIDs.Len())
}

func TestOnClusterClick_ReplacesNotUnion(t *testing.T) {
	s := OnClusterClick(EmptySelection(ColorModeDefault), cluster("c1", "e1", "e2"))
	s = OnClusterClick(s, cluster("c2", "e3"))

	assert.Equal(t, "c2", *s.SelectedClusterID)
	assert.Equal(t, []string{"e3"}, s.SelectedEventIDs.Sorted())
}

func TestOnClusterClick_DoesNotAliasClusterSet(t *testing.T) {
	c1 := cluster("c1", "e1")
	s := OnClusterClick(EmptySelection(ColorModeDefault), c1)
	s.SelectedEventIDs["e99"] = struct{}{}
	assert.False(t, c1.EventIDs.Contains("e99"))
}

func TestOnClusterHover(t *testing.T) {
	s := OnClusterClick(EmptySelection(ColorModeDefault), cluster("c1", "e1"))

	s = OnClusterHoverEnter(s, cluster("c2", "e2"))
	require.NotNil(t, s.HighlightedClusterID)
	assert.Equal(t, "c2", *s.HighlightedClusterID)
	assert.Equal(t, "c1", *s.SelectedClusterID, "hover is independent of selection")

	s = OnClusterHoverLeave(s)
	assert.Nil(t, s.HighlightedClusterID)
	assert.Equal(t, "c1", *s.SelectedClusterID)
}

func TestOnConfigTabActivated(t *testing.T) {
	s := EmptySelection(ColorModeDefault)
	assert.Equal(t, ColorModeHighlight, OnConfigTabActivated(s, true).ColorMode)
	assert.Equal(t, ColorModeDefault, OnConfigTabActivated(OnConfigTabActivated(s, true), false).ColorMode)
}

func newLoadedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(nil)
	points, err := MergeDatasets([]PointInput{
		p3("p1", "e1", 0, 0, 0), p3("p2", "e2", 1, 1, 1), p3("p3", "e3", 2, 2, 2),
	}, nil, DisplayMode3D)
	require.NoError(t, err)
	s.SetPointsAndClusters(points, []Cluster{cluster("c1", "e1", "e2"), cluster("c2", "e3")})
	return s
}

type recordingRecorder struct {
	NopRecorder
	events []string
}

func (r *recordingRecorder) RecordSelection(event string) { r.events = append(r.events, event) }

func TestSelectionController_ClusterClickScenario(t *testing.T) {
	store := newLoadedStore(t)
	rec := &recordingRecorder{}
	ctl := NewSelectionController(store, rec)

	snap, err := ctl.ClusterClick("c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", *snap.Selection.SelectedClusterID)
	assert.Equal(t, []string{"e1", "e2"}, snap.Selection.SelectedEventIDs.Sorted())

	snap, err = ctl.ClusterClick("c1")
	require.NoError(t, err)
	assert.Nil(t, snap.Selection.SelectedClusterID)
	assert.Empty(t, snap.Selection.SelectedEventIDs)

	assert.Equal(t, []string{EventClusterClick, EventClusterClick}, rec.events)
}

func TestSelectionController_UnknownCluster(t *testing.T) {
	store := newLoadedStore(t)
	ctl := NewSelectionController(store, nil)
	before := store.Snapshot()

	_, err := ctl.ClusterClick("nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Equal(t, before.Version, store.Snapshot().Version)

	_, err = ctl.ClusterHoverEnter("nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestSelectionController_HoverAndTab(t *testing.T) {
	store := newLoadedStore(t)
	ctl := NewSelectionController(store, nil)

	snap, err := ctl.ClusterHoverEnter("c2")
	require.NoError(t, err)
	assert.Equal(t, "c2", *snap.Selection.HighlightedClusterID)

	snap = ctl.ClusterHoverLeave()
	assert.Nil(t, snap.Selection.HighlightedClusterID)

	snap = ctl.ConfigTabActivated(true)
	assert.Equal(t, ColorModeHighlight, snap.Selection.ColorMode)
}

func TestSelectionInvariant_HoldsAfterEveryClick(t *testing.T) {
	store := newLoadedStore(t)
	ctl := NewSelectionController(store, nil)

	for _, id := range []string{"c1", "c2", "c2", "c1", "c1", "c2"} {
		snap, err := ctl.ClusterClick(id)
		require.NoError(t, err)
		sel := snap.Selection
		if sel.SelectedClusterID == nil {
			assert.Equal(t, 0, sel.SelectedEventIDs.Len())
			continue
		}
		c, ok := store.Cluster(*sel.SelectedClusterID)
		require.True(t, ok)
		assert.True(t, c.EventIDs.Equal(sel.SelectedEventIDs))
	}
}
