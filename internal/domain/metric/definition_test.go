package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/embedscope/pkg/errors"
)

type kindCounter struct {
	seen []Kind
}

func (k *kindCounter) VisitDataQuality(DataQuality) (int, error) {
	k.seen = append(k.seen, KindDataQuality)
	return 1, nil
}

func (k *kindCounter) VisitDrift(Drift) (int, error) {
	k.seen = append(k.seen, KindDrift)
	return 2, nil
}

func (k *kindCounter) VisitPerformance(Performance) (int, error) {
	k.seen = append(k.seen, KindPerformance)
	return 3, nil
}

func TestVisit_DispatchesToMatchingVariant(t *testing.T) {
	v := &kindCounter{}

	n, err := Visit[int](DataQuality{DimensionName: "x"}, v)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = Visit[int](Drift{}, v)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = Visit[int](Performance{MetricKey: AccuracyScore}, v)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, []Kind{KindDataQuality, KindDrift, KindPerformance}, v.seen)
}

func TestDefinition_Kind(t *testing.T) {
	assert.Equal(t, KindDataQuality, DataQuality{}.Kind())
	assert.Equal(t, KindDrift, Drift{}.Kind())
	assert.Equal(t, KindPerformance, Performance{}.Kind())
}

func TestDefinition_Comparable(t *testing.T) {
	var a, b Definition = Performance{MetricKey: AccuracyScore}, Performance{MetricKey: AccuracyScore}
	assert.True(t, a == b)
	assert.False(t, a == Definition(Drift{}))
}

func TestSpec_RoundTrip(t *testing.T) {
	defs := []Definition{
		DataQuality{DimensionName: "age"},
		Drift{},
		Performance{MetricKey: F1Score},
	}
	for _, def := range defs {
		spec, err := ToSpec(def)
		require.NoError(t, err)
		back, err := spec.Definition()
		require.NoError(t, err)
		assert.Equal(t, def, back)
	}
}

func TestSpec_Definition_AcceptsSpellings(t *testing.T) {
	def, err := Spec{Type: "data_quality", Dimension: " age "}.Definition()
	require.NoError(t, err)
	assert.Equal(t, DataQuality{DimensionName: "age"}, def)

	def, err = Spec{Type: "DRIFT"}.Definition()
	require.NoError(t, err)
	assert.Equal(t, Drift{}, def)
}

func TestSpec_Definition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
	}{
		{"unknown type", Spec{Type: "latency"}},
		{"empty type", Spec{}},
		{"data quality without dimension", Spec{Type: KindDataQuality}},
		{"performance without key", Spec{Type: KindPerformance, Metric: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := tt.spec.Definition()
			require.Error(t, err)
			assert.Nil(t, def)
			assert.True(t, errors.IsValidation(err))
		})
	}
}
