package metric

import "github.com/turtacn/embedscope/pkg/errors"

// ShortNames maps performance metric keys to their display abbreviation.
type ShortNames map[PerformanceMetricKey]string

// DefaultShortNames returns the built-in registry.
func DefaultShortNames() ShortNames {
	return ShortNames{
		AccuracyScore:  "acc",
		F1Score:        "f1",
		PrecisionScore: "precision",
		RecallScore:    "recall",
	}
}

// Merge returns a copy of n overlaid with extra.  Empty names in extra are
// ignored.
func (n ShortNames) Merge(extra map[string]string) ShortNames {
	out := make(ShortNames, len(n)+len(extra))
	for k, v := range n {
		out[k] = v
	}
	for k, v := range extra {
		if v != "" {
			out[PerformanceMetricKey(k)] = v
		}
	}
	return out
}

type labelResolver struct {
	shortNames ShortNames
}

func (labelResolver) VisitDataQuality(m DataQuality) (string, error) {
	return m.DimensionName + " avg", nil
}

func (labelResolver) VisitDrift(Drift) (string, error) {
	return "cluster drift", nil
}

func (r labelResolver) VisitPerformance(m Performance) (string, error) {
	name, ok := r.shortNames[m.MetricKey]
	if !ok {
		return "", errors.ErrUnknownMetricKey.WithDetail("metric_key=" + string(m.MetricKey))
	}
	return name, nil
}

// ResolveLabel returns the display label for def.  A performance key missing
// from shortNames fails with ErrCodeUnknownMetricKey.
func ResolveLabel(def Definition, shortNames ShortNames) (string, error) {
	return Visit[string](def, labelResolver{shortNames: shortNames})
}
