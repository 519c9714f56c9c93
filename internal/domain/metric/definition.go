// Package metric defines the metric that drives cluster coloring and labeling
// in the point cloud.  A Definition is a closed sum type with exactly three
// variants: DataQuality, Drift and Performance.  Code that needs to branch on
// the variant implements Visitor and dispatches through Visit, so adding a new
// variant breaks compilation of every visitor until it is handled.
package metric

import (
	"strings"

	"github.com/turtacn/embedscope/pkg/errors"
)

// Kind is the wire tag of a Definition variant.
type Kind string

const (
	KindDataQuality Kind = "dataQuality"
	KindDrift       Kind = "drift"
	KindPerformance Kind = "performance"
)

// PerformanceMetricKey names a model performance score computed per cluster.
type PerformanceMetricKey string

const (
	AccuracyScore  PerformanceMetricKey = "accuracyScore"
	F1Score        PerformanceMetricKey = "f1Score"
	PrecisionScore PerformanceMetricKey = "precisionScore"
	RecallScore    PerformanceMetricKey = "recallScore"
)

// Definition is implemented only by DataQuality, Drift and Performance.
type Definition interface {
	Kind() Kind
	accept(d dispatcher)
}

// DataQuality colors clusters by the mean of one dimension (column).
type DataQuality struct {
	DimensionName string
}

// Drift colors clusters by their primary/reference drift ratio.
type Drift struct{}

// Performance colors clusters by a named model performance score.
type Performance struct {
	MetricKey PerformanceMetricKey
}

func (DataQuality) Kind() Kind { return KindDataQuality }
func (Drift) Kind() Kind       { return KindDrift }
func (Performance) Kind() Kind { return KindPerformance }

func (m DataQuality) accept(d dispatcher) { d.dataQuality(m) }
func (m Drift) accept(d dispatcher)       { d.drift(m) }
func (m Performance) accept(d dispatcher) { d.performance(m) }

// Visitor handles every Definition variant and produces a T.
type Visitor[T any] interface {
	VisitDataQuality(m DataQuality) (T, error)
	VisitDrift(m Drift) (T, error)
	VisitPerformance(m Performance) (T, error)
}

type dispatcher interface {
	dataQuality(m DataQuality)
	drift(m Drift)
	performance(m Performance)
}

type dispatch[T any] struct {
	v   Visitor[T]
	out T
	err error
}

func (d *dispatch[T]) dataQuality(m DataQuality) { d.out, d.err = d.v.VisitDataQuality(m) }
func (d *dispatch[T]) drift(m Drift)             { d.out, d.err = d.v.VisitDrift(m) }
func (d *dispatch[T]) performance(m Performance) { d.out, d.err = d.v.VisitPerformance(m) }

// Visit dispatches def to the matching method of v.  A nil def is a
// validation error.
func Visit[T any](def Definition, v Visitor[T]) (T, error) {
	if def == nil {
		var zero T
		return zero, errors.New(errors.ErrCodeValidation, "metric definition is nil")
	}
	d := &dispatch[T]{v: v}
	def.accept(d)
	return d.out, d.err
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire form
// ─────────────────────────────────────────────────────────────────────────────

// Spec is the flat, serialisable form of a Definition used by configuration
// files and the HTTP API.
type Spec struct {
	Type      Kind   `json:"type" mapstructure:"type"`
	Dimension string `json:"dimension,omitempty" mapstructure:"dimension"`
	Metric    string `json:"metric,omitempty" mapstructure:"metric"`
}

type specEncoder struct{}

func (specEncoder) VisitDataQuality(m DataQuality) (Spec, error) {
	return Spec{Type: KindDataQuality, Dimension: m.DimensionName}, nil
}

func (specEncoder) VisitDrift(Drift) (Spec, error) {
	return Spec{Type: KindDrift}, nil
}

func (specEncoder) VisitPerformance(m Performance) (Spec, error) {
	return Spec{Type: KindPerformance, Metric: string(m.MetricKey)}, nil
}

// ToSpec converts def to its wire form.
func ToSpec(def Definition) (Spec, error) {
	return Visit[Spec](def, specEncoder{})
}

// Definition parses s.  The type tag is matched case-insensitively; the
// variant's parameter must be present.
func (s Spec) Definition() (Definition, error) {
	switch strings.ToLower(strings.TrimSpace(string(s.Type))) {
	case "dataquality", "data_quality":
		dim := strings.TrimSpace(s.Dimension)
		if dim == "" {
			return nil, errors.New(errors.ErrCodeValidation, "dataQuality metric requires a dimension")
		}
		return DataQuality{DimensionName: dim}, nil
	case "drift":
		return Drift{}, nil
	case "performance":
		key := strings.TrimSpace(s.Metric)
		if key == "" {
			return nil, errors.New(errors.ErrCodeValidation, "performance metric requires a metric key")
		}
		return Performance{MetricKey: PerformanceMetricKey(key)}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeValidation, "unknown metric type %q", s.Type)
	}
}
