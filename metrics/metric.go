package metrics

import "fmt"

// MetricType is the kind of aggregation a metric's series use. It is fixed
// the first time a name is registered and never changes afterwards.
type MetricType int

const (
	// Counter is a monotonically increasing total.
	Counter MetricType = iota
	// Gauge is a last-write-wins instantaneous value.
	Gauge
	// Histogram records a distribution of observations.
	Histogram
)

func (t MetricType) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	default:
		return "[INVALID]"
	}
}

// ValueType further describes what a series' values represent, so
// downstream formatting (e.g. rendering microseconds as a duration) can
// special-case it without a name-based heuristic.
type ValueType int

const (
	// Default values are rendered as-is.
	Default ValueType = iota
	// Time values are durations, in the unit the series records them in
	// (microseconds for iteration_duration_seconds, milliseconds for
	// request_duration_ms).
	Time
)

func (t ValueType) String() string {
	switch t {
	case Default:
		return "default"
	case Time:
		return "time"
	default:
		return "[INVALID]"
	}
}

// Metric is the registered identity of a named series: its kind and value
// type are fixed at registration and shared by every tagged sub-series.
type Metric struct {
	Name     string
	Type     MetricType
	Contains ValueType

	id int
}

// sameAs reports whether re-registering this metric with kind/contains
// would be a no-op rather than a conflict.
func (m *Metric) sameAs(kind MetricType, contains ValueType) error {
	if m.Type != kind {
		return fmt.Errorf("metric %q already registered as %s, cannot re-register as %s", m.Name, m.Type, kind)
	}
	if m.Contains != contains {
		return fmt.Errorf("metric %q already registered with value type %s, cannot re-register as %s", m.Name, m.Contains, contains)
	}
	return nil
}
