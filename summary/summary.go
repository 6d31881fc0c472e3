// Package summary rolls up a completed run's metrics registry and threshold
// violations into the structured artifact rendered at end-of-run.
package summary

import (
	"time"

	"github.com/nogcio/wrkr-go/metrics"
)

// HistogramSummary is a histogram series' point-in-time statistics.
type HistogramSummary struct {
	Count  uint64
	Min    float64
	Max    float64
	Mean   float64
	Stddev float64
	P50    float64
	P75    float64
	P90    float64
	P95    float64
	P99    float64
}

// MetricSummary is one (metric, tags) series as rendered for the artifact.
type MetricSummary struct {
	Name string
	Type string
	Tags map[string]string

	// Exactly one of these is populated, selected by Type.
	CounterValue *float64
	GaugeValue   *float64
	Histogram    *HistogramSummary
}

// ScenarioSummary is the per-scenario slice of a run's totals.
type ScenarioSummary struct {
	Name       string
	Iterations uint64
	Failures   uint64
}

// Summary is the end-of-run artifact: {scenarios[], metrics[],
// threshold_violations[]} per the runner's external interface contract.
type Summary struct {
	RunID             string
	Duration          time.Duration
	Scenarios         []ScenarioSummary
	Metrics           []MetricSummary
	ThresholdViolations []metrics.ThresholdViolation
	ChecksFailedTotal uint64
	ChecksFailedByName map[string]uint64
}

// Build renders reg's current series plus scenarios and violations into a
// Summary. elapsed is the run's total wall time, stored as
// Summary.Duration.
func Build(runID string, elapsed time.Duration, reg *metrics.Registry, scenarios []ScenarioSummary, violations []metrics.ThresholdViolation) Summary {
	s := Summary{
		RunID:               runID,
		Duration:            elapsed,
		Scenarios:           scenarios,
		ThresholdViolations: violations,
		ChecksFailedByName:  map[string]uint64{},
	}

	for _, series := range reg.Summarize() {
		ms := MetricSummary{
			Name: series.Metric.Name,
			Type: series.Metric.Type.String(),
			Tags: series.Tags,
		}
		switch sink := series.Sink.(type) {
		case *metrics.CounterSink:
			v := sink.Value
			ms.CounterValue = &v
		case *metrics.GaugeSink:
			v := sink.Value
			ms.GaugeValue = &v
		case *metrics.HistogramSink:
			ms.Histogram = &HistogramSummary{
				Count:  sink.Count(),
				Min:    sink.Min(),
				Max:    sink.Max(),
				Mean:   sink.Avg(),
				Stddev: sink.Stddev(),
				P50:    sink.P(0.50),
				P75:    sink.P(0.75),
				P90:    sink.P(0.90),
				P95:    sink.P(0.95),
				P99:    sink.P(0.99),
			}
		}
		s.Metrics = append(s.Metrics, ms)

		if series.Metric.Name == "checks" && series.Tags["status"] == "fail" {
			if sink, ok := series.Sink.(*metrics.CounterSink); ok {
				n := uint64(sink.Value)
				s.ChecksFailedTotal += n
				s.ChecksFailedByName[series.Tags["name"]] += n
			}
		}
	}

	return s
}
