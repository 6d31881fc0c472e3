package metrics

import (
	"fmt"
	"time"
)

// Threshold pairs a raw expression string with its parsed form.
type Threshold struct {
	Source string
	expr   *thresholdExpression
}

// ThresholdSet is every threshold declared against a single metric name.
type ThresholdSet struct {
	Metric     string
	Thresholds []Threshold
}

// NewThresholdSet parses every expression in exprs against metric.
func NewThresholdSet(metric string, exprs []string) (*ThresholdSet, error) {
	ts := &ThresholdSet{Metric: metric}
	for _, raw := range exprs {
		parsed, err := parseThresholdExpression(raw)
		if err != nil {
			return nil, fmt.Errorf("metric %q: %w", metric, err)
		}
		ts.Thresholds = append(ts.Thresholds, Threshold{Source: raw, expr: parsed})
	}
	return ts, nil
}

// ThresholdViolation describes a single failed expression.
type ThresholdViolation struct {
	Metric     string
	Expression string
	Observed   *float64
}

// matchedSeries returns every registered series whose metric name equals
// name, across all tag combinations.
func matchedSeries(reg *Registry, name string) []seriesSnapshot {
	var out []seriesSnapshot
	for _, s := range reg.Summarize() {
		if s.Metric.Name == name {
			out = append(out, s)
		}
	}
	return out
}

func aggregate(agg ThresholdAgg, percentile float64, elapsed time.Duration, series []seriesSnapshot) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}

	switch agg {
	case AggCount:
		var total float64
		for _, s := range series {
			switch sink := s.Sink.(type) {
			case *CounterSink:
				total += sink.Value
			case *HistogramSink:
				total += float64(sink.Count())
			case *GaugeSink:
				total++
			}
		}
		return total, true

	case AggRate:
		var total float64
		for _, s := range series {
			switch sink := s.Sink.(type) {
			case *CounterSink:
				total += sink.Value
			case *HistogramSink:
				total += float64(sink.Count())
			case *GaugeSink:
				total += sink.Value
			}
		}
		secs := elapsed.Seconds()
		if secs <= 0 {
			return total, true
		}
		return total / secs, true

	case AggAvg:
		var sumCount float64
		var weightedSum float64
		var counterTotal float64
		hasHistogram := false
		for _, s := range series {
			switch sink := s.Sink.(type) {
			case *HistogramSink:
				hasHistogram = true
				c := float64(sink.Count())
				weightedSum += sink.Avg() * c
				sumCount += c
			case *CounterSink:
				counterTotal += sink.Value
			case *GaugeSink:
				weightedSum += sink.Value
				sumCount++
			}
		}
		if hasHistogram || sumCount > 0 {
			if sumCount == 0 {
				return 0, true
			}
			return weightedSum / sumCount, true
		}
		secs := elapsed.Seconds()
		if secs <= 0 {
			return counterTotal, true
		}
		return counterTotal / secs, true

	case AggMin, AggMax:
		var best float64
		set := false
		consider := func(v float64) {
			if !set {
				best, set = v, true
				return
			}
			if agg == AggMin && v < best {
				best = v
			}
			if agg == AggMax && v > best {
				best = v
			}
		}
		for _, s := range series {
			switch sink := s.Sink.(type) {
			case *HistogramSink:
				if sink.Count() == 0 {
					continue
				}
				if agg == AggMin {
					consider(sink.Min())
				} else {
					consider(sink.Max())
				}
			case *CounterSink:
				consider(sink.Value)
			case *GaugeSink:
				if agg == AggMin {
					consider(sink.Min)
				} else {
					consider(sink.Max)
				}
			}
		}
		return best, set

	case AggPercentile:
		merged := NewHistogramSink()
		found := false
		for _, s := range series {
			if h, ok := s.Sink.(*HistogramSink); ok {
				found = true
				for _, v := range h.values {
					merged.Add(Sample{Value: v})
				}
			}
		}
		if !found {
			return 0, false
		}
		return merged.P(percentile / 100.0), true
	}

	return 0, false
}

func compare(op ThresholdOp, observed, want float64) bool {
	switch op {
	case OpLt:
		return observed < want
	case OpLte:
		return observed <= want
	case OpGt:
		return observed > want
	case OpGte:
		return observed >= want
	case OpEq:
		return observed == want
	default:
		return false
	}
}

// Evaluate checks every threshold in sets against reg's current series,
// returning one violation per failed expression. A metric with zero
// matching samples fails closed: it is reported as a violation with
// Observed == nil.
func Evaluate(reg *Registry, elapsed time.Duration, sets []*ThresholdSet) []ThresholdViolation {
	var violations []ThresholdViolation
	for _, set := range sets {
		series := matchedSeries(reg, set.Metric)
		for _, th := range set.Thresholds {
			observed, ok := aggregate(th.expr.AggregationMethod, th.expr.Percentile, elapsed, series)
			if !ok {
				violations = append(violations, ThresholdViolation{
					Metric:     set.Metric,
					Expression: th.Source,
				})
				continue
			}
			if !compare(th.expr.Operator, observed, th.expr.Value) {
				o := observed
				violations = append(violations, ThresholdViolation{
					Metric:     set.Metric,
					Expression: th.Source,
					Observed:   &o,
				})
			}
		}
	}
	return violations
}
