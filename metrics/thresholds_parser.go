package metrics

import (
	"fmt"
	"strconv"
	"strings"
)

// ThresholdOp is a threshold expression's comparison operator.
type ThresholdOp string

const (
	OpLt  ThresholdOp = "<"
	OpLte ThresholdOp = "<="
	OpGt  ThresholdOp = ">"
	OpGte ThresholdOp = ">="
	OpEq  ThresholdOp = "=="
)

// operator tokens are searched in this order so that "<=" isn't
// mis-matched as "<" followed by a stray "=".
var operatorSearchOrder = []ThresholdOp{OpLte, OpGte, OpEq, OpLt, OpGt}

// ThresholdAgg is the aggregation a threshold expression applies to the
// matched series.
type ThresholdAgg string

const (
	AggAvg        ThresholdAgg = "avg"
	AggMin        ThresholdAgg = "min"
	AggMax        ThresholdAgg = "max"
	AggCount      ThresholdAgg = "count"
	AggRate       ThresholdAgg = "rate"
	AggPercentile ThresholdAgg = "p"
)

// thresholdExpression is a single parsed `agg OP value` clause.
type thresholdExpression struct {
	AggregationMethod ThresholdAgg
	Percentile        float64 // only meaningful when AggregationMethod == AggPercentile
	Operator          ThresholdOp
	Value             float64
}

func (e *thresholdExpression) String() string {
	agg := string(e.AggregationMethod)
	if e.AggregationMethod == AggPercentile {
		agg = fmt.Sprintf("p(%v)", e.Percentile)
	}
	return fmt.Sprintf("%s%s%v", agg, e.Operator, e.Value)
}

// parseThresholdExpression parses a whitespace-insensitive expression of
// the form "agg OP value", e.g. "p(95)<500" or " avg <= 100 ".
func parseThresholdExpression(input string) (*thresholdExpression, error) {
	stripped := stripWhitespace(input)

	agg, op, valueStr, err := scanThresholdExpression(stripped)
	if err != nil {
		return nil, err
	}

	aggMethod, percentile, err := parseThresholdAggregationMethod(agg)
	if err != nil {
		return nil, err
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid threshold value %q: %w", valueStr, err)
	}

	return &thresholdExpression{
		AggregationMethod: aggMethod,
		Percentile:        percentile,
		Operator:          ThresholdOp(op),
		Value:             value,
	}, nil
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scanThresholdExpression splits s on the first operator found, searching
// in precedence order so multi-character operators aren't split early.
func scanThresholdExpression(s string) (agg, op, value string, err error) {
	for _, candidate := range operatorSearchOrder {
		idx := strings.Index(s, string(candidate))
		if idx < 0 {
			continue
		}
		agg = strings.TrimSpace(s[:idx])
		op = string(candidate)
		value = strings.TrimSpace(s[idx+len(candidate):])
		return agg, op, value, nil
	}
	return "", "", "", fmt.Errorf("invalid threshold expression %q: no operator found", s)
}

// parseThresholdAggregationMethod parses the left-hand side of an
// expression: one of the fixed aggregation names, or a p(N) percentile
// with N bounds-checked to [1, 100].
func parseThresholdAggregationMethod(s string) (ThresholdAgg, float64, error) {
	switch strings.ToLower(s) {
	case string(AggAvg):
		return AggAvg, 0, nil
	case string(AggMin):
		return AggMin, 0, nil
	case string(AggMax):
		return AggMax, 0, nil
	case string(AggCount):
		return AggCount, 0, nil
	case string(AggRate):
		return AggRate, 0, nil
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "p(") && strings.HasSuffix(lower, ")") {
		inner := s[2 : len(s)-1]
		if inner == "" {
			return "", 0, fmt.Errorf("invalid percentile expression %q", s)
		}
		pct, err := strconv.ParseFloat(inner, 64)
		if err != nil {
			return "", 0, fmt.Errorf("invalid percentile value in %q: %w", s, err)
		}
		if pct < 1 || pct > 100 {
			return "", 0, fmt.Errorf("percentile %v in %q is out of range [1, 100]", pct, s)
		}
		return AggPercentile, pct, nil
	}

	return "", 0, fmt.Errorf("unknown threshold aggregation method %q", s)
}
