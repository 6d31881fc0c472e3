package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseThresholdExpression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		input          string
		wantExpression *thresholdExpression
		wantErr        bool
	}{
		{
			name:    "unknown operator fails",
			input:   "count!20",
			wantErr: true,
		},
		{
			name:    "unknown aggregation method fails",
			input:   "foo>20",
			wantErr: true,
		},
		{
			name:    "non numerical value fails",
			input:   "count>abc",
			wantErr: true,
		},
		{
			name:           "valid expression",
			input:          "count>20",
			wantExpression: &thresholdExpression{AggregationMethod: AggCount, Operator: OpGt, Value: 20},
		},
		{
			name:           "whitespace is trimmed everywhere",
			input:          " avg  <=  100 ",
			wantExpression: &thresholdExpression{AggregationMethod: AggAvg, Operator: OpLte, Value: 100},
		},
		{
			name:           "percentile expression",
			input:          "p(95)<500",
			wantExpression: &thresholdExpression{AggregationMethod: AggPercentile, Percentile: 95, Operator: OpLt, Value: 500},
		},
		{
			name:    "percentile out of range fails",
			input:   "p(101)<500",
			wantErr: true,
		},
		{
			name:    "percentile of zero fails",
			input:   "p(0)<500",
			wantErr: true,
		},
		{
			name:    "missing operator fails",
			input:   "count20",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseThresholdExpression(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExpression, got)
		})
	}
}

func TestParseThresholdExpressionOutOfRangeMessage(t *testing.T) {
	t.Parallel()
	_, err := parseThresholdExpression("p(101)<500")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestParseThresholdExpressionMissingOperatorMessage(t *testing.T) {
	t.Parallel()
	_, err := parseThresholdExpression("count20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid threshold")
}

func TestScanThresholdExpressionOperatorPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input      string
		wantOp     string
		wantAgg    string
		wantVal    string
	}{
		{"foo<=bar", "<=", "foo", "bar"},
		{"foo<bar", "<", "foo", "bar"},
		{"foo>=bar", ">=", "foo", "bar"},
		{"foo>bar", ">", "foo", "bar"},
		{"foo==bar", "==", "foo", "bar"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			agg, op, val, err := scanThresholdExpression(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.wantAgg, agg)
			assert.Equal(t, tc.wantOp, op)
			assert.Equal(t, tc.wantVal, val)
		})
	}
}
