package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateChecksRate(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	checks, err := reg.NewMetric("checks", Counter)
	require.NoError(t, err)

	set, err := NewThresholdSet("checks", []string{"rate<1.0"})
	require.NoError(t, err)

	t.Run("no failures passes", func(t *testing.T) {
		t.Parallel()
		localReg := NewRegistry()
		m, err := localReg.NewMetric("checks", Counter)
		require.NoError(t, err)
		handle := localReg.GetHandle(m, nil)
		handle.Add(Sample{Value: 0})
		violations := Evaluate(localReg, time.Second, []*ThresholdSet{set})
		assert.Empty(t, violations)
	})

	t.Run("100 failures over 1s violates rate<1.0", func(t *testing.T) {
		t.Parallel()
		handle := reg.GetHandle(checks, nil)
		for i := 0; i < 100; i++ {
			handle.Add(Sample{Value: 1})
		}
		violations := Evaluate(reg, time.Second, []*ThresholdSet{set})
		require.Len(t, violations, 1)
		require.NotNil(t, violations[0].Observed)
		assert.InDelta(t, 100.0, *violations[0].Observed, 0.0001)
	})
}

func TestEvaluateMissingSeriesFailsClosed(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	set, err := NewThresholdSet("http_req_duration", []string{"p(95)<500"})
	require.NoError(t, err)

	violations := Evaluate(reg, time.Second, []*ThresholdSet{set})
	require.Len(t, violations, 1)
	assert.Nil(t, violations[0].Observed)
}

func TestEvaluatePercentile(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	m, err := reg.NewMetric("http_req_duration", Histogram, Time)
	require.NoError(t, err)
	handle := reg.GetHandle(m, nil)
	for _, v := range []float64{10, 20, 30, 40, 500} {
		handle.Add(Sample{Value: v})
	}

	passing, err := NewThresholdSet("http_req_duration", []string{"p(50)<100"})
	require.NoError(t, err)
	assert.Empty(t, Evaluate(reg, time.Second, []*ThresholdSet{passing}))

	failing, err := NewThresholdSet("http_req_duration", []string{"max<100"})
	require.NoError(t, err)
	violations := Evaluate(reg, time.Second, []*ThresholdSet{failing})
	require.Len(t, violations, 1)
	require.NotNil(t, violations[0].Observed)
	assert.Equal(t, 500.0, *violations[0].Observed)
}
