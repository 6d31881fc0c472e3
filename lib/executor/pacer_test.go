package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerConstantRate(t *testing.T) {
	t.Parallel()

	start := time.Now()
	rate := func(time.Duration) int64 { return 10 } // 10/s
	p := NewPacer(start, time.Second, rate)

	prev := start
	for i := 0; i < 5; i++ {
		next := p.NextStart()
		require.True(t, !next.Before(prev))
		assert.WithinDuration(t, start.Add(time.Duration(i+1)*100*time.Millisecond), next, time.Millisecond)
		prev = next
	}
}

func TestPacerZeroRateSleepsUntilPositive(t *testing.T) {
	t.Parallel()

	start := time.Now()
	// zero for the first second, then 2/s.
	rate := func(t time.Duration) int64 {
		if t < time.Second {
			return 0
		}
		return 2
	}
	p := NewPacer(start, time.Second, rate)

	next := p.NextStart()
	assert.True(t, p.Elapsed() >= time.Second)
	assert.WithinDuration(t, start.Add(time.Second+500*time.Millisecond), next, time.Millisecond)
}

func TestPacerMonotonic(t *testing.T) {
	t.Parallel()

	start := time.Now()
	rate := func(t time.Duration) int64 {
		// ramps from 1 to 100 over a second.
		return 1 + int64(t/(10*time.Millisecond))
	}
	p := NewPacer(start, time.Second, rate)

	prev := start
	for i := 0; i < 50; i++ {
		next := p.NextStart()
		assert.False(t, next.Before(prev))
		prev = next
	}
}
