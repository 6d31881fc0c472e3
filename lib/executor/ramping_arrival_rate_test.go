package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nogcio/wrkr-go/lib/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	null "gopkg.in/guregu/null.v3"
)

func arrivalCfg(startRate int64, timeUnit time.Duration, preAlloc, maxVUs int64, stages ...Stage) ScenarioConfig {
	return ScenarioConfig{
		Name:            "s",
		Kind:            KindRampingArrivalRate,
		StartRate:       null.IntFrom(startRate),
		TimeUnit:        types.NullDurationFrom(timeUnit),
		PreAllocatedVUs: null.IntFrom(preAlloc),
		MaxVUs:          null.IntFrom(maxVUs),
		Stages:          stages,
	}
}

func TestRampingArrivalRateRespectsMaxVUs(t *testing.T) {
	t.Parallel()

	cfg := arrivalCfg(50, 100*time.Millisecond, 2, 5, stage(300*time.Millisecond, 200))

	var maxActive int64
	var completed int64
	runIter := func(ctx context.Context, vuID uint64) bool {
		atomic.AddInt64(&completed, 1)
		time.Sleep(2 * time.Millisecond)
		return true
	}

	e := NewRampingArrivalRate(cfg, runIter)
	stopSampling := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopSampling:
				return
			default:
			}
			active := e.ActiveWorkers()
			for {
				cur := atomic.LoadInt64(&maxActive)
				if active <= cur || atomic.CompareAndSwapInt64(&maxActive, cur, active) {
					break
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	e.Run(context.Background())
	close(stopSampling)

	require.LessOrEqual(t, e.ActiveWorkers(), int64(5))
	assert.LessOrEqual(t, maxActive, int64(5))
	assert.GreaterOrEqual(t, completed, int64(1))
}

func TestRampingArrivalRateDropsWhenWorkersSaturated(t *testing.T) {
	t.Parallel()

	// A high rate against a tiny, slow pool must drop some scheduled starts
	// rather than block the dispatcher.
	cfg := arrivalCfg(200, 50*time.Millisecond, 1, 1, stage(200*time.Millisecond, 200))

	runIter := func(ctx context.Context, vuID uint64) bool {
		time.Sleep(20 * time.Millisecond)
		return true
	}

	e := NewRampingArrivalRate(cfg, runIter)
	e.Run(context.Background())

	assert.Greater(t, e.Dropped(), uint64(0))
}

func TestRampingArrivalRateCompletesAndDrains(t *testing.T) {
	t.Parallel()

	cfg := arrivalCfg(10, 50*time.Millisecond, 1, 4, stage(100*time.Millisecond, 10))

	var completed int64
	runIter := func(ctx context.Context, vuID uint64) bool {
		atomic.AddInt64(&completed, 1)
		return true
	}

	e := NewRampingArrivalRate(cfg, runIter)
	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executor did not complete in time")
	}

	assert.Equal(t, int64(0), e.ActiveWorkers())
	assert.False(t, e.Gate.Next())
}
