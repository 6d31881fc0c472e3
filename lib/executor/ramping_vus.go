package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultRampingTick = 50 * time.Millisecond

// rampingWorker is one active VU task spawned by RampingVus. stop is set by
// the controller to ask the worker to exit after its current iteration;
// mid-iteration work is never interrupted.
type rampingWorker struct {
	stop int32
	done chan struct{}
}

// RampingVus maintains an active VU count that tracks a Schedule, scaling
// up by spawning fresh tasks and scaling down by letting excess tasks
// finish their current iteration and exit.
type RampingVus struct {
	Config   ScenarioConfig
	Schedule *Schedule
	Gate     *Gate
	RunIter  RunIterFunc

	// Tick bounds how often the active count is resampled; defaults to
	// defaultRampingTick (≤ 100ms per the schedule's sampling contract).
	Tick time.Duration
}

// NewRampingVus builds a RampingVus executor from a validated scenario
// config.
func NewRampingVus(cfg ScenarioConfig, runIter RunIterFunc) *RampingVus {
	sched := NewSchedule(cfg.StartVUs.Int64, cfg.Stages)
	return &RampingVus{
		Config:   cfg,
		Schedule: sched,
		Gate:     NewGate(0, sched.TotalDuration()),
		RunIter:  runIter,
	}
}

// Run drives the schedule to completion, blocking until every spawned task
// has exited.
func (e *RampingVus) Run(ctx context.Context) {
	tick := e.Tick
	if tick <= 0 {
		tick = defaultRampingTick
	}

	start := time.Now()
	e.Gate.Start(start)

	var mu sync.Mutex
	var workers []*rampingWorker
	var nextVUID uint64
	var wg sync.WaitGroup

	spawn := func() {
		nextVUID++
		vuID := nextVUID
		w := &rampingWorker{done: make(chan struct{})}
		workers = append(workers, w)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(w.done)
			for e.Gate.Next() {
				if atomic.LoadInt32(&w.stop) == 1 {
					return
				}
				if !e.RunIter(ctx, vuID) {
					return
				}
			}
		}()
	}

	scale := func(target int64) {
		mu.Lock()
		defer mu.Unlock()
		cur := int64(len(workers))
		switch {
		case target > cur:
			for i := cur; i < target; i++ {
				spawn()
			}
		case target < cur:
			toStop := workers[target:]
			workers = workers[:target]
			for _, w := range toStop {
				atomic.StoreInt32(&w.stop, 1)
			}
		}
	}

	scale(e.Schedule.ValueAt(0))
	for {
		elapsed := time.Since(start)
		if e.Schedule.IsComplete(elapsed) {
			break
		}
		scale(e.Schedule.ValueAt(elapsed))

		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-time.After(tick):
		}
	}

	wg.Wait()
}
