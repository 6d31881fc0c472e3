package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// graceFraction is the fraction of TimeUnit the dispatcher waits for an idle
// worker before counting a scheduled start as dropped. Not separately
// configurable; fixed here as a sane default.
const graceFraction = 10

// RampingArrivalRate drives an open-model scenario: iterations start on a
// schedule derived from a time-varying rate, independent of how fast prior
// iterations finish. A bounded pool of workers pulls "begin iteration"
// tokens off a channel; the dispatcher never blocks on a worker being busy
// beyond a small grace window, instead counting a dropped iteration.
type RampingArrivalRate struct {
	Config   ScenarioConfig
	Schedule *Schedule
	Pacer    *Pacer
	Gate     *Gate
	RunIter  RunIterFunc

	// DroppedIterations counts scheduled starts that found no free worker
	// within the grace window. Safe to read concurrently while Run is in
	// progress.
	DroppedIterations uint64

	activeWorkers int64
}

// ActiveWorkers returns the number of worker tasks currently spawned (idle
// or busy), for progress reporting and the max-VUs invariant.
func (e *RampingArrivalRate) ActiveWorkers() int64 {
	return atomic.LoadInt64(&e.activeWorkers)
}

// Dropped returns the current dropped-iteration count.
func (e *RampingArrivalRate) Dropped() uint64 {
	return atomic.LoadUint64(&e.DroppedIterations)
}

// NewRampingArrivalRate builds a RampingArrivalRate executor from a
// validated scenario config. The schedule's value is interpreted as the
// arrival rate in iterations per Config.TimeUnit.
func NewRampingArrivalRate(cfg ScenarioConfig, runIter RunIterFunc) *RampingArrivalRate {
	sched := NewSchedule(cfg.StartRate.Int64, cfg.Stages)
	return &RampingArrivalRate{
		Config:   cfg,
		Schedule: sched,
		Gate:     NewOpenGate(),
		RunIter:  runIter,
	}
}

// worker is one pooled VU task waiting on tokens.
type worker struct {
	vuID   uint64
	tokens chan struct{}
	busy   int32 // 1 while processing a token
	done   chan struct{}
}

// Run drives the dispatcher loop until the schedule completes and every
// worker has drained, blocking until all spawned workers have exited.
func (e *RampingArrivalRate) Run(ctx context.Context) {
	start := time.Now()
	timeUnit := e.Config.TimeUnit.TimeDuration()
	e.Pacer = NewPacer(start, timeUnit, e.Schedule.ValueAt)

	maxVUs := int(e.Config.MaxVUs.Int64)
	preAlloc := int(e.Config.PreAllocatedVUs.Int64)
	grace := timeUnit / graceFraction

	var mu sync.Mutex
	var workers []*worker
	var nextVUID uint64
	var wg sync.WaitGroup

	spawnWorker := func() *worker {
		nextVUID++
		w := &worker{vuID: nextVUID, tokens: make(chan struct{}, 1), done: make(chan struct{})}
		workers = append(workers, w)
		wg.Add(1)
		atomic.AddInt64(&e.activeWorkers, 1)
		go func() {
			defer wg.Done()
			defer atomic.AddInt64(&e.activeWorkers, -1)
			defer close(w.done)
			for range w.tokens {
				if !e.Gate.Next() {
					atomic.StoreInt32(&w.busy, 0)
					return
				}
				e.RunIter(ctx, w.vuID)
				atomic.StoreInt32(&w.busy, 0)
			}
		}()
		return w
	}

	mu.Lock()
	for i := 0; i < preAlloc; i++ {
		spawnWorker()
	}
	mu.Unlock()

	// offer attempts to hand a token to an idle worker, spawning a new one
	// up to maxVUs if none is idle, within the grace window. Returns false
	// if the start must be counted as dropped.
	offer := func() bool {
		deadline := time.Now().Add(grace)
		for {
			mu.Lock()
			for _, w := range workers {
				if atomic.CompareAndSwapInt32(&w.busy, 0, 1) {
					select {
					case w.tokens <- struct{}{}:
						mu.Unlock()
						return true
					default:
						atomic.StoreInt32(&w.busy, 0)
					}
				}
			}
			if len(workers) < maxVUs {
				w := spawnWorker()
				atomic.StoreInt32(&w.busy, 1)
				w.tokens <- struct{}{}
				mu.Unlock()
				return true
			}
			mu.Unlock()

			if time.Now().After(deadline) {
				return false
			}
			time.Sleep(time.Millisecond)
		}
	}

	for {
		elapsed := time.Since(start)
		if e.Schedule.IsComplete(elapsed) {
			break
		}

		next := e.Pacer.NextStart()
		sleepFor := time.Until(next)
		if sleepFor > 0 {
			select {
			case <-ctx.Done():
				goto drain
			case <-time.After(sleepFor):
			}
		}

		if !offer() {
			atomic.AddUint64(&e.DroppedIterations, 1)
		}
	}

drain:
	e.Gate.Close()

	mu.Lock()
	for _, w := range workers {
		close(w.tokens)
	}
	mu.Unlock()

	wg.Wait()
}
