package executor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Gate decides whether another iteration of a scenario is permitted to
// start. It is safe for concurrent use by every VU of a scenario; next is a
// lock-free check and never suspends.
type Gate struct {
	counter    uint64
	iterations uint64
	hasIters   bool

	duration    time.Duration
	hasDuration bool

	// open, when set, makes Next() return true unconditionally (subject to
	// closed) instead of the single-shot default. Used by executors, like
	// RampingArrivalRate, whose termination is driven externally rather than
	// by an iteration or duration budget.
	open   bool
	closed int32

	startOnce sync.Once
	deadline  atomic.Value // time.Time
}

// NewGate builds a Gate for the given budget. iterations == 0 means no
// iteration cap; duration == 0 means no deadline. If neither is set the
// gate permits exactly one iteration total.
func NewGate(iterations uint64, duration time.Duration) *Gate {
	return &Gate{
		iterations:  iterations,
		hasIters:    iterations > 0,
		duration:    duration,
		hasDuration: duration > 0,
	}
}

// NewOpenGate builds a Gate with no iteration or duration budget of its
// own: Next() returns true until Close() is called. The arrival-rate
// executor's dispatcher is the gate's only source of termination.
func NewOpenGate() *Gate {
	return &Gate{open: true}
}

// Close permanently shuts the gate; every subsequent Next() returns false.
func (g *Gate) Close() {
	atomic.StoreInt32(&g.closed, 1)
}

// Start latches the gate's deadline, if it has one, to started+duration.
// Calling it more than once has no effect; if it is never called the
// deadline is lazily latched from the first Next() call instead.
func (g *Gate) Start(started time.Time) {
	if !g.hasDuration {
		return
	}
	g.startOnce.Do(func() {
		g.deadline.Store(started.Add(g.duration))
	})
}

// Next reports whether the caller may run another iteration.
func (g *Gate) Next() bool {
	if atomic.LoadInt32(&g.closed) == 1 {
		return false
	}
	if g.open {
		return true
	}

	if g.hasDuration {
		now := time.Now()
		g.Start(now)
		if dl, ok := g.deadline.Load().(time.Time); ok && !now.Before(dl) {
			return false
		}
	}

	if g.hasIters {
		idx := atomic.AddUint64(&g.counter, 1) - 1
		return idx < g.iterations
	}

	if !g.hasDuration {
		idx := atomic.AddUint64(&g.counter, 1) - 1
		return idx == 0
	}

	return true
}
