package executor

import (
	"time"
)

// rateFunc returns the schedule's arrival rate (iterations per timeUnit) at
// elapsed time t.
type rateFunc func(t time.Duration) int64

// Pacer produces a monotonically increasing sequence of scheduled start
// instants for an open-model (arrival-rate) executor, given a possibly
// time-varying rate.
type Pacer struct {
	start    time.Time
	rate     rateFunc
	timeUnit time.Duration
	cursor   time.Duration // elapsed-time offset of the next scheduled start
}

// NewPacer builds a Pacer anchored at start, sampling rate(t) (iterations
// per timeUnit) to derive inter-arrival intervals.
func NewPacer(start time.Time, timeUnit time.Duration, rate rateFunc) *Pacer {
	return &Pacer{start: start, rate: rate, timeUnit: timeUnit}
}

// NextStart advances the internal cursor and returns the next scheduled
// start instant. It never returns an instant earlier than the previous one.
// While the schedule's rate is zero, NextStart advances in timeUnit-sized
// steps until it becomes positive again.
func (p *Pacer) NextStart() time.Time {
	for {
		r := p.rate(p.cursor)
		if r > 0 {
			interval := p.timeUnit / time.Duration(r)
			p.cursor += interval
			return p.start.Add(p.cursor)
		}
		p.cursor += p.timeUnit
	}
}

// Elapsed returns the cursor's current offset from the pacer's start.
func (p *Pacer) Elapsed() time.Duration {
	return p.cursor
}
