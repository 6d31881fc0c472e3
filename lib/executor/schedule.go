package executor

import (
	"time"

	"github.com/nogcio/wrkr-go/lib/types"
	null "gopkg.in/guregu/null.v3"
)

// Stage is one leg of a ramping schedule: over Duration, the tracked value
// moves linearly from the previous stage's target (or StartValue for the
// first stage) to Target.
type Stage struct {
	Duration types.NullDuration `json:"duration" yaml:"duration"`
	Target   null.Int           `json:"target" yaml:"target"`
}

// Schedule interpolates a value over a sequence of stages.
type Schedule struct {
	startValue int64
	stages     []Stage
	cum        []time.Duration // cumulative end time of stage i
	total      time.Duration
}

// NewSchedule builds a Schedule. Stages with a zero/invalid duration are
// kept (they contribute an instantaneous jump to their target).
func NewSchedule(startValue int64, stages []Stage) *Schedule {
	s := &Schedule{startValue: startValue, stages: stages}
	var cum time.Duration
	s.cum = make([]time.Duration, len(stages))
	for i, st := range stages {
		cum += st.Duration.TimeDuration()
		s.cum[i] = cum
	}
	s.total = cum
	return s
}

// stageBounds returns the index of the stage active at elapsed t, along
// with that stage's start time, start value and end value. Boundaries are
// right-continuous: t lying exactly on a boundary belongs to the stage that
// begins there, so the stage index is monotonic in t.
func (s *Schedule) stageBounds(t time.Duration) (idx int, stageStart time.Duration, prevTarget, target int64) {
	prevTarget = s.startValue
	var start time.Duration
	for i, end := range s.cum {
		if t < end || i == len(s.cum)-1 {
			return i, start, prevTarget, s.stages[i].Target.ValueOrZero()
		}
		start = end
		prevTarget = s.stages[i].Target.ValueOrZero()
	}
	return 0, 0, s.startValue, s.startValue
}

// ValueAt returns the interpolated value at elapsed time t, clamped to the
// final stage's target once the schedule has completed.
func (s *Schedule) ValueAt(t time.Duration) int64 {
	if len(s.stages) == 0 {
		return s.startValue
	}
	if t >= s.total {
		return s.stages[len(s.stages)-1].Target.ValueOrZero()
	}
	if t < 0 {
		t = 0
	}

	idx, stageStart, prev, target := s.stageBounds(t)
	dur := s.stages[idx].Duration.TimeDuration()
	if dur <= 0 {
		return target
	}

	elapsedInStage := t - stageStart
	delta := target - prev
	// round-half-away-from-zero.
	numerator := float64(delta) * float64(elapsedInStage)
	frac := numerator / float64(dur)
	var rounded int64
	if frac >= 0 {
		rounded = int64(frac + 0.5)
	} else {
		rounded = int64(frac - 0.5)
	}
	return prev + rounded
}

// StageSnapshot describes the schedule's state at a point in time, for
// progress reporting.
type StageSnapshot struct {
	StageIndex    int
	StageTotal    int
	ElapsedStage  time.Duration
	RemainStage   time.Duration
	StartTarget   int64
	EndTarget     int64
	CurrentValue  int64
}

// Snapshot returns the full interpolation state at elapsed time t.
func (s *Schedule) Snapshot(t time.Duration) StageSnapshot {
	if len(s.stages) == 0 {
		return StageSnapshot{StageTotal: 0, CurrentValue: s.startValue}
	}
	clamped := t
	if clamped > s.total {
		clamped = s.total
	}
	if clamped < 0 {
		clamped = 0
	}
	idx, stageStart, prev, target := s.stageBounds(clamped)
	dur := s.stages[idx].Duration.TimeDuration()
	elapsedInStage := clamped - stageStart
	remain := dur - elapsedInStage
	if remain < 0 {
		remain = 0
	}
	return StageSnapshot{
		StageIndex:   idx,
		StageTotal:   len(s.stages),
		ElapsedStage: elapsedInStage,
		RemainStage:  remain,
		StartTarget:  prev,
		EndTarget:    target,
		CurrentValue: s.ValueAt(t),
	}
}

// IsComplete reports whether elapsed time t has reached the schedule's
// total duration.
func (s *Schedule) IsComplete(t time.Duration) bool {
	return t >= s.total
}

// TotalDuration is the sum of every stage's duration.
func (s *Schedule) TotalDuration() time.Duration {
	return s.total
}
