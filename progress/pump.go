// Package progress implements the periodic live-metrics sampler described
// by the runner: a background tick that snapshots the metrics registry and
// each running scenario's executor state, and delivers the result to an
// observer callback without ever blocking a VU.
package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nogcio/wrkr-go/lib/executor"
	"github.com/nogcio/wrkr-go/metrics"
)

// DefaultInterval is the pump's default sampling period.
const DefaultInterval = time.Second

// ScenarioSnapshot is how an executor reports its shape-specific progress.
// Exactly the fields relevant to Kind are meaningful; the rest are zero.
type ScenarioSnapshot struct {
	Name string
	Kind executor.Kind

	// RampingVUs / RampingArrivalRate
	StageIndex   int
	StageTotal   int
	ElapsedStage time.Duration
	RemainStage  time.Duration
	StartTarget  int64
	EndTarget    int64
	CurrentValue int64

	// RampingArrivalRate only
	ActiveVUs         int64
	MaxVUs            int64
	DroppedIterations uint64
}

// SnapshotFunc is polled once per tick by the pump; ownership of the
// underlying executor state stays with the driver, the pump never reaches
// back into it except through this function.
type SnapshotFunc func() []ScenarioSnapshot

// LiveMetrics is the metrics half of a single tick's ProgressUpdate:
// deltas since the previous tick plus running totals.
type LiveMetrics struct {
	RequestsPerSec        float64
	BytesSentPerSec       float64
	BytesReceivedPerSec   float64
	TotalRequests         float64
	TotalBytesSent        float64
	TotalBytesReceived    float64
	TotalIterations       float64
	ChecksFailedTotal     float64
	LatencyMean           float64
	LatencyStddev         float64
	LatencyMax            float64
	LatencyP50            float64
	LatencyP75            float64
	LatencyP90            float64
	LatencyP95            float64
	LatencyP99            float64
	LatencyDistributionMs [99]float64

	// ChecksFailedByName is the running failure count per check name, for
	// the JSON progress line's checks_failed object.
	ChecksFailedByName map[string]float64
}

// ProgressUpdate is one pump emission.
type ProgressUpdate struct {
	Tick      uint64
	Elapsed   time.Duration
	Scenarios []ScenarioSnapshot
	Metrics   LiveMetrics
}

// Observer receives ticks. It must return quickly; a slow observer costs
// the pump the next tick rather than queueing work for it.
type Observer func(ProgressUpdate)

type counterState struct {
	requests, bytesSent, bytesReceived, iterations, checksFailed float64
	checksFailedByName                                           map[string]float64
}

// Pump periodically samples reg and snap, delivering ticks to observe.
type Pump struct {
	reg      *metrics.Registry
	snapshot SnapshotFunc
	observe  Observer
	interval time.Duration

	start time.Time
	tick  uint64
	prev  counterState

	busy int32 // guards against overlapping observer calls
}

// New builds a Pump. interval <= 0 uses DefaultInterval.
func New(reg *metrics.Registry, snap SnapshotFunc, observe Observer, interval time.Duration) *Pump {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pump{reg: reg, snapshot: snap, observe: observe, interval: interval}
}

// Run drives the pump until stop is closed. It keeps exactly one
// outstanding observer call at a time; if the previous call from this pump
// is still in flight when a tick fires, that tick is skipped entirely.
func (p *Pump) Run(stop <-chan struct{}) {
	p.start = time.Now()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.fire()
		}
	}
}

func (p *Pump) fire() {
	if !atomic.CompareAndSwapInt32(&p.busy, 0, 1) {
		return // previous tick's observer still running; skip this one
	}
	defer atomic.StoreInt32(&p.busy, 0)

	p.tick++
	elapsed := time.Since(p.start)

	cur := aggregateCounters(p.reg)
	interval := p.interval.Seconds()

	m := LiveMetrics{
		TotalRequests:      cur.requests,
		TotalBytesSent:     cur.bytesSent,
		TotalBytesReceived: cur.bytesReceived,
		TotalIterations:    cur.iterations,
		ChecksFailedTotal:  cur.checksFailed,
		ChecksFailedByName: cur.checksFailedByName,
	}
	if interval > 0 {
		m.RequestsPerSec = (cur.requests - p.prev.requests) / interval
		m.BytesSentPerSec = (cur.bytesSent - p.prev.bytesSent) / interval
		m.BytesReceivedPerSec = (cur.bytesReceived - p.prev.bytesReceived) / interval
	}
	p.prev = cur

	if h := mergedDurationHistogram(p.reg); h != nil {
		m.LatencyMean = h.Avg()
		m.LatencyStddev = h.Stddev()
		m.LatencyMax = h.Max()
		m.LatencyP50 = h.P(0.50)
		m.LatencyP75 = h.P(0.75)
		m.LatencyP90 = h.P(0.90)
		m.LatencyP95 = h.P(0.95)
		m.LatencyP99 = h.P(0.99)
		m.LatencyDistributionMs = h.Distribution()
	}

	var scenarios []ScenarioSnapshot
	if p.snapshot != nil {
		scenarios = p.snapshot()
	}

	p.observe(ProgressUpdate{Tick: p.tick, Elapsed: elapsed, Scenarios: scenarios, Metrics: m})
}

func aggregateCounters(reg *metrics.Registry) counterState {
	st := counterState{checksFailedByName: map[string]float64{}}
	for _, s := range reg.Summarize() {
		sink, ok := s.Sink.(*metrics.CounterSink)
		if !ok {
			continue
		}
		switch s.Metric.Name {
		case "requests_total":
			st.requests += sink.Value
		case "bytes_sent_total":
			st.bytesSent += sink.Value
		case "bytes_received_total":
			st.bytesReceived += sink.Value
		case "iterations_total":
			st.iterations += sink.Value
		case "checks":
			if s.Tags["status"] == "fail" {
				st.checksFailed += sink.Value
				st.checksFailedByName[s.Tags["name"]] += sink.Value
			}
		}
	}
	return st
}

// mergedDurationHistogram folds every request_duration_ms series into one,
// so the pump reports aggregate latency across tags rather than per-tag.
func mergedDurationHistogram(reg *metrics.Registry) *metrics.HistogramSink {
	var merged *metrics.HistogramSink
	var mu sync.Mutex
	for _, s := range reg.Summarize() {
		if s.Metric.Name != "request_duration_ms" {
			continue
		}
		h, ok := s.Sink.(*metrics.HistogramSink)
		if !ok {
			continue
		}
		mu.Lock()
		if merged == nil {
			merged = metrics.NewHistogramSink()
		}
		for _, v := range h.Values() {
			merged.Add(metrics.Sample{Value: v})
		}
		mu.Unlock()
	}
	return merged
}
