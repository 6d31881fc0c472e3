package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Sink accumulates Samples for one series and renders a point-in-time
// summary of them. Every sink guards its state with its own mutex, so Add
// and Format are safe for concurrent use; counter and gauge updates take
// that mutex as well and are not lock-free.
type Sink interface {
	Add(s Sample)
	Format(t time.Duration) map[string]float64
}

// NewSink constructs the zero-value sink for a metric kind.
func NewSink(mt MetricType) Sink {
	switch mt {
	case Counter:
		return &CounterSink{}
	case Gauge:
		return &GaugeSink{}
	case Histogram:
		return NewHistogramSink()
	default:
		panic("invalid metric type for new sink")
	}
}

// CounterSink is a running total plus the time of the first observation,
// used to compute a per-second rate.
type CounterSink struct {
	mu    sync.Mutex
	Value float64
	First time.Time
}

func (c *CounterSink) Add(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Value += s.Value
	if c.First.IsZero() {
		c.First = s.Time
	}
}

func (c *CounterSink) Format(t time.Duration) map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	rate := 0.0
	if t > 0 {
		rate = c.Value / (float64(t) / float64(time.Second))
	}
	return map[string]float64{"count": c.Value, "rate": rate}
}

// GaugeSink keeps the last value plus the running min/max seen.
type GaugeSink struct {
	mu              sync.Mutex
	Value, Min, Max float64
	minSet          bool
}

func (g *GaugeSink) Add(s Sample) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Value = s.Value
	if s.Value > g.Max || !g.minSet {
		g.Max = s.Value
	}
	if s.Value < g.Min || !g.minSet {
		g.Min = s.Value
		g.minSet = true
	}
}

func (g *GaugeSink) Format(time.Duration) map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return map[string]float64{"value": g.Value}
}

// HistogramSink keeps every observed value and sorts lazily on first
// percentile query, using R-7 linear interpolation between the two
// nearest ranks.
type HistogramSink struct {
	mu     sync.Mutex
	values []float64
	sorted bool
}

// NewHistogramSink returns an empty histogram sink.
func NewHistogramSink() *HistogramSink {
	return &HistogramSink{sorted: true}
}

func (h *HistogramSink) Add(s Sample) {
	v := s.Value
	if v <= 0 {
		v = 1
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values = append(h.values, v)
	h.sorted = len(h.values) < 2
}

// Values returns a copy of every observation recorded so far, for callers
// (like the threshold engine and progress pump) that need to merge several
// series' histograms together.
func (h *HistogramSink) Values() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}

// Count returns the number of observations.
func (h *HistogramSink) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return uint64(len(h.values))
}

// Min returns the smallest observation, 0 if empty.
func (h *HistogramSink) Min() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.values) == 0 {
		return 0
	}
	h.sort()
	return h.values[0]
}

// Max returns the largest observation, 0 if empty.
func (h *HistogramSink) Max() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.values) == 0 {
		return 0
	}
	h.sort()
	return h.values[len(h.values)-1]
}

// Total returns the sum of all observations.
func (h *HistogramSink) Total() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total()
}

func (h *HistogramSink) total() float64 {
	var total float64
	for _, v := range h.values {
		total += v
	}
	return total
}

// Avg returns the mean of all observations, 0 if empty.
func (h *HistogramSink) Avg() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.values) == 0 {
		return 0
	}
	return h.total() / float64(len(h.values))
}

// Stddev returns the population standard deviation, 0 if fewer than two
// observations exist.
func (h *HistogramSink) Stddev() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.values) < 2 {
		return 0
	}
	mean := h.total() / float64(len(h.values))
	var sumSq float64
	for _, v := range h.values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(h.values)))
}

func (h *HistogramSink) sort() {
	if h.sorted {
		return
	}
	sort.Float64s(h.values)
	h.sorted = true
}

// P returns the quantile (0.0-1.0) via linear interpolation between the two
// closest ranked observations.
func (h *HistogramSink) P(quantile float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch len(h.values) {
	case 0:
		return 0
	case 1:
		return h.values[0]
	default:
		h.sort()
		i := quantile * (float64(len(h.values)) - 1)
		lo, hi := int(math.Floor(i)), int(math.Ceil(i))
		wt := i - float64(lo)
		return h.values[lo]*(1-wt) + h.values[hi]*wt
	}
}

// Distribution returns the 1st through 99th percentile, used for the
// progress pump's latency_distribution_ms field.
func (h *HistogramSink) Distribution() [99]float64 {
	var dist [99]float64
	for i := 1; i <= 99; i++ {
		dist[i-1] = h.P(float64(i) / 100.0)
	}
	return dist
}

func (h *HistogramSink) Format(time.Duration) map[string]float64 {
	return map[string]float64{
		"min":   h.Min(),
		"max":   h.Max(),
		"avg":   h.Avg(),
		"med":   h.P(0.5),
		"p(90)": h.P(0.90),
		"p(95)": h.P(0.95),
	}
}
