package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/nogcio/wrkr-go/lib/executor"
	"github.com/nogcio/wrkr-go/progress"
)

// reqPerSecStats accumulates a running mean/variance/max of requests_per_sec
// across ticks (Welford's algorithm), feeding the JSON line's
// req_per_sec_{avg,stdev,max,stdev_pct} fields.
type reqPerSecStats struct {
	n       int
	mean    float64
	m2      float64
	max     float64
}

func (s *reqPerSecStats) observe(v float64) {
	s.n++
	delta := v - s.mean
	s.mean += delta / float64(s.n)
	s.m2 += delta * (v - s.mean)
	if v > s.max {
		s.max = v
	}
}

func (s *reqPerSecStats) stddev() float64 {
	if s.n < 2 {
		return 0
	}
	return math.Sqrt(s.m2 / float64(s.n))
}

// jsonProgressLine is one line of `--progress-format json` output, field
// names fixed by the runner's external progress contract.
type jsonProgressLine struct {
	ElapsedSecs          float64            `json:"elapsed_secs"`
	Connections          int64              `json:"connections"`
	RequestsPerSec       float64            `json:"requests_per_sec"`
	BytesReceivedPerSec  float64            `json:"bytes_received_per_sec"`
	BytesSentPerSec      float64            `json:"bytes_sent_per_sec"`
	TotalRequests        float64            `json:"total_requests"`
	TotalBytesReceived   float64            `json:"total_bytes_received"`
	TotalBytesSent       float64            `json:"total_bytes_sent"`
	ChecksFailedTotal    float64            `json:"checks_failed_total"`
	LatencyMean          float64            `json:"latency_mean"`
	LatencyStdev         float64            `json:"latency_stdev"`
	LatencyMax           float64            `json:"latency_max"`
	LatencyP50           float64            `json:"latency_p50"`
	LatencyP75           float64            `json:"latency_p75"`
	LatencyP90           float64            `json:"latency_p90"`
	LatencyP99           float64            `json:"latency_p99"`
	LatencyStdevPct      float64            `json:"latency_stdev_pct"`
	ChecksFailed         map[string]float64 `json:"checks_failed"`
	ReqPerSecAvg         float64            `json:"req_per_sec_avg"`
	ReqPerSecStdev       float64            `json:"req_per_sec_stdev"`
	ReqPerSecMax         float64            `json:"req_per_sec_max"`
	ReqPerSecStdevPct    float64            `json:"req_per_sec_stdev_pct"`
}

func connectionsOf(scenarios []progress.ScenarioSnapshot) int64 {
	var total int64
	for _, s := range scenarios {
		if s.Kind == executor.KindRampingArrivalRate {
			total += s.ActiveVUs
		} else {
			total += s.CurrentValue
		}
	}
	return total
}

// newJSONProgressObserver returns an Observer that writes one JSON object
// per tick to w, for --progress-format json.
func newJSONProgressObserver(w io.Writer) progress.Observer {
	enc := json.NewEncoder(w)
	stats := &reqPerSecStats{}
	return func(u progress.ProgressUpdate) {
		stats.observe(u.Metrics.RequestsPerSec)
		stdevPct := 0.0
		if stats.mean != 0 {
			stdevPct = stats.stddev() / stats.mean * 100
		}
		latencyStdevPct := 0.0
		if u.Metrics.LatencyMean != 0 {
			latencyStdevPct = u.Metrics.LatencyStddev / u.Metrics.LatencyMean * 100
		}

		line := jsonProgressLine{
			ElapsedSecs:         u.Elapsed.Seconds(),
			Connections:         connectionsOf(u.Scenarios),
			RequestsPerSec:      u.Metrics.RequestsPerSec,
			BytesReceivedPerSec: u.Metrics.BytesReceivedPerSec,
			BytesSentPerSec:     u.Metrics.BytesSentPerSec,
			TotalRequests:       u.Metrics.TotalRequests,
			TotalBytesReceived:  u.Metrics.TotalBytesReceived,
			TotalBytesSent:      u.Metrics.TotalBytesSent,
			ChecksFailedTotal:   u.Metrics.ChecksFailedTotal,
			LatencyMean:         u.Metrics.LatencyMean,
			LatencyStdev:        u.Metrics.LatencyStddev,
			LatencyMax:          u.Metrics.LatencyMax,
			LatencyP50:          u.Metrics.LatencyP50,
			LatencyP75:          u.Metrics.LatencyP75,
			LatencyP90:          u.Metrics.LatencyP90,
			LatencyP99:          u.Metrics.LatencyP99,
			LatencyStdevPct:     latencyStdevPct,
			ChecksFailed:        u.Metrics.ChecksFailedByName,
			ReqPerSecAvg:        stats.mean,
			ReqPerSecStdev:      stats.stddev(),
			ReqPerSecMax:        stats.max,
			ReqPerSecStdevPct:   stdevPct,
		}
		_ = enc.Encode(line)
	}
}

// newHumanProgressObserver returns an Observer that renders each tick as a
// single human-readable status line, the alternative to JSON output.
func newHumanProgressObserver(w io.Writer) progress.Observer {
	return func(u progress.ProgressUpdate) {
		fmt.Fprintf(w, "[%6.1fs] reqs/s=%.1f total=%.0f checks_failed=%.0f p95=%.1fms\n",
			u.Elapsed.Seconds(), u.Metrics.RequestsPerSec, u.Metrics.TotalRequests,
			u.Metrics.ChecksFailedTotal, u.Metrics.LatencyP95)
	}
}
