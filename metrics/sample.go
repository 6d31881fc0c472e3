package metrics

import "time"

// TimeSeries identifies one tagged series: a registered metric plus the
// resolved tags under which a particular value was recorded.
type TimeSeries struct {
	Metric *Metric
	Tags   *SampleTags
}

// Sample is a single observation recorded against a series.
type Sample struct {
	TimeSeries
	Time  time.Time
	Value float64
}

// ConnectedSamples groups samples that share a single timestamp, e.g. all
// the metrics one HTTP request produces (requests_total, bytes, duration).
type ConnectedSamples struct {
	Samples []Sample
	Tags    *SampleTags
	Time    time.Time
}
