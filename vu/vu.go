// Package vu defines the contract between the scenario runner and the
// external script runtime that actually executes an iteration: a single
// Context value and the Body callback it is passed to.
package vu

import (
	"context"

	"github.com/nogcio/wrkr-go/lib/executor"
	"github.com/nogcio/wrkr-go/metrics"
	"github.com/nogcio/wrkr-go/sharedstore"
)

// Context is everything a single VU task needs to run iterations: its
// identity, handles into the shared store and metrics registry, and the
// gate that tells it whether to keep going.
type Context struct {
	VUID         uint64
	ScenarioName string

	Shared  *sharedstore.Store
	Metrics *metrics.Registry
	Gate    *executor.Gate
	Env     map[string]string

	checksMetric *metrics.Metric
	baseTags     *metrics.TagSet
	systemTags   metrics.EnabledTags
}

// NewContext builds a Context. checksMetric must already be registered as
// a Counter on reg; it is typically the shared "checks" metric. systemTags
// is nil-able: a nil set leaves every caller-supplied tag enabled (the
// default), a non-nil set filters request-site tags (e.g. "method",
// "http_status") down to the ones it names.
func NewContext(
	vuID uint64,
	scenarioName string,
	shared *sharedstore.Store,
	reg *metrics.Registry,
	gate *executor.Gate,
	env map[string]string,
	checksMetric *metrics.Metric,
	baseTags *metrics.TagSet,
	systemTags metrics.EnabledTags,
) *Context {
	return &Context{
		VUID:         vuID,
		ScenarioName: scenarioName,
		Shared:       shared,
		Metrics:      reg,
		Gate:         gate,
		Env:          env,
		checksMetric: checksMetric,
		baseTags:     baseTags,
		systemTags:   systemTags,
	}
}

// Body is the opaque per-iteration callback supplied by the external
// script runtime. Returning an error marks the iteration a failure but
// never aborts the run.
type Body func(ctx context.Context, vu *Context) error

// branchTags starts a mutable TagSet from c.baseTags (the VU's
// scenario-level tags) and layers extraTags on top, dropping any key not
// named in c.systemTags when a restricted set is configured.
func (c *Context) branchTags(extraTags ...string) *metrics.TagSet {
	var base *metrics.TagSet
	if c.baseTags == nil {
		base = metrics.NewTagSet()
	} else {
		base = c.baseTags.BranchOut()
	}
	for i := 0; i+1 < len(extraTags); i += 2 {
		key, value := extraTags[i], extraTags[i+1]
		if c.systemTags != nil && !c.systemTags[key] {
			continue
		}
		base.AddTag(key, value)
	}
	return base
}

// recordCheck applies the pass/fail sample to base, tagged name/status.
// Recording +1 unconditionally (status distinguishes pass from fail) is
// what lets checks_failed_total and a checks rate<N threshold observe
// failures at all.
func (c *Context) recordCheck(base *metrics.TagSet, name string, ok bool) {
	base.AddTag("name", name)
	if ok {
		base.AddTag("status", "pass")
	} else {
		base.AddTag("status", "fail")
	}

	resolved := c.Metrics.ResolveTags(base)
	handle := c.Metrics.GetHandle(c.checksMetric, resolved)
	handle.Add(metrics.Sample{Value: 1})
}

// Check records a named pass/fail observation against the shared "checks"
// counter, tagged with the check's name and status.
func (c *Context) Check(name string, ok bool, extraTags ...string) {
	base := c.branchTags(extraTags...)
	c.recordCheck(base, name, ok)
}

// CheckFor records a check using the same resolved tags as a prior
// RecordRequest call (e.g. asserting on the response that request
// produced), so the check carries that request's method/http_status/protocol
// tags instead of only the scenario-level base tags.
func (c *Context) CheckFor(requestTags *metrics.SampleTags, name string, ok bool) {
	base := metrics.TagSetFromSampleTags(requestTags)
	c.recordCheck(base, name, ok)
}

// RecordRequest records one terminated HTTP or gRPC request's transport
// metrics: requests_total, bytes_sent_total, bytes_received_total, and
// request_duration_ms, all tagged with protocol plus any extra request
// tags (e.g. method, http_status, name). The standard metrics must already be
// registered on c.Metrics (the runner driver does this once at startup);
// registration here is idempotent so the method still works against a
// registry that hasn't seen them yet, e.g. in isolated tests. The
// resolved tags are returned so a subsequent CheckFor can tie a check to
// this same request.
func (c *Context) RecordRequest(protocol string, bytesSent, bytesReceived, durationMs float64, extraTags ...string) *metrics.SampleTags {
	base := c.branchTags(extraTags...)
	base.AddTag("protocol", protocol)
	resolved := c.Metrics.ResolveTags(base)

	record := func(name string, kind metrics.MetricType, vt metrics.ValueType, value float64) {
		m, err := c.Metrics.NewMetric(name, kind, vt)
		if err != nil {
			return
		}
		c.Metrics.GetHandle(m, resolved).Add(metrics.Sample{Value: value})
	}

	record("requests_total", metrics.Counter, metrics.Default, 1)
	record("bytes_sent_total", metrics.Counter, metrics.Default, bytesSent)
	record("bytes_received_total", metrics.Counter, metrics.Default, bytesReceived)
	record("request_duration_ms", metrics.Histogram, metrics.Time, durationMs)

	return resolved
}
