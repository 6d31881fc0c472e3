// Package runner is the scenario-runner driver: it resolves scenario
// configs into executors, drives them to completion against a shared
// metrics registry and shared store, then evaluates thresholds and
// assembles the run summary. Everything upstream of it (CLI parsing, the
// script runtime that supplies vu.Body) and downstream of it (output
// formatting) stays out of this package.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nogcio/wrkr-go/errext"
	"github.com/nogcio/wrkr-go/errext/exitcodes"
	"github.com/nogcio/wrkr-go/lib/executor"
	"github.com/nogcio/wrkr-go/metrics"
	"github.com/nogcio/wrkr-go/progress"
	"github.com/nogcio/wrkr-go/sharedstore"
	"github.com/nogcio/wrkr-go/summary"
	"github.com/nogcio/wrkr-go/vu"
)

// newScriptException turns a recovered VU body panic into an error
// carrying a rendered stack trace and errext.AbortReasonScriptError, so it
// can abort the whole run instead of just failing one iteration.
func newScriptException(scenario string, recovered interface{}) error {
	msg := fmt.Sprintf("scenario %s: VU body panicked: %v", scenario, recovered)
	return errext.NewScriptException(msg, string(debug.Stack()))
}

// reservedScenarioTagKeys are keys that are always skipped when a
// scenario's declared tags are merged into the base tags.
var reservedScenarioTagKeys = map[string]bool{"group": true}

// Scenario bundles a resolved executor config with the VU body it drives
// and the scenario-level tags merged into every metric it records.
type Scenario struct {
	Config       executor.ScenarioConfig
	Body         vu.Body
	ScenarioTags map[string]string
}

// Standard metric names for the iteration/transport metrics every scenario
// emits; registered once against the shared registry before any VU runs.
const (
	MetricIterationsTotal   = "iterations_total"
	MetricIterationDuration = "iteration_duration_seconds"
	MetricRequestsTotal     = "requests_total"
	MetricBytesSent         = "bytes_sent_total"
	MetricBytesReceived     = "bytes_received_total"
	MetricRequestDuration   = "request_duration_ms"
	MetricChecks            = "checks"
)

// standardMetrics holds the registered *metrics.Metric handles shared by
// every scenario's iterations.
type standardMetrics struct {
	iterationsTotal   *metrics.Metric
	iterationDuration *metrics.Metric
	requestsTotal     *metrics.Metric
	bytesSent         *metrics.Metric
	bytesReceived     *metrics.Metric
	requestDuration   *metrics.Metric
	checks            *metrics.Metric
}

func registerStandardMetrics(reg *metrics.Registry) (*standardMetrics, error) {
	var sm standardMetrics
	var err error
	reg0 := func(name string, kind metrics.MetricType, vt metrics.ValueType) *metrics.Metric {
		if err != nil {
			return nil
		}
		var m *metrics.Metric
		m, err = reg.NewMetric(name, kind, vt)
		return m
	}
	sm.iterationsTotal = reg0(MetricIterationsTotal, metrics.Counter, metrics.Default)
	sm.iterationDuration = reg0(MetricIterationDuration, metrics.Histogram, metrics.Time)
	sm.requestsTotal = reg0(MetricRequestsTotal, metrics.Counter, metrics.Default)
	sm.bytesSent = reg0(MetricBytesSent, metrics.Counter, metrics.Default)
	sm.bytesReceived = reg0(MetricBytesReceived, metrics.Counter, metrics.Default)
	sm.requestDuration = reg0(MetricRequestDuration, metrics.Histogram, metrics.Time)
	sm.checks = reg0(MetricChecks, metrics.Counter, metrics.Default)
	if err != nil {
		return nil, err
	}
	return &sm, nil
}

// Result is everything the driver produces for a single Run call.
type Result struct {
	RunID      string
	Summary    summary.Summary
	ExitCode   exitcodes.ExitCode
	ScriptErr  error
}

// Options controls a single invocation of Run.
type Options struct {
	Scenarios        []Scenario
	Thresholds       []*metrics.ThresholdSet
	ProgressInterval time.Duration
	ProgressObserve  progress.Observer

	// SystemTags restricts which caller-supplied request/check tags (e.g.
	// "method", "http_status") get attached at the record site. Nil means
	// unrestricted: every tag a VU body passes is kept, matching prior
	// behavior.
	SystemTags metrics.EnabledTags
}

// mergeScenarioTags applies a scenario's base tags onto an already-branched
// TagSet without overriding keys the sample site already set and without
// ever introducing a reserved key.
func mergeScenarioTags(base *metrics.TagSet, scenarioTags map[string]string) *metrics.TagSet {
	existing := base.Map()
	for k, v := range scenarioTags {
		if reservedScenarioTagKeys[k] {
			continue
		}
		if _, present := existing[k]; present {
			continue
		}
		base.AddTag(k, v)
	}
	return base
}

type scenarioState struct {
	name        string
	kind        executor.Kind
	gate        *executor.Gate
	schedule    *executor.Schedule
	arrival     *executor.RampingArrivalRate
	constantVUs int64
	start       time.Time
	iterations  uint64
	failures    uint64
	mu          sync.Mutex
}

// Run drives every scenario in opts.Scenarios to completion concurrently
// against a fresh registry and shared store, then evaluates thresholds and
// returns the summary plus exit code.
func Run(ctx context.Context, opts Options) (Result, error) {
	runID := uuid.NewString()
	reg := metrics.NewRegistry()
	store := sharedstore.NewStore()

	sm, err := registerStandardMetrics(reg)
	if err != nil {
		return Result{}, fmt.Errorf("runner: registering standard metrics: %w", err)
	}

	states := make([]*scenarioState, len(opts.Scenarios))
	var wg sync.WaitGroup
	runStart := time.Now()

	runCtx, abortRun := context.WithCancel(ctx)
	defer abortRun()
	var scriptErrOnce sync.Once
	var scriptErr error

	for i, sc := range opts.Scenarios {
		i, sc := i, sc
		st := &scenarioState{name: sc.Config.Name, kind: sc.Config.Kind, constantVUs: sc.Config.VUs.Int64}
		states[i] = st

		baseTags := reg.BranchTagSetRootWith(map[string]string{"scenario": sc.Config.Name})
		baseTags = mergeScenarioTags(baseTags, sc.ScenarioTags)

		runIter := func(iterCtx context.Context, vuID uint64) (alive bool) {
			vuCtx := vu.NewContext(vuID, sc.Config.Name, store, reg, st.gate, sc.Config.Env, sm.checks, baseTags, opts.SystemTags)

			iterStart := time.Now()
			var iterErr error
			alive = true
			func() {
				defer func() {
					if r := recover(); r != nil {
						iterErr = newScriptException(sc.Config.Name, r)
						alive = false
						scriptErrOnce.Do(func() {
							scriptErr = iterErr
							abortRun()
						})
					}
				}()
				iterErr = sc.Body(iterCtx, vuCtx)
			}()
			elapsedUs := float64(time.Since(iterStart).Microseconds())

			status := "success"
			if iterErr != nil {
				status = "failure"
				st.mu.Lock()
				st.failures++
				st.mu.Unlock()
			}
			st.mu.Lock()
			st.iterations++
			st.mu.Unlock()

			iterTags := baseTags.BranchOut()
			iterTags.AddTag("status", status)
			resolved := reg.ResolveTags(iterTags)
			reg.GetHandle(sm.iterationsTotal, resolved).Add(metrics.Sample{Value: 1})
			reg.GetHandle(sm.iterationDuration, resolved).Add(metrics.Sample{Value: elapsedUs})

			return alive
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			st.start = time.Now()
			switch sc.Config.Kind {
			case executor.KindConstantVUs:
				e := executor.NewConstantVus(sc.Config, runIter)
				st.gate = e.Gate
				e.Run(runCtx)
			case executor.KindRampingVUs:
				e := executor.NewRampingVus(sc.Config, runIter)
				st.gate = e.Gate
				st.schedule = e.Schedule
				e.Run(runCtx)
			case executor.KindRampingArrivalRate:
				e := executor.NewRampingArrivalRate(sc.Config, runIter)
				st.gate = e.Gate
				st.schedule = e.Schedule
				st.arrival = e
				e.Run(runCtx)
			}
		}()
	}

	stopPump := make(chan struct{})
	var pumpWG sync.WaitGroup
	if opts.ProgressObserve != nil {
		pumpWG.Add(1)
		go func() {
			defer pumpWG.Done()
			p := progress.New(reg, snapshotFunc(states), opts.ProgressObserve, opts.ProgressInterval)
			p.Run(stopPump)
		}()
	}

	wg.Wait()
	close(stopPump)
	pumpWG.Wait()

	elapsed := time.Since(runStart)

	violations := metrics.Evaluate(reg, elapsed, opts.Thresholds)

	var scenarioSummaries []summary.ScenarioSummary
	var checksFailed bool
	for _, st := range states {
		scenarioSummaries = append(scenarioSummaries, summary.ScenarioSummary{
			Name:       st.name,
			Iterations: st.iterations,
			Failures:   st.failures,
		})
	}
	for _, s := range reg.Summarize() {
		if s.Metric.Name == MetricChecks && s.Tags["status"] == "fail" {
			if cs, ok := s.Sink.(*metrics.CounterSink); ok && cs.Value > 0 {
				checksFailed = true
			}
		}
	}

	sum := summary.Build(runID, elapsed, reg, scenarioSummaries, violations)

	code := exitcodes.Success
	switch {
	case scriptErr != nil:
		code = exitcodes.ScriptError
	case checksFailed && len(violations) > 0:
		code = exitcodes.ChecksAndThresholdsFailed
	case checksFailed:
		code = exitcodes.ChecksFailed
	case len(violations) > 0:
		code = exitcodes.ThresholdsFailed
	}

	return Result{RunID: runID, Summary: sum, ExitCode: code, ScriptErr: scriptErr}, nil
}

func snapshotFunc(states []*scenarioState) progress.SnapshotFunc {
	return func() []progress.ScenarioSnapshot {
		out := make([]progress.ScenarioSnapshot, 0, len(states))
		for _, st := range states {
			if st == nil {
				continue
			}
			snap := progress.ScenarioSnapshot{Name: st.name, Kind: st.kind}
			if st.kind == executor.KindConstantVUs {
				snap.CurrentValue = st.constantVUs
			}
			if st.schedule != nil {
				elapsed := time.Since(st.start)
				ss := st.schedule.Snapshot(elapsed)
				snap.StageIndex = ss.StageIndex
				snap.StageTotal = ss.StageTotal
				snap.ElapsedStage = ss.ElapsedStage
				snap.RemainStage = ss.RemainStage
				snap.StartTarget = ss.StartTarget
				snap.EndTarget = ss.EndTarget
				snap.CurrentValue = ss.CurrentValue
			}
			if st.arrival != nil {
				snap.ActiveVUs = st.arrival.ActiveWorkers()
				snap.MaxVUs = st.arrival.Config.MaxVUs.Int64
				snap.DroppedIterations = st.arrival.Dropped()
			}
			out = append(out, snap)
		}
		return out
	}
}
