package executor

import (
	"context"
	"sync"
	"time"
)

// RunIterFunc runs one VU iteration and reports whether it ran to
// completion (as opposed to being cut short by ctx cancellation).
type RunIterFunc func(ctx context.Context, vuID uint64) bool

// ConstantVus spawns exactly VUs tasks at start, each looping on the gate
// until it closes.
type ConstantVus struct {
	Config ScenarioConfig
	Gate   *Gate
	RunIter RunIterFunc
}

// NewConstantVus builds a ConstantVus executor from a validated scenario
// config, constructing the gate from its iterations/duration budget.
func NewConstantVus(cfg ScenarioConfig, runIter RunIterFunc) *ConstantVus {
	var iters uint64
	if cfg.Iterations.Valid {
		iters = uint64(cfg.Iterations.Int64)
	}
	var dur time.Duration
	if cfg.Duration.Valid {
		dur = cfg.Duration.TimeDuration()
	}
	return &ConstantVus{
		Config:  cfg,
		Gate:    NewGate(iters, dur),
		RunIter: runIter,
	}
}

// Run spawns Config.VUs tasks and blocks until every one of them has exited
// (the gate closed and each task observed it between iterations).
func (e *ConstantVus) Run(ctx context.Context) {
	e.Gate.Start(time.Now())

	var wg sync.WaitGroup
	n := int(e.Config.VUs.Int64)
	wg.Add(n)
	for i := 0; i < n; i++ {
		vuID := uint64(i + 1)
		go func() {
			defer wg.Done()
			for e.Gate.Next() {
				if !e.RunIter(ctx, vuID) {
					return
				}
				select {
				case <-ctx.Done():
					return
				default:
				}
			}
		}()
	}
	wg.Wait()
}
