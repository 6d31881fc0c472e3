package executor

import (
	"fmt"

	"github.com/nogcio/wrkr-go/errext"
	"github.com/nogcio/wrkr-go/lib/types"
	null "gopkg.in/guregu/null.v3"
)

// invalidInput builds an InvalidInput-kind error for a resolution failure.
func invalidInput(format string, args ...interface{}) error {
	return errext.NewError(errext.InvalidInput, fmt.Sprintf(format, args...), nil)
}

// Kind identifies an executor implementation.
type Kind string

const (
	KindConstantVUs       Kind = "constant-vus"
	KindRampingVUs        Kind = "ramping-vus"
	KindRampingArrivalRate Kind = "ramping-arrival-rate"
)

// kindAliases maps every accepted spelling of an executor name to its
// canonical Kind.
var kindAliases = map[string]Kind{
	"constant-vus":        KindConstantVUs,
	"constant":            KindConstantVUs,
	"per-vu-iterations":   KindConstantVUs,
	"ramping-vus":         KindRampingVUs,
	"ramping-arrival-rate": KindRampingArrivalRate,
	"ramping-rps":         KindRampingArrivalRate,
}

// ResolveKind normalizes an executor type string, defaulting to
// KindConstantVUs when empty.
func ResolveKind(raw string) (Kind, error) {
	if raw == "" {
		return KindConstantVUs, nil
	}
	k, ok := kindAliases[raw]
	if !ok {
		return "", invalidInput("unknown executor type %q", raw)
	}
	return k, nil
}

// ScenarioConfig is a single, fully-resolved scenario ready to hand to a
// driver. Exactly one of the Kind-specific field groups is meaningful.
type ScenarioConfig struct {
	Name string `json:"-" yaml:"-"`
	Kind Kind   `json:"executor" yaml:"executor"`

	// ConstantVUs
	VUs        null.Int           `json:"vus,omitempty" yaml:"vus,omitempty"`
	Iterations null.Int           `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	Duration   types.NullDuration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// RampingVUs
	StartVUs null.Int `json:"startVUs,omitempty" yaml:"startVUs,omitempty"`
	Stages   []Stage  `json:"stages,omitempty" yaml:"stages,omitempty"`

	// RampingArrivalRate
	StartRate       null.Int           `json:"startRate,omitempty" yaml:"startRate,omitempty"`
	TimeUnit        types.NullDuration `json:"timeUnit,omitempty" yaml:"timeUnit,omitempty"`
	PreAllocatedVUs null.Int           `json:"preAllocatedVUs,omitempty" yaml:"preAllocatedVUs,omitempty"`
	MaxVUs          null.Int           `json:"maxVUs,omitempty" yaml:"maxVUs,omitempty"`

	Exec string            `json:"exec,omitempty" yaml:"exec,omitempty"`
	Env  map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}

// RunConfig carries CLI-level overrides, applied with the highest
// precedence during resolution.
type RunConfig struct {
	VUs        null.Int
	Iterations null.Int
	Duration   types.NullDuration
}

// applyOverrides layers run on top of scenario, run taking precedence for
// any field it sets.
func applyOverrides(scenario ScenarioConfig, run RunConfig) ScenarioConfig {
	if run.VUs.Valid {
		scenario.VUs = run.VUs
	}
	if run.Iterations.Valid {
		scenario.Iterations = run.Iterations
	}
	if run.Duration.Valid {
		scenario.Duration = run.Duration
	}
	return scenario
}

// Validate checks a single resolved scenario against the invariants
// required before it can be handed to a driver.
func (c ScenarioConfig) Validate() error {
	switch c.Kind {
	case KindConstantVUs:
		if !c.VUs.Valid || c.VUs.Int64 < 1 {
			return invalidInput("scenario %q: vus must be >= 1", c.Name)
		}
		if !c.Iterations.Valid && !c.Duration.Valid {
			return invalidInput("scenario %q: at least one of iterations or duration is required", c.Name)
		}
		if c.Iterations.Valid && c.Iterations.Int64 < 1 {
			return invalidInput("scenario %q: iterations must be >= 1", c.Name)
		}
		if c.Duration.Valid && c.Duration.TimeDuration() <= 0 {
			return invalidInput("scenario %q: duration must be > 0", c.Name)
		}

	case KindRampingVUs:
		if len(c.Stages) == 0 {
			return invalidInput("scenario %q: stages must not be empty", c.Name)
		}
		if !c.StartVUs.Valid || c.StartVUs.Int64 < 0 {
			return invalidInput("scenario %q: startVUs must be >= 0", c.Name)
		}
		for i, st := range c.Stages {
			if !st.Duration.Valid || st.Duration.TimeDuration() <= 0 {
				return invalidInput("scenario %q: stage %d duration must be > 0", c.Name, i)
			}
			if !st.Target.Valid || st.Target.Int64 < 0 {
				return invalidInput("scenario %q: stage %d target must be >= 0", c.Name, i)
			}
		}

	case KindRampingArrivalRate:
		if len(c.Stages) == 0 {
			return invalidInput("scenario %q: stages must not be empty", c.Name)
		}
		if !c.StartRate.Valid || c.StartRate.Int64 < 0 {
			return invalidInput("scenario %q: startRate must be >= 0", c.Name)
		}
		if !c.TimeUnit.Valid || c.TimeUnit.TimeDuration() <= 0 {
			return invalidInput("scenario %q: timeUnit must be > 0", c.Name)
		}
		if !c.PreAllocatedVUs.Valid || c.PreAllocatedVUs.Int64 < 1 {
			return invalidInput("scenario %q: preAllocatedVUs must be >= 1", c.Name)
		}
		if !c.MaxVUs.Valid {
			c.MaxVUs = c.PreAllocatedVUs
		}
		if c.MaxVUs.Int64 < c.PreAllocatedVUs.Int64 {
			return invalidInput("scenario %q: maxVUs must be >= preAllocatedVUs", c.Name)
		}
		for i, st := range c.Stages {
			if !st.Duration.Valid || st.Duration.TimeDuration() <= 0 {
				return invalidInput("scenario %q: stage %d duration must be > 0", c.Name, i)
			}
			if !st.Target.Valid || st.Target.Int64 < 0 {
				return invalidInput("scenario %q: stage %d target must be >= 0", c.Name, i)
			}
		}

	default:
		return invalidInput("scenario %q: unresolved executor kind", c.Name)
	}
	return nil
}

// Resolve applies run overrides and per-scenario defaults, validating the
// result, for every declared scenario in order.
func Resolve(declared []ScenarioConfig, run RunConfig) ([]ScenarioConfig, error) {
	out := make([]ScenarioConfig, 0, len(declared))
	for _, decl := range declared {
		kind, err := ResolveKind(string(decl.Kind))
		if err != nil {
			return nil, invalidInput("scenario %q: %v", decl.Name, err)
		}
		decl.Kind = kind

		resolved := applyOverrides(decl, run)
		if resolved.Kind == KindRampingArrivalRate && !resolved.MaxVUs.Valid {
			resolved.MaxVUs = resolved.PreAllocatedVUs
		}
		if err := resolved.Validate(); err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}
