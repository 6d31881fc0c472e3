package main

import (
	"encoding/json"
	"fmt"

	"github.com/nogcio/wrkr-go/lib/executor"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// requestSpec is one HTTP call a declarative (non-scripted) VU body issues
// per iteration, in order. It stands in for the external script runtime the
// runner otherwise expects as an opaque vu.Body.
type requestSpec struct {
	Method       string            `json:"method" yaml:"method"`
	URL          string            `json:"url" yaml:"url"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body         string            `json:"body,omitempty" yaml:"body,omitempty"`
	ExpectStatus int               `json:"expectStatus,omitempty" yaml:"expectStatus,omitempty"`
	TimeoutMs    int               `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// scenarioDecl is a single declared scenario: the resolver input plus the
// declarative request sequence its VU body runs.
type scenarioDecl struct {
	executor.ScenarioConfig `yaml:",inline"`
	Tags                    map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Requests                []requestSpec     `json:"requests,omitempty" yaml:"requests,omitempty"`
}

// declaration is the on-disk shape `wrkr run` and `wrkr export-scenario`
// read and write: named scenarios plus the thresholds declared against
// each metric.
type declaration struct {
	Scenarios  map[string]scenarioDecl `json:"scenarios" yaml:"scenarios"`
	Thresholds map[string][]string     `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

func loadDeclaration(fs afero.Fs, path string) (*declaration, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var decl declaration
	if err := json.Unmarshal(data, &decl); err != nil {
		if yerr := yaml.Unmarshal(data, &decl); yerr != nil {
			return nil, fmt.Errorf("parsing %s: not valid JSON (%v) or YAML (%v)", path, err, yerr)
		}
	}
	for name, sc := range decl.Scenarios {
		sc.Name = name
		decl.Scenarios[name] = sc
	}
	return &decl, nil
}

// resolvedScenarios runs the options resolver over every declared scenario,
// applying run as the CLI-level override.
func (d *declaration) resolvedScenarios(run executor.RunConfig) ([]executor.ScenarioConfig, error) {
	declared := make([]executor.ScenarioConfig, 0, len(d.Scenarios))
	for _, sc := range d.Scenarios {
		declared = append(declared, sc.ScenarioConfig)
	}
	return executor.Resolve(declared, run)
}
