package main

import (
	"fmt"

	"github.com/nogcio/wrkr-go/errext/exitcodes"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newExportScenarioCmd builds the `export-scenario` command: it resolves a
// declaration the same way `run` would, then dumps the fully-resolved
// scenario set as YAML, so consumers can inspect exactly what would run
// without actually driving any traffic.
func newExportScenarioCmd(gs *globalState) *cobra.Command {
	var flags runFlags
	var out string

	cmd := &cobra.Command{
		Use:   "export-scenario [flags] scenarios-file",
		Short: "Resolve a scenario declaration and print it as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := exportScenario(gs, args[0], flags, out)
			gs.exitCode = code
			return err
		},
	}

	cmd.Flags().Int64VarP(&flags.vus, "vus", "u", 0, "override VUs for every constant-vus scenario")
	cmd.Flags().Int64VarP(&flags.iterations, "iterations", "i", 0, "override iterations for every constant-vus scenario")
	cmd.Flags().StringVarP(&flags.duration, "duration", "d", "", "override duration for every constant-vus scenario")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the YAML here instead of stdout")

	return cmd
}

func exportScenario(gs *globalState, path string, flags runFlags, out string) (exitcodes.ExitCode, error) {
	decl, err := loadDeclaration(gs.fs, path)
	if err != nil {
		return exitcodes.InvalidConfig, err
	}

	run, err := runOverrides(flags)
	if err != nil {
		return exitcodes.InvalidConfig, err
	}

	resolved, err := decl.resolvedScenarios(run)
	if err != nil {
		return exitcodes.InvalidConfig, err
	}

	named := make(map[string]interface{}, len(resolved))
	for _, cfg := range resolved {
		named[cfg.Name] = cfg
	}

	data, err := yaml.Marshal(map[string]interface{}{"scenarios": named, "thresholds": decl.Thresholds})
	if err != nil {
		return exitcodes.RuntimeError, fmt.Errorf("marshalling scenarios: %w", err)
	}

	if out == "" {
		fmt.Fprint(gs.stdout, string(data))
		return exitcodes.Success, nil
	}
	return exitcodes.Success, writeFile(gs, out, data)
}
