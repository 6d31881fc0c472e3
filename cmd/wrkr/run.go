package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/nogcio/wrkr-go/errext"
	"github.com/nogcio/wrkr-go/errext/exitcodes"
	"github.com/nogcio/wrkr-go/httpclient"
	"github.com/nogcio/wrkr-go/lib/executor"
	"github.com/nogcio/wrkr-go/lib/types"
	"github.com/nogcio/wrkr-go/metrics"
	"github.com/nogcio/wrkr-go/runner"
	"github.com/spf13/cobra"
	null "gopkg.in/guregu/null.v3"
)

type runFlags struct {
	vus            int64
	iterations     int64
	duration       string
	progressFormat string
	summaryOut     string
	systemTags     string
}

func newRunCmd(gs *globalState) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [flags] scenarios-file",
		Short: "Run the declared scenarios to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runScenarios(gs, args[0], flags)
			gs.exitCode = code
			return err
		},
	}

	cmd.Flags().Int64VarP(&flags.vus, "vus", "u", 0, "override VUs for every constant-vus scenario")
	cmd.Flags().Int64VarP(&flags.iterations, "iterations", "i", 0, "override iterations for every constant-vus scenario")
	cmd.Flags().StringVarP(&flags.duration, "duration", "d", "", "override duration for every constant-vus scenario")
	cmd.Flags().StringVar(&flags.progressFormat, "progress-format", "human", "progress output format: json, human, or none")
	cmd.Flags().StringVarP(&flags.summaryOut, "summary-output", "o", "", "write the end-of-run summary JSON here instead of stdout")
	cmd.Flags().StringVar(&flags.systemTags, "system-tags", "", "comma-separated request/check tags to keep (default: keep all)")

	return cmd
}

func runOverrides(flags runFlags) (executor.RunConfig, error) {
	var run executor.RunConfig
	if flags.vus > 0 {
		run.VUs = null.IntFrom(flags.vus)
	}
	if flags.iterations > 0 {
		run.Iterations = null.IntFrom(flags.iterations)
	}
	if flags.duration != "" {
		d, err := types.ParseExtendedDuration(flags.duration)
		if err != nil {
			return run, fmt.Errorf("invalid --duration: %w", err)
		}
		run.Duration = types.NewNullDuration(d, true)
	}
	return run, nil
}

func runScenarios(gs *globalState, path string, flags runFlags) (exitcodes.ExitCode, error) {
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

	client, err := httpclient.New(nil)
	if err != nil {
		return exitcodes.RuntimeError, fmt.Errorf("building http client: %w", err)
	}

	var scenarios []runner.Scenario
	for _, cfg := range resolved {
		sc := decl.Scenarios[cfg.Name]
		scenarios = append(scenarios, runner.Scenario{
			Config:       cfg,
			Body:         buildHTTPBody(client, sc.Requests),
			ScenarioTags: sc.Tags,
		})
	}

	var thresholds []*metrics.ThresholdSet
	for metricName, exprs := range decl.Thresholds {
		set, err := metrics.NewThresholdSet(metricName, exprs)
		if err != nil {
			return exitcodes.InvalidConfig, fmt.Errorf("thresholds: %w", err)
		}
		thresholds = append(thresholds, set)
	}

	var systemTags metrics.EnabledTags
	if flags.systemTags != "" {
		if err := systemTags.UnmarshalText([]byte(flags.systemTags)); err != nil {
			return exitcodes.InvalidConfig, fmt.Errorf("invalid --system-tags: %w", err)
		}
	}

	opts := runner.Options{
		Scenarios:        scenarios,
		Thresholds:       thresholds,
		ProgressInterval: time.Second,
		SystemTags:       systemTags,
	}
	switch flags.progressFormat {
	case "json":
		opts.ProgressObserve = newJSONProgressObserver(gs.stdout)
	case "human":
		opts.ProgressObserve = newHumanProgressObserver(gs.stderr)
	case "none":
	default:
		return exitcodes.InvalidConfig, fmt.Errorf("unknown --progress-format %q", flags.progressFormat)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := runner.Run(ctx, opts)
	if err != nil {
		return exitcodes.RuntimeError, err
	}
	if result.ScriptErr != nil {
		errext.Fprint(gs.logger, result.ScriptErr)
	}

	if err := writeSummary(gs, flags.summaryOut, result); err != nil {
		return exitcodes.RuntimeError, err
	}

	return result.ExitCode, nil
}

func writeSummary(gs *globalState, out string, result runner.Result) error {
	data, err := json.MarshalIndent(result.Summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling summary: %w", err)
	}
	if out == "" {
		fmt.Fprintln(gs.stdout, string(data))
		return nil
	}
	return writeFile(gs, out, data)
}
