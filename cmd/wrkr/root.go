package main

import (
	"io"
	"os"

	"github.com/nogcio/wrkr-go/errext"
	"github.com/nogcio/wrkr-go/errext/exitcodes"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// globalState groups the process-external state a subcommand needs, so
// tests can swap in an in-memory filesystem and captured writers instead of
// the real os.Stdout/os.Stderr/afero.OsFs.
type globalState struct {
	fs     afero.Fs
	stdout io.Writer
	stderr io.Writer
	logger *logrus.Logger

	// exitCode is the process exit status a subcommand settles on. Kept
	// here rather than returned as a cobra error so it can carry the
	// taxonomy's specific codes (10/11/12/20/30/40) instead of cobra's
	// blanket exit(1) on any returned error.
	exitCode exitcodes.ExitCode
}

func newGlobalState() *globalState {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	return &globalState{
		fs:     afero.NewOsFs(),
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: logger,
	}
}

// Execute builds the command tree and runs it, returning the process exit
// code (as opposed to calling os.Exit itself, so tests can invoke it
// in-process).
func Execute() int {
	gs := newGlobalState()

	var logLevel string
	root := &cobra.Command{
		Use:           "wrkr",
		Short:         "a scriptable load generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				lvl = logrus.InfoLevel
			}
			gs.logger.SetLevel(lvl)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(gs))
	root.AddCommand(newExportScenarioCmd(gs))
	root.AddCommand(newInitCmd(gs))

	if err := root.Execute(); err != nil {
		errext.Fprint(gs.logger, err)
		if gs.exitCode == exitcodes.Success {
			gs.exitCode = exitcodes.InvalidConfig
		}
	}
	return gs.exitCode.Code()
}
