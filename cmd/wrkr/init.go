package main

import (
	"fmt"

	"github.com/nogcio/wrkr-go/errext/exitcodes"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const starterScenario = `{
  "scenarios": {
    "default": {
      "executor": "constant-vus",
      "vus": 5,
      "duration": "30s",
      "requests": [
        {
          "method": "GET",
          "url": "https://example.com/",
          "expectStatus": 200
        }
      ]
    }
  },
  "thresholds": {
    "checks": ["rate<1.0"]
  }
}
`

// newInitCmd builds the `init` command: it scaffolds a starter scenario
// declaration a user can edit, the declarative equivalent of a "generate a
// starter script" command.
func newInitCmd(gs *globalState) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Scaffold a starter scenario declaration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "scenarios.json"
			if len(args) == 1 {
				path = args[0]
			}

			if !force {
				exists, err := afero.Exists(gs.fs, path)
				if err != nil {
					gs.exitCode = exitcodes.RuntimeError
					return err
				}
				if exists {
					gs.exitCode = exitcodes.InvalidConfig
					return fmt.Errorf("%s already exists; pass --force to overwrite", path)
				}
			}

			if err := writeFile(gs, path, []byte(starterScenario)); err != nil {
				gs.exitCode = exitcodes.RuntimeError
				return err
			}
			fmt.Fprintf(gs.stdout, "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}
