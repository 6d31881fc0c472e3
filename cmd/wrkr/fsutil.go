package main

import (
	"fmt"

	"github.com/spf13/afero"
)

func writeFile(gs *globalState, path string, data []byte) error {
	if err := afero.WriteFile(gs.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
