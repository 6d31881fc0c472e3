// Command wrkr drives scenario declarations through the runner package and
// reports progress, summary, and exit code to the shell that invoked it.
package main

import "os"

func main() {
	os.Exit(Execute())
}
