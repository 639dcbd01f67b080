// Command vecgrid runs vector grid editors over CUE projects.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/vecgrid/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
