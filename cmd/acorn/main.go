// Command acorn runs and administers a local acorn node.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/acorn/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
