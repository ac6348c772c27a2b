// Command bspgen generates board support source files from board
// descriptions.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/bspgen/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
