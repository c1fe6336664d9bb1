package main

import (
	"fmt"
	"os"

	"github.com/roach88/vcdsync/internal/cli"
)

// main executes the root command. Errors already reported by a command
// carry an exit code; anything else (bad flags, unknown commands) is
// printed here first.
func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
