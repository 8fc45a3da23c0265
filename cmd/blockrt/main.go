// Command blockrt serves XBlocks from Blockstore bundles and manages the
// bundles and program enrollments behind them.
package main

import (
	"fmt"
	"os"

	"github.com/Othello1111/edx-platform/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
