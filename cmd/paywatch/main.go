// Command paywatch tracks submitted Cardano marketplace payments and applies
// their effect once the chain confirms them.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/paywatch/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
