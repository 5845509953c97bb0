// Command bootsim runs board plans against the simulated register file, either
// in one go or step by step from an interactive shell.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "bootsim",
	Short:        "Simulate the K20 boot sequence on the host",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd, shellCmd, boardsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
