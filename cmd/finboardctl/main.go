// Command finboardctl manages the dashboard credential and inspects
// refresh history from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "finboardctl",
		Short:        "Manage the finboard credential and refresh history",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
