// Package cli implements the kaizend command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kaizend",
	Short: "Kaizen habit tracker daemon",
	Long: `Kaizen tracks user-defined measures against periodic goals and pays
rewards into a per-user ledger when goals are met. The daemon serves the
HTTP API and runs the scheduled ledger audit.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
