package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rollbackd",
	Short: "rollbackd - deployment rollback orchestration engine",
	Long: `rollbackd decides, when a release is judged unhealthy, whether to revert a
single environment or unwind the whole promotion chain, and sequences and
reports on the unwind.

It is invoked by an external trigger (an alarm handler or an operator) with
the failed deployment descriptor and a reason.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(historyCmd)
}
