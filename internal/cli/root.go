package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pep",
	Short: "Policy Enforcement Point gateway",
	Long:  "Request-mediation gateway that verifies identity, screens traffic through an IDS, and delegates every access decision to an external PDP.",
}

func Execute() error { return rootCmd.Execute() }

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.AddCommand(cmdServe(), cmdVersion())
}
