package cmd

import (
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Manage expired-record cleanup",
}

var cleanupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger an immediate cleanup sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := adminClient().RunCleanup(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func init() {
	cleanupCmd.AddCommand(cleanupRunCmd)
	rootCmd.AddCommand(cleanupCmd)
}
