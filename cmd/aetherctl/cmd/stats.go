package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show live token statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := adminClient().TokenStats(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke-user <user-id>",
	Short: "Revoke all refresh tokens and SSO sessions for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := adminClient().RevokeUserTokens(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Revoked credentials for user %s\n", args[0])
		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(revokeCmd)
}
