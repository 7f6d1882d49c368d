package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage JWT signing keys",
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Generate and activate a fresh signing key",
	RunE: func(cmd *cobra.Command, args []string) error {
		keyID, err := adminClient().RotateKeys(cmd.Context())
		if err != nil {
			return err
		}
		appLogger.Info(cmd.Context(), "Key rotation complete", map[string]interface{}{"active_key_id": keyID})
		fmt.Println(keyID)
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List signing key metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := adminClient().ListKeys(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(keys)
	},
}

func printJSON(raw json.RawMessage) error {
	var buf interface{}
	if err := json.Unmarshal(raw, &buf); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func init() {
	keysCmd.AddCommand(keysRotateCmd)
	keysCmd.AddCommand(keysListCmd)
	rootCmd.AddCommand(keysCmd)
}
