package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skygenesisenterprise/aether-identity/cmd/aetherctl/client"
	"github.com/skygenesisenterprise/aether-identity/log"
)

var (
	appLogger log.Logger

	serverURL  string
	adminToken string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "aetherctl",
	Short: "aetherctl is a CLI tool to operate an aether-identity server",
	Long:  `A command-line interface for signing key rotation, cleanup sweeps, token statistics, and session revocation on an aether-identity server.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		appLogger = log.NewZerologAdapter(level, true)

		v := viper.New()
		v.SetEnvPrefix("AETHER")
		v.AutomaticEnv()
		if serverURL == "" {
			serverURL = v.GetString("SERVER_URL")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if adminToken == "" {
			adminToken = v.GetString("ADMIN_TOKEN")
		}
		if adminToken == "" {
			return fmt.Errorf("admin token is required (--token or AETHER_ADMIN_TOKEN)")
		}
		return nil
	},
}

// adminClient builds the client from the resolved flags. Only valid after
// PersistentPreRunE ran.
func adminClient() *client.AdminClient {
	return client.NewAdminClient(serverURL, adminToken)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default http://localhost:8080, env AETHER_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", "", "admin bearer token (env AETHER_ADMIN_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
