// Package cli implements the soclite operator command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiClient *Client
)

var rootCmd = &cobra.Command{
	Use:   "soclite-cli",
	Short: "soc-lite operator CLI",
	Long: `soclite-cli is the operator command-line interface for soc-lite.

Trigger correlation runs, inspect and manage the analysis job queue,
and retry escalation channels against a running soclite server.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(func() {
		apiClient = NewClient(serverURL)
	})

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8086", "soclite server URL")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json")
}
