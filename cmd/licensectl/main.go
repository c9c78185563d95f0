package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"audiolicense/pkg/contracts"
)

var rootCmd = &cobra.Command{
	Use:               "licensectl",
	Version:           contracts.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	Short:             "Operate the license and commerce reconciliation engine",
	Long: `licensectl runs the licensing server and talks to a running instance:
parse certificate serials, verify them against the server and trigger
commerce synchronization for an asset.`,
}

type rootFlags struct {
	server  string
	apiKey  string
	timeout time.Duration
	retries int
}

var rootArgs = rootFlags{
	server:  "http://localhost:8080",
	timeout: 30 * time.Second,
	retries: 3,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.server, "server", envOr("LICENSING_SERVER", rootArgs.server),
		"Base URL of the licensing server.")
	rootCmd.PersistentFlags().StringVar(&rootArgs.apiKey, "api-key", os.Getenv("LICENSING_API_KEY"),
		"Admin API key sent as X-API-Key on admin calls.")
	rootCmd.PersistentFlags().DurationVar(&rootArgs.timeout, "timeout", rootArgs.timeout,
		"The length of time to wait before giving up on the current operation.")
	rootCmd.PersistentFlags().IntVar(&rootArgs.retries, "retries", rootArgs.retries,
		"How many times a failed request is retried.")
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("✗ %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
