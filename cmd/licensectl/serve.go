package main

import (
	"github.com/spf13/cobra"

	"audiolicense/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the licensing HTTP server",
	Long: `Run the licensing HTTP server until SIGINT or SIGTERM.
Configuration comes from --config (or the default config locations) and
LICENSING_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: serveCmdRun,
}

type serveFlags struct {
	configFile string
}

var serveArgs serveFlags

func init() {
	serveCmd.Flags().StringVar(&serveArgs.configFile, "config", "",
		"Path to a YAML config file.")
	rootCmd.AddCommand(serveCmd)
}

func serveCmdRun(cmd *cobra.Command, args []string) error {
	application, err := app.NewApplication(cmd.Context(), serveArgs.configFile)
	if err != nil {
		return err
	}
	return application.Run()
}
