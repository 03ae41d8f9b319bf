package main

import (
	"context"

	"github.com/spf13/cobra"

	"DeliberoScan/internal/app"
	"DeliberoScan/internal/config"
	"DeliberoScan/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := logging.New(cfg.Logging.Level)

		application, err := app.New(cfg, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		return application.Serve(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
