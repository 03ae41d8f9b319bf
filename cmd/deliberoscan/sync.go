package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"DeliberoScan/internal/app"
	"DeliberoScan/internal/config"
	"DeliberoScan/internal/logging"
	"DeliberoScan/internal/usecase"
)

var (
	syncAnno    int
	syncSettori string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one ingestion sweep and print the run report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := logging.New(cfg.Logging.Level)

		application, err := app.New(cfg, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		report, err := application.Pipeline().Sync(context.Background(), usecase.SyncRequest{
			Anno:    syncAnno,
			Settori: syncSettori,
		})
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().IntVar(&syncAnno, "anno", 0, "listing year (default: current year)")
	syncCmd.Flags().StringVar(&syncSettori, "settori", "", "sector code (default: configured sector)")
}
