package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deliberoscan",
	Short: "Ingest and serve ARERA delibere",
	Long:  "DeliberoScan ingests regulatory bulletins published by ARERA, extracts structured data with an LLM, and serves them over an HTTP API.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
