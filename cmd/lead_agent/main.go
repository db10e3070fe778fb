// Package main provides the lead_agent command line: a one-shot search, an
// interactive menu and the HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/lead-collector/internal/config"
	"github.com/jonathan/lead-collector/internal/logger"
)

var (
	configPath string
	logJSON    bool
	logLevel   string

	// cfg is loaded once by the root command before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lead_agent",
	Short: "Business lead collector",
	Long: `lead_agent finds businesses for a niche and city through the Google Places API,
visits their websites to collect emails, LinkedIn, Facebook and WhatsApp contacts,
and exports the leads as spreadsheets.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config.yaml file (defaults to ./config.yaml or ./config/config.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return logger.Initialize(cfg.Log.JSON, cfg.Log.Level)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
