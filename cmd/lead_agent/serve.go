package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jonathan/lead-collector/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that runs searches as background jobs and exposes
their progress, the search history and spreadsheet downloads.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to server.port, or PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if !cfg.HasAPIKey() {
		pterm.Warning.Println("GOOGLE_PLACES_API_KEY is not set; searches will be rejected until it is configured")
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	pterm.Info.Printf("Listening on :%d (Ctrl+C to stop)\n", cfg.Server.Port)
	if err := server.New(cfg, a.manager).Start(); err != nil {
		return err
	}
	pterm.Success.Println("Server stopped cleanly")
	return nil
}
