package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jonathan/lead-collector/internal/export"
	"github.com/jonathan/lead-collector/internal/observability"
)

const (
	menuNewSearch  = "New search"
	menuLastSearch = "Show last search"
	menuHowTo      = "How to use"
	menuExit       = "Exit"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive menu for running searches",
	RunE:  runMenu,
}

func init() {
	rootCmd.AddCommand(menuCmd)
}

func runMenu(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	printer := observability.NewPrinter(os.Stdout)

	pterm.DefaultHeader.WithFullWidth().Println("Lead Collector")
	if !cfg.HasAPIKey() {
		pterm.Warning.Println("GOOGLE_PLACES_API_KEY is not set; add it to .env before searching")
	}

	for {
		choice, err := pterm.DefaultInteractiveSelect.
			WithOptions([]string{menuNewSearch, menuLastSearch, menuHowTo, menuExit}).
			Show("What do you want to do?")
		if err != nil {
			return err
		}

		switch choice {
		case menuNewSearch:
			if err := menuSearch(cmd, a); err != nil {
				pterm.Error.Println(err.Error())
			}
		case menuLastSearch:
			history := a.manager.History().Snapshot()
			if len(history.Searches) == 0 {
				pterm.Info.Println("No searches yet")
				continue
			}
			last := history.Searches[len(history.Searches)-1]
			printer.PrintSearchEntry(&last)
			printer.PrintResults(last.Results)
		case menuHowTo:
			printHowTo()
		case menuExit:
			pterm.Info.Println("Bye")
			return nil
		}
	}
}

func menuSearch(cmd *cobra.Command, a *app) error {
	niche, err := pterm.DefaultInteractiveTextInput.Show("Niche (e.g. padaria)")
	if err != nil {
		return err
	}
	city, err := pterm.DefaultInteractiveTextInput.Show("City (e.g. Curitiba)")
	if err != nil {
		return err
	}
	formatChoice, err := pterm.DefaultInteractiveSelect.WithOptions([]string{"xlsx", "csv"}).Show("Export format")
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(formatChoice)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	final, err := runForeground(ctx, a, strings.TrimSpace(niche), strings.TrimSpace(city))
	if err != nil {
		return err
	}
	_, err = reportAndExport(final, ".", format)
	return err
}

func printHowTo() {
	pterm.DefaultSection.Println("How to use")
	pterm.Println("1. Put GOOGLE_PLACES_API_KEY=<your key> in a .env file next to the binary.")
	pterm.Println("2. Choose \"New search\" and type a niche and a city.")
	pterm.Println("3. The businesses found are visited one by one to collect contacts.")
	pterm.Println("4. Press Ctrl+C to stop early; what was collected is still saved.")
	pterm.Println("5. The spreadsheet is written to the current directory.")
	pterm.Println()
	pterm.Println("Run \"lead_agent serve\" for the web API or \"lead_agent check-key\" to test the key.")
}
