package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/jonathan/lead-collector/internal/export"
	"github.com/jonathan/lead-collector/internal/observability"
	"github.com/jonathan/lead-collector/internal/types"
)

// pollInterval is how often the foreground search refreshes its progress bar.
const pollInterval = 200 * time.Millisecond

var (
	searchNiche    string
	searchCity     string
	searchOut      string
	searchFormat   string
	searchDetails  bool
	searchBrowser  bool
	searchVerifyMX bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search in the foreground and export the leads",
	Long: `Search Google Places for a niche in a city, collect contacts from each
business website and write the results to a spreadsheet.

Press Ctrl+C to stop early; the businesses processed so far are still exported.`,
	Example: `  lead_agent search --niche "material de construção" --city "Curitiba"
  lead_agent search -n padaria -c "Porto Alegre" --format csv --out ./leads`,
	RunE: runSearchCmd,
}

func init() {
	searchCmd.Flags().StringVarP(&searchNiche, "niche", "n", "", "Business niche, e.g. padaria (required)")
	searchCmd.Flags().StringVarP(&searchCity, "city", "c", "", "City, e.g. Curitiba (required)")
	searchCmd.Flags().StringVarP(&searchOut, "out", "o", ".", "Output directory")
	searchCmd.Flags().StringVarP(&searchFormat, "format", "f", "xlsx", "Export format: xlsx or csv")
	searchCmd.Flags().BoolVar(&searchDetails, "details", false, "Fetch place details for businesses missing a phone or website")
	searchCmd.Flags().BoolVar(&searchBrowser, "browser", false, "Render JavaScript-heavy sites with headless Chrome")
	searchCmd.Flags().BoolVar(&searchVerifyMX, "verify-mx", false, "Drop emails whose domain has no MX record")
	_ = searchCmd.MarkFlagRequired("niche")
	_ = searchCmd.MarkFlagRequired("city")
	rootCmd.AddCommand(searchCmd)
}

func runSearchCmd(cmd *cobra.Command, _ []string) error {
	format, err := export.ParseFormat(searchFormat)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("details") {
		cfg.Places.FetchDetails = searchDetails
	}
	if cmd.Flags().Changed("browser") {
		cfg.Fetch.UseBrowser = searchBrowser
	}
	if cmd.Flags().Changed("verify-mx") {
		cfg.Enrichment.VerifyEmailMX = searchVerifyMX
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	final, err := runForeground(ctx, a, searchNiche, searchCity)
	if err != nil {
		return err
	}
	path, err := reportAndExport(final, searchOut, format)
	if err != nil {
		return err
	}
	if path == "" && final.State == types.JobFailed {
		return errors.Newf("search failed: %s", final.Error)
	}
	return nil
}

// runForeground starts a job and renders its progress until it finishes.
// Cancelling ctx stops the job after the business being processed.
func runForeground(ctx context.Context, a *app, niche, city string) (*types.JobProgress, error) {
	id, err := a.manager.Start(context.Background(), niche, city)
	if err != nil {
		return nil, err
	}

	pterm.DefaultHeader.WithFullWidth().Printf("Searching %s in %s", niche, city)
	bar, _ := pterm.DefaultProgressbar.WithTotal(100).WithTitle(jobsPhaseTitle(nil)).Start()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	interrupted := ctx.Done()

	for {
		p, err := a.manager.Poll(id)
		if err != nil {
			return nil, err
		}
		renderProgress(bar, p)
		if !p.Running {
			if bar != nil {
				_, _ = bar.Stop()
			}
			return p, nil
		}

		select {
		case <-interrupted:
			pterm.Warning.Println("Stopping after the current business...")
			_ = a.manager.Cancel(id)
			interrupted = nil
		case <-ticker.C:
		}
	}
}

func renderProgress(bar *pterm.ProgressbarPrinter, p *types.JobProgress) {
	if bar == nil {
		return
	}
	bar.UpdateTitle(jobsPhaseTitle(p))
	if delta := int(p.Percent) - bar.Current; delta > 0 {
		bar.Add(delta)
	}
}

func jobsPhaseTitle(p *types.JobProgress) string {
	if p == nil || p.Phase == "" {
		return "Starting search..."
	}
	if p.CurrentItem != "" && p.Running {
		return p.Phase + ": " + p.CurrentItem
	}
	return p.Phase
}

// reportAndExport prints the outcome of a finished job and writes its results
// to dir. It returns the written path, or "" when there was nothing to export.
func reportAndExport(final *types.JobProgress, dir string, format export.Format) (string, error) {
	switch final.State {
	case types.JobFailed:
		pterm.Error.Println(final.Phase)
	case types.JobCancelled:
		pterm.Warning.Println(final.Phase)
	default:
		pterm.Success.Println(final.Phase)
	}

	if len(final.Results) == 0 {
		if final.State != types.JobFailed {
			pterm.Info.Println("No businesses to export")
		}
		return "", nil
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintResults(final.Results)
	printer.PrintStats(observability.ComputeStats(final.Results, time.Duration(final.ElapsedSeconds*float64(time.Second))))

	path, err := writeExport(dir, final.Niche, final.City, format, final.Results, time.Now())
	if err != nil {
		return "", err
	}
	pterm.Success.Printf("Saved %d leads to %s\n", len(final.Results), path)
	return path, nil
}

// writeExport writes records to a timestamped file in dir.
func writeExport(dir, niche, city string, format export.Format, records []types.BusinessRecord, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory %s", dir)
	}
	path := filepath.Join(dir, export.SearchFileName(niche, city, format, at))

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", path)
	}
	if err := export.Write(f, format, export.LeadsLayout(), records); err != nil {
		_ = f.Close()
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "failed to close %s", path)
	}
	return path, nil
}
