package main

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var checkKeyTimeout time.Duration

var checkKeyCmd = &cobra.Command{
	Use:   "check-key",
	Short: "Verify the Google Places API key with one live search",
	RunE:  runCheckKey,
}

func init() {
	checkKeyCmd.Flags().DurationVar(&checkKeyTimeout, "timeout", 30*time.Second, "Maximum time to wait for the API")
	rootCmd.AddCommand(checkKeyCmd)
}

func runCheckKey(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), checkKeyTimeout)
	defer cancel()

	spinner, _ := pterm.DefaultSpinner.Start("Calling the Places API...")
	a, err := newApp(ctx, cfg)
	if err != nil {
		if spinner != nil {
			spinner.Fail("API key check failed")
		}
		return err
	}
	found, err := a.lookup.CheckKey(ctx)
	if err != nil {
		if spinner != nil {
			spinner.Fail("API key check failed")
		}
		if hint := errors.FlattenHints(err); hint != "" {
			pterm.Info.Println(hint)
		}
		return err
	}

	if spinner != nil {
		spinner.Success("API key accepted")
	}
	pterm.Info.Printf("Test search returned %d places\n", found)
	return nil
}
