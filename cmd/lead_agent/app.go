package main

import (
	"context"

	"github.com/jonathan/lead-collector/internal/config"
	"github.com/jonathan/lead-collector/internal/enrichment"
	"github.com/jonathan/lead-collector/internal/fetch"
	"github.com/jonathan/lead-collector/internal/jobs"
	"github.com/jonathan/lead-collector/internal/places"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg     *config.Config
	lookup  *places.Lookup
	manager *jobs.Manager
}

// newApp wires the places lookup, the cached site fetcher and the enrichment
// pipeline into a job manager.
func newApp(ctx context.Context, c *config.Config) (*app, error) {
	lookup, err := places.NewLookup(ctx, places.OptionsFromConfig(c.Places))
	if err != nil {
		return nil, err
	}
	pages := fetch.NewCachedFetcher(fetch.NewFetcher(fetch.OptionsFromConfig(c.Fetch)), fetch.DefaultCacheTTL)
	pipeline := enrichment.New(pages, enrichment.OptionsFromConfig(c.Enrichment))

	return &app{
		cfg:     c,
		lookup:  lookup,
		manager: jobs.NewManager(lookup, pipeline, nil),
	}, nil
}
