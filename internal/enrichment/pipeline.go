// Package enrichment visits business websites and merges the contacts found
// there into the records returned by the places lookup.
package enrichment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jonathan/lead-collector/internal/config"
	"github.com/jonathan/lead-collector/internal/extraction"
	"github.com/jonathan/lead-collector/internal/fetch"
	"github.com/jonathan/lead-collector/internal/logger"
	"github.com/jonathan/lead-collector/internal/types"
)

// DefaultDelay spaces consecutive website visits.
const DefaultDelay = 500 * time.Millisecond

// ProgressEvent reports pipeline progress. Record is nil when an item starts
// and set once it has been enriched.
type ProgressEvent struct {
	Index  int
	Total  int
	Label  string
	Record *types.BusinessRecord
}

// Done reports whether the event marks a finished item.
func (e ProgressEvent) Done() bool {
	return e.Record != nil
}

// ProgressCallback is called before and after each record is processed.
type ProgressCallback func(event ProgressEvent)

// Options configures a Pipeline.
type Options struct {
	// Delay between records; zero disables spacing.
	Delay time.Duration
	// MX, when set, discards emails whose domain has no mail exchanger.
	MX MXChecker
}

// OptionsFromConfig maps the enrichment section of the configuration.
func OptionsFromConfig(cfg config.EnrichmentConfig) Options {
	opts := Options{Delay: cfg.Delay}
	if cfg.VerifyEmailMX {
		opts.MX = NewDNSChecker(cfg.DNSServers, 0)
	}
	return opts
}

// Pipeline enriches business records one at a time.
type Pipeline struct {
	fetcher fetch.PageFetcher
	opts    Options
	log     *zap.SugaredLogger
}

// New creates a Pipeline that downloads pages with fetcher.
func New(fetcher fetch.PageFetcher, opts Options) *Pipeline {
	if opts.Delay < 0 {
		opts.Delay = 0
	}
	return &Pipeline{fetcher: fetcher, opts: opts, log: logger.Named("enrichment")}
}

// EnrichAll enriches records in order and returns one output record per
// processed input record. A record whose site cannot be fetched is kept with
// empty contact fields.
//
// Cancellation of ctx is checked between records: the record being processed
// when ctx is cancelled still completes (bounded by the fetch timeout), and
// the records enriched so far are returned.
func (p *Pipeline) EnrichAll(ctx context.Context, records []types.BusinessRecord, onProgress ProgressCallback) []types.BusinessRecord {
	total := len(records)
	out := make([]types.BusinessRecord, 0, total)

	limit := rate.Inf
	if p.opts.Delay > 0 {
		limit = rate.Every(p.opts.Delay)
	}
	spacing := rate.NewLimiter(limit, 1)

	for i, record := range records {
		if ctx.Err() != nil {
			break
		}
		if err := spacing.Wait(ctx); err != nil {
			break
		}

		emit(onProgress, ProgressEvent{Index: i, Total: total, Label: record.Name})

		enriched := p.EnrichOne(context.WithoutCancel(ctx), record)
		out = append(out, enriched)

		emit(onProgress, ProgressEvent{Index: i, Total: total, Label: record.Name, Record: &enriched})
	}

	if len(out) < total {
		p.log.Infow("enrichment stopped early", "processed", len(out), "total", total)
	}
	return out
}

// EnrichOne returns a copy of record with the contacts found on its website.
// It never fails: any problem yields the record with empty contact fields.
func (p *Pipeline) EnrichOne(ctx context.Context, record types.BusinessRecord) (enriched types.BusinessRecord) {
	log := p.log.With(logger.FieldBusiness, record.Name)

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("enrichment panicked", logger.FieldError, fmt.Sprint(r))
			enriched = record.WithContacts(types.Contacts{})
		}
	}()

	if record.Website == "" {
		return record.WithContacts(types.Contacts{})
	}

	contacts := p.contactsFor(ctx, record.Website, log)
	if contacts.Email != "" && p.opts.MX != nil && !p.emailDeliverable(ctx, contacts.Email, log) {
		contacts.Email = ""
	}

	if !contacts.Empty() {
		log.Debugw("contacts found", "fields", contacts.Found())
	}
	return record.WithContacts(contacts)
}

func (p *Pipeline) contactsFor(ctx context.Context, website string, log *zap.SugaredLogger) types.Contacts {
	platform := fetch.DetectPlatform(website)
	if !platform.ShouldFetch() {
		log.Debugw("website is not a company site, reading the link only", logger.FieldURL, website, "platform", platform)
		return extraction.FromLink(website)
	}

	result, err := p.fetcher.Fetch(ctx, website)
	if err != nil {
		log.Infow("website unavailable", logger.FieldURL, website, logger.FieldReason, fetch.ReasonOf(err), logger.FieldError, err)
		return types.Contacts{}
	}

	base := result.FinalURL
	if base == "" {
		base = result.URL
	}
	return extraction.FromResponse(result.ContentType, result.HTML, base)
}

func (p *Pipeline) emailDeliverable(ctx context.Context, email string, log *zap.SugaredLogger) bool {
	ok, err := p.opts.MX.HasMX(ctx, EmailDomain(email))
	if err != nil {
		// An unreachable resolver says nothing about the address.
		log.Debugw("MX lookup failed, keeping email", "email", email, logger.FieldError, err)
		return true
	}
	if !ok {
		log.Debugw("discarding email without MX record", "email", email)
	}
	return ok
}

func emit(callback ProgressCallback, event ProgressEvent) {
	if callback != nil {
		callback(event)
	}
}
