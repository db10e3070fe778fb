// Package places finds candidate businesses through the Google Places API
// (New) text search.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	placesapi "google.golang.org/api/places/v1"

	"github.com/jonathan/lead-collector/internal/config"
	"github.com/jonathan/lead-collector/internal/logger"
	"github.com/jonathan/lead-collector/internal/schemas"
	"github.com/jonathan/lead-collector/internal/types"
)

// SearchFieldMask limits text search responses to the fields a lead needs.
const SearchFieldMask = "places.id,places.displayName,places.formattedAddress,places.internationalPhoneNumber,places.nationalPhoneNumber,places.websiteUri"

// DetailsFieldMask is SearchFieldMask for the single place endpoint.
const DetailsFieldMask = "id,displayName,formattedAddress,internationalPhoneNumber,nationalPhoneNumber,websiteUri"

// Options configures a Lookup.
type Options struct {
	APIKey string
	// BaseURL overrides the API endpoint, mostly for tests.
	BaseURL            string
	LanguageCode       string
	RegionCode         string
	MaxResultCount     int
	Timeout            time.Duration
	QueryDelay         time.Duration
	Variants           []string
	FetchDetails       bool
	DetailsConcurrency int
}

// OptionsFromConfig maps the places section of the configuration.
func OptionsFromConfig(cfg config.PlacesConfig) Options {
	return Options{
		APIKey:             cfg.APIKey,
		BaseURL:            cfg.BaseURL,
		LanguageCode:       cfg.LanguageCode,
		RegionCode:         cfg.RegionCode,
		MaxResultCount:     cfg.MaxResultCount,
		Timeout:            cfg.Timeout,
		QueryDelay:         cfg.QueryDelay,
		Variants:           cfg.Variants,
		FetchDetails:       cfg.FetchDetails,
		DetailsConcurrency: cfg.DetailsConcurrency,
	}
}

// Lookup searches the places API.
type Lookup struct {
	svc  *placesapi.Service
	opts Options
	log  *zap.SugaredLogger
}

// NewLookup creates a Lookup, filling unset options with defaults. A missing
// key does not fail here; searches reject it before calling the API.
func NewLookup(ctx context.Context, opts Options) (*Lookup, error) {
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	if opts.LanguageCode == "" {
		opts.LanguageCode = "pt-BR"
	}
	if opts.RegionCode == "" {
		opts.RegionCode = "BR"
	}
	if opts.MaxResultCount <= 0 || opts.MaxResultCount > 20 {
		opts.MaxResultCount = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if len(opts.Variants) == 0 {
		opts.Variants = config.DefaultVariants()
	}
	if opts.DetailsConcurrency <= 0 {
		opts.DetailsConcurrency = 4
	}

	var clientOpts []option.ClientOption
	if config.IsUsableAPIKey(opts.APIKey) {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	} else {
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(strings.TrimRight(opts.BaseURL, "/")+"/"))
	}

	svc, err := placesapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create places service")
	}
	return &Lookup{svc: svc, opts: opts, log: logger.Named("places")}, nil
}

// Validate checks the inputs of a search without calling the API.
func (l *Lookup) Validate(niche, city string) error {
	if strings.TrimSpace(niche) == "" || strings.TrimSpace(city) == "" {
		return errors.WithHint(
			errors.Wrap(ErrInvalidQuery, "niche and city are required"),
			"fill in both the niche (e.g. padaria) and the city (e.g. Curitiba)",
		)
	}
	return l.checkKey()
}

func (l *Lookup) checkKey() error {
	if !config.IsUsableAPIKey(l.opts.APIKey) {
		return errors.WithHint(
			errors.Wrap(ErrInvalidQuery, "places API key is not configured"),
			"set GOOGLE_PLACES_API_KEY in the environment or in .env",
		)
	}
	return nil
}

// Variants expands the configured query templates for niche and city.
// Identical expansions are sent once.
func (l *Lookup) Variants(niche, city string) []string {
	niche = strings.TrimSpace(niche)
	city = strings.TrimSpace(city)

	replacer := strings.NewReplacer("{niche}", niche, "{city}", city)
	seen := make(map[string]bool, len(l.opts.Variants))
	queries := make([]string, 0, len(l.opts.Variants))
	for _, tmpl := range l.opts.Variants {
		query := strings.Join(strings.Fields(replacer.Replace(tmpl)), " ")
		key := strings.ToLower(query)
		if query == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, query)
	}
	return queries
}

// Search runs every query variant and returns the businesses found, in
// discovery order, deduplicated by case-insensitive name. Records without a
// name are dropped. A failing variant is logged and skipped; when all of
// them fail the result is empty and the error nil. Only invalid input and
// cancellation of ctx are returned as errors.
func (l *Lookup) Search(ctx context.Context, niche, city string) ([]types.BusinessRecord, error) {
	if err := l.Validate(niche, city); err != nil {
		return nil, err
	}

	log := l.log.With(logger.FieldNiche, niche, logger.FieldCity, city)
	queries := l.Variants(niche, city)

	limit := rate.Inf
	if l.opts.QueryDelay > 0 {
		limit = rate.Every(l.opts.QueryDelay)
	}
	spacing := rate.NewLimiter(limit, 1)

	seen := make(map[string]bool)
	var records []types.BusinessRecord
	failures := 0

	for i, query := range queries {
		if err := spacing.Wait(ctx); err != nil {
			return records, errors.Wrap(ctx.Err(), "places lookup interrupted")
		}

		log.Infow("searching places", logger.FieldQuery, query, "variant", fmt.Sprintf("%d/%d", i+1, len(queries)))
		found, err := l.searchText(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return records, errors.Wrap(ctx.Err(), "places lookup interrupted")
			}
			failures++
			log.Warnw("query variant failed", logger.FieldQuery, query, logger.FieldError, err)
			continue
		}

		added := 0
		for _, record := range found {
			if !record.HasName() {
				continue
			}
			key := record.NameKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			records = append(records, record)
			added++
		}
		log.Debugw("query variant done", logger.FieldQuery, query, logger.FieldCount, len(found), "new", added)
	}

	if failures == len(queries) {
		log.Warnw("every query variant failed", "variants", len(queries))
		return nil, nil
	}

	if l.opts.FetchDetails {
		l.completeDetails(ctx, records)
	}

	log.Infow("places lookup finished", logger.FieldCount, len(records))
	return records, nil
}

// CheckKey confirms that the configured key is accepted by running a single
// search. It returns the number of places found.
func (l *Lookup) CheckKey(ctx context.Context) (int, error) {
	if err := l.checkKey(); err != nil {
		return 0, err
	}
	found, err := l.searchText(ctx, "restaurante São Paulo")
	if err != nil {
		return 0, err
	}
	return len(found), nil
}

func (l *Lookup) searchText(ctx context.Context, query string) ([]types.BusinessRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := l.svc.Places.SearchText(&placesapi.GoogleMapsPlacesV1SearchTextRequest{
		TextQuery:      query,
		LanguageCode:   l.opts.LanguageCode,
		RegionCode:     l.opts.RegionCode,
		MaxResultCount: int64(l.opts.MaxResultCount),
	}).Fields(SearchFieldMask).Context(ctx).Do()
	if err != nil {
		return nil, failure(query, err)
	}
	l.log.Debugw("places API call",
		logger.FieldQuery, query,
		logger.FieldStatus, resp.HTTPStatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)

	records := make([]types.BusinessRecord, 0, len(resp.Places))
	for _, p := range resp.Places {
		if err := checkPlace(p); err != nil {
			l.log.Debugw("skipping place", logger.FieldQuery, query, logger.FieldError, err)
			continue
		}
		records = append(records, record(p))
	}
	return records, nil
}

// details fetches a single place by id.
func (l *Lookup) details(ctx context.Context, placeID string) (types.BusinessRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	p, err := l.svc.Places.Get("places/" + placeID).
		LanguageCode(l.opts.LanguageCode).
		Fields(DetailsFieldMask).
		Context(ctx).
		Do()
	if err != nil {
		return types.BusinessRecord{}, failure(placeID, err)
	}
	if err := checkPlace(p); err != nil {
		return types.BusinessRecord{}, &LookupFailure{Query: placeID, Message: "unexpected response shape", Cause: err}
	}
	return record(p), nil
}

// checkPlace validates a decoded place against the embedded place schema.
func checkPlace(p *placesapi.GoogleMapsPlacesV1Place) error {
	if p == nil {
		return errors.New("empty place")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return schemas.Validate(schemas.PlacesPlace, raw)
}

func record(p *placesapi.GoogleMapsPlacesV1Place) types.BusinessRecord {
	phone := p.InternationalPhoneNumber
	if phone == "" {
		phone = p.NationalPhoneNumber
	}
	var name string
	if p.DisplayName != nil {
		name = p.DisplayName.Text
	}
	return types.BusinessRecord{
		Name:    strings.TrimSpace(name),
		Phone:   strings.TrimSpace(phone),
		Website: strings.TrimSpace(p.WebsiteUri),
		Address: strings.TrimSpace(p.FormattedAddress),
		PlaceID: p.Id,
	}
}

// failure converts an API call error into a LookupFailure.
func failure(query string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = http.StatusText(apiErr.Code)
		}
		return &LookupFailure{Query: query, StatusCode: apiErr.Code, Message: msg}
	}
	return &LookupFailure{Query: query, Message: "request failed", Cause: err}
}
