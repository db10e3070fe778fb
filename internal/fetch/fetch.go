// Package fetch retrieves company web pages for contact extraction.
// Failures are returned as *Error values tagged with a Reason so callers can
// degrade to "nothing found" instead of aborting.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/jonathan/lead-collector/internal/config"
	"github.com/jonathan/lead-collector/internal/extraction"
	"github.com/jonathan/lead-collector/internal/logger"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultUserAgent is a desktop Chrome identity; many small business sites
// reject obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultMaxBodyBytes caps how much of a page is read.
const DefaultMaxBodyBytes int64 = 2 << 20

// ErrUpstreamUnavailable matches every fetch failure caused by the remote
// site (timeouts, connection errors, bad status, non-HTML content).
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Reason classifies a fetch failure.
type Reason string

const (
	ReasonTimeout    Reason = "timeout"
	ReasonConnection Reason = "connection"
	ReasonHTTPStatus Reason = "http-status"
	ReasonNonHTML    Reason = "non-html"
	ReasonInvalidURL Reason = "invalid-url"
)

// Result holds the content of a fetched page.
type Result struct {
	URL         string
	FinalURL    string
	HTML        string
	ContentType string
	StatusCode  int
	Rendered    bool
}

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Reason     Reason
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s (%s): %s: %v", e.URL, e.Reason, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s (%s): %s", e.URL, e.Reason, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrUpstreamUnavailable) match remote failures.
func (e *Error) Is(target error) bool {
	return target == ErrUpstreamUnavailable && e.Reason != ReasonInvalidURL
}

// ReasonOf returns the Reason of a fetch failure, or "" for other errors.
func ReasonOf(err error) Reason {
	var fetchErr *Error
	if errors.As(err, &fetchErr) {
		return fetchErr.Reason
	}
	return ""
}

// Renderer renders a page in a real browser and returns its HTML.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Options configures the fetch behavior.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	Headers      map[string]string
	MaxBodyBytes int64

	// UseBrowser renders pages whose visible text is shorter than
	// MinContentLength with Renderer.
	UseBrowser     bool
	BrowserTimeout time.Duration
	Renderer       Renderer

	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		BrowserTimeout: DefaultBrowserTimeout,
	}
}

// OptionsFromConfig maps the fetch section of the configuration. Unset
// values fall back to the defaults in NewFetcher.
func OptionsFromConfig(cfg config.FetchConfig) *Options {
	return &Options{
		Timeout:        cfg.Timeout,
		UserAgent:      cfg.UserAgent,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		UseBrowser:     cfg.UseBrowser,
		BrowserTimeout: cfg.BrowserTimeout,
	}
}

// DefaultHeaders returns the browser-like header set sent with every request.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language":           "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7",
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
	}
}

// Fetcher retrieves pages with a shared HTTP client.
type Fetcher struct {
	opts     Options
	client   *http.Client
	renderer Renderer
}

// NewFetcher creates a Fetcher. A nil opts uses DefaultOptions.
func NewFetcher(opts *Options) *Fetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if o.BrowserTimeout <= 0 {
		o.BrowserTimeout = DefaultBrowserTimeout
	}

	client := o.Client
	if client == nil {
		client = &http.Client{Timeout: o.Timeout}
	}

	renderer := o.Renderer
	if renderer == nil && o.UseBrowser {
		renderer = &BrowserRenderer{Timeout: o.BrowserTimeout}
	}

	return &Fetcher{opts: o, client: client, renderer: renderer}
}

// NormalizeURL trims the URL and prefixes https:// when the scheme is missing.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "https://" + strings.TrimPrefix(raw, "//")
}

// Fetch retrieves HTML content from a URL. Only 2xx responses with an HTML
// content type succeed; everything else is an *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	urlStr := NormalizeURL(rawURL)
	log := logger.Named("fetch").With(logger.FieldURL, urlStr)

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Host == "" {
		return nil, &Error{URL: rawURL, Reason: ReasonInvalidURL, Message: "invalid URL", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Reason: ReasonInvalidURL, Message: "failed to create request", Cause: err}
	}
	for key, value := range DefaultHeaders() {
		req.Header.Set(key, value)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	for key, value := range f.opts.Headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		log.Debugw("request failed", logger.FieldError, err)
		return nil, &Error{URL: urlStr, Reason: transportReason(err), Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			URL:        urlStr,
			Reason:     ReasonHTTPStatus,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
		}
	}
	if !extraction.IsHTMLContentType(contentType) {
		return nil, &Error{
			URL:        urlStr,
			Reason:     ReasonNonHTML,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected content type %q", contentType),
		}
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, &Error{URL: urlStr, Reason: transportReason(err), Message: "failed to read response body", Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		FinalURL:    resp.Request.URL.String(),
		HTML:        string(bodyBytes),
		ContentType: contentType,
		StatusCode:  resp.StatusCode,
	}
	log.Debugw("fetched page",
		logger.FieldStatus, resp.StatusCode,
		"bytes", len(bodyBytes),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)

	if f.renderer != nil && f.opts.UseBrowser && ShouldUseBrowser(extraction.VisibleText(result.HTML)) {
		rendered, err := f.renderer.Render(ctx, result.FinalURL)
		if err != nil {
			log.Debugw("browser rendering failed, keeping HTTP body", logger.FieldError, err)
		} else if rendered != "" {
			result.HTML = rendered
			result.Rendered = true
		}
	}

	return result, nil
}

func transportReason(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonConnection
}
