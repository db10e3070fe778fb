package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"

	"github.com/jonathan/lead-collector/internal/logger"
)

// MinContentLength is the minimum visible text length to consider an HTTP
// fetch complete. Shorter pages are likely rendered by JavaScript.
const MinContentLength = 500

// DefaultBrowserTimeout bounds a single browser rendering.
const DefaultBrowserTimeout = 30 * time.Second

// ShouldUseBrowser returns true if the visible text is too short.
func ShouldUseBrowser(visibleText string) bool {
	return len(strings.TrimSpace(visibleText)) < MinContentLength
}

// BrowserRenderer renders pages with a headless Chrome.
// Requires Chrome/Chromium to be installed on the system.
type BrowserRenderer struct {
	Timeout time.Duration
	// Settle is how long to wait after the body is ready for scripts to
	// finish rendering contact widgets.
	Settle time.Duration
}

// Render navigates to url and returns the rendered document HTML.
func (b *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	settle := b.Settle
	if settle <= 0 {
		settle = 2 * time.Second
	}
	log := logger.Named("browser")
	log.Debugw("starting headless browser", logger.FieldURL, url)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", errors.Wrap(err, "browser rendering failed")
	}

	log.Debugw("rendered page", logger.FieldURL, url, "bytes", len(html))
	return html, nil
}
