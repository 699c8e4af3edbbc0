package externalservices

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/shelfmark/productpipeline/internal/logging"
)

// RodFetcher is a default, in-process Fetcher implementation backed by
// headless Chromium via the Chrome DevTools Protocol (go-rod), used for
// local dev/tests without the paid rendering-proxy collaborator (§6).
type RodFetcher struct {
	browser *rod.Browser
	log     *logging.Logger
}

// NewRodFetcher launches (lazily, on first use) a headless browser instance.
func NewRodFetcher(log *logging.Logger) *RodFetcher {
	return &RodFetcher{browser: rod.New(), log: log}
}

// Connect establishes the underlying browser connection. Call once at
// startup; FetchPage will also lazily connect if this was skipped.
func (f *RodFetcher) Connect() error {
	return f.browser.Connect()
}

// Close releases the browser process.
func (f *RodFetcher) Close() error {
	return f.browser.Close()
}

// FetchPage implements Fetcher (§6). When renderJS is false, a lighter
// navigate-and-read is used (no explicit wait-for-idle); when true, the
// page is given a chance to settle before reading HTML.
func (f *RodFetcher) FetchPage(ctx context.Context, url string, renderJS bool) (*FetchResult, error) {
	page, err := f.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("opening browser page for %s: %w", url, err)
	}
	defer page.Close()

	if renderJS {
		if err := page.WaitStable(500 * time.Millisecond); err != nil {
			f.log.Warn("page did not stabilize before timeout", "url", url, "error", err.Error())
		}
	} else {
		if err := page.WaitLoad(); err != nil {
			return nil, fmt.Errorf("waiting for %s to load: %w", url, err)
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("reading HTML for %s: %w", url, err)
	}

	return &FetchResult{
		URL:        url,
		HTML:       html,
		StatusCode: 200,
		FetchedAt:  time.Now(),
	}, nil
}
