package browser

import (
	"context"
	"time"

	"github.com/silverbeer/match-scraper/internal/errs"
	"github.com/silverbeer/match-scraper/internal/telemetry/logging"
)

// consentSelectors lists resilient accept-button selectors tried in order;
// the first one present is clicked, and a missing overlay is a no-op
// (spec.md §4.2).
var consentSelectors = []string{
	`button#onetrust-accept-btn-handler`,
	`button[aria-label="Accept all"]`,
	`button[aria-label="Accept cookies"]`,
	`.cookie-consent button.accept`,
}

// Driver owns the browser lifecycle: launch, navigate, consent dismissal,
// and iframe attachment (spec.md §4.2).
type Driver struct {
	page BrowserPage
	log  logging.Logger
}

// New launches a headless (or headed) browser per opts.
func New(opts Options, log logging.Logger) (*Driver, error) {
	page, err := newPage(opts)
	if err != nil {
		return nil, err
	}
	return &Driver{page: page, log: log}, nil
}

// newPage is a package-private indirection so tests can substitute a fake
// Page without changing New's exported signature.
var newPage = func(opts Options) (BrowserPage, error) { return NewPage(opts) }

// Open navigates to url, dismisses any consent overlay, and attaches to the
// schedule iframe nested under `<main role="main">`. The returned
// BrowserPage is scoped to the iframe's document for all subsequent calls.
func (d *Driver) Open(ctx context.Context, url string) (BrowserPage, error) {
	if err := d.page.Navigate(ctx, url); err != nil {
		return nil, err
	}

	d.dismissConsent(ctx)

	if err := d.page.AttachIframe(ctx, `main[role="main"]`, "iframe"); err != nil {
		return nil, errs.NewBrowserError("attach schedule iframe", err)
	}
	return d.page, nil
}

// dismissConsent clicks the first recognized accept-button selector present.
// Absence of every selector is expected and not an error.
func (d *Driver) dismissConsent(ctx context.Context) {
	for _, sel := range consentSelectors {
		waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := d.page.WaitFor(waitCtx, sel, 2*time.Second)
		cancel()
		if err != nil {
			continue
		}
		if err := d.page.Click(ctx, sel); err == nil {
			if d.log != nil {
				d.log.DebugCtx(ctx, "dismissed consent overlay", "selector", sel)
			}
			return
		}
	}
}

// Close tears down the underlying browser.
func (d *Driver) Close() error { return d.page.Close() }
