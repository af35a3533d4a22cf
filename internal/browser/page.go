// Package browser implements the browser-automation capability described in
// Design Notes §9: a synchronous-looking BrowserPage, hiding chromedp's
// event-loop-driven CDP protocol from the rest of the pipeline. Only this
// package imports chromedp; internal/filter and internal/extract query
// through BrowserPage.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/silverbeer/match-scraper/internal/errs"
)

// Node is the minimal DOM node shape query operations return: just enough
// for the filter engine and extractor to read text and attributes without
// depending on chromedp types directly.
type Node struct {
	Text  string
	Attrs map[string]string
}

// BrowserPage is the capability the filter engine and extractor depend on.
// All of it is scoped to whatever document (top-level page or attached
// iframe) is currently selected by AttachIframe.
type BrowserPage interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	PressEnter(ctx context.Context, selector string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	WaitIdle(ctx context.Context, quiet time.Duration) error
	Query(ctx context.Context, selector string) ([]Node, error)
	Text(ctx context.Context, selector string) (string, error)
	AttachIframe(ctx context.Context, mainSelector, iframeSelector string) error
	Close() error
}

// Page implements BrowserPage with chromedp.
type Page struct {
	allocCtx   context.Context
	allocStop  context.CancelFunc
	browserCtx context.Context
	browserStop context.CancelFunc

	timeout time.Duration
	slowMo  time.Duration

	inIframe    bool
	iframeFrame *cdp.Node
}

// Options configures Page construction (spec.md §4.2: headless, timeout, slow-motion).
type Options struct {
	Headless bool
	Timeout  time.Duration
	SlowMo   time.Duration
}

// NewPage launches a headless browser per Options. It does not navigate yet.
func NewPage(opts Options) (*Page, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))

	allocCtx, allocStop := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	ctxOpts := []chromedp.ContextOption{}
	browserCtx, browserStop := chromedp.NewContext(allocCtx, ctxOpts...)

	if err := chromedp.Run(browserCtx); err != nil {
		allocStop()
		browserStop()
		return nil, errs.NewBrowserError("launch browser", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Page{
		allocCtx:    allocCtx,
		allocStop:   allocStop,
		browserCtx:  browserCtx,
		browserStop: browserStop,
		timeout:     timeout,
		slowMo:      opts.SlowMo,
	}, nil
}

// Close tears down the browser process.
func (p *Page) Close() error {
	p.browserStop()
	p.allocStop()
	return nil
}

func (p *Page) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

func (p *Page) delay() {
	if p.slowMo > 0 {
		time.Sleep(p.slowMo)
	}
}

// Navigate loads url in the top-level page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	if err := chromedp.Run(chromedp.WithLogf(runCtx, noopLogf), chromedp.Navigate(url)); err != nil {
		return errs.NewBrowserError("navigate to "+url, err)
	}
	p.delay()
	return nil
}

// Click dispatches a click on the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	runCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	defer p.delay()
	return p.run(runCtx, chromedp.Click(selector, chromedp.ByQuery))
}

// Fill clears and types text into the element matching selector.
func (p *Page) Fill(ctx context.Context, selector, text string) error {
	runCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	defer p.delay()
	return p.run(runCtx, chromedp.SetValue(selector, "", chromedp.ByQuery), chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

// PressEnter dispatches an Enter keypress targeted at selector.
func (p *Page) PressEnter(ctx context.Context, selector string) error {
	runCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	defer p.delay()
	return p.run(runCtx, chromedp.SendKeys(selector, "\r", chromedp.ByQuery))
}

// WaitFor blocks until selector is visible, or returns an
// *errs.FilterUnavailable on timeout.
func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.run(runCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return &errs.FilterUnavailable{Selector: selector}
	}
	return nil
}

// WaitIdle waits for a quiet window with no further navigation/DOM churn.
// This is the simplest of the three acceptable settle strategies named in
// spec.md §4.3 (mutation observer, network-idle, or a quiet window); a
// fixed quiet window needs no additional CDP domain wiring.
func (p *Page) WaitIdle(ctx context.Context, quiet time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(quiet):
		return nil
	}
}

// Query returns every element matching selector, scoped to the current
// iframe if AttachIframe was called.
func (p *Page) Query(ctx context.Context, selector string) ([]Node, error) {
	runCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	var nodes []*cdp.Node
	if err := p.run(runCtx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll)); err != nil {
		return nil, errs.NewBrowserError("query "+selector, err)
	}

	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		var text string
		_ = chromedp.Run(runCtx, chromedp.TextContent([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID))
		attrs := make(map[string]string, len(n.Attributes)/2)
		for i := 0; i+1 < len(n.Attributes); i += 2 {
			attrs[n.Attributes[i]] = n.Attributes[i+1]
		}
		out = append(out, Node{Text: text, Attrs: attrs})
	}
	return out, nil
}

// Text returns the text content of the first element matching selector.
func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	runCtx, cancel := p.withTimeout(ctx)
	defer cancel()
	var text string
	if err := p.run(runCtx, chromedp.TextContent(selector, &text, chromedp.ByQuery)); err != nil {
		return "", errs.NewBrowserError("read text of "+selector, err)
	}
	return text, nil
}

// AttachIframe locates mainSelector (spec.md §4.2: `<main role="main">`)
// then the single nested iframe within it, and scopes all subsequent
// queries to that frame's document.
func (p *Page) AttachIframe(ctx context.Context, mainSelector, iframeSelector string) error {
	runCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	var mainNodes []*cdp.Node
	if err := p.run(runCtx, chromedp.Nodes(mainSelector, &mainNodes, chromedp.ByQuery)); err != nil || len(mainNodes) == 0 {
		return errs.NewBrowserError("locate main landmark", err)
	}

	var frameNodes []*cdp.Node
	if err := p.run(runCtx, chromedp.Nodes(iframeSelector, &frameNodes, chromedp.ByQuery, chromedp.FromNode(mainNodes[0]))); err != nil || len(frameNodes) == 0 {
		return errs.NewBrowserError("locate schedule iframe", err)
	}

	p.inIframe = true
	p.iframeFrame = frameNodes[0]
	return nil
}

// run executes actions, rewriting bare selector queries to be scoped to the
// attached iframe's frame when AttachIframe has run. chromedp.FromNode binds
// the query root to the iframe's content document node (spec.md's "iframe
// mode": all DOM work happens inside the iframe's document once attached).
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.inIframe && p.iframeFrame != nil {
		scoped := append([]chromedp.Action{chromedp.FromNode(p.iframeFrame)}, actions...)
		return chromedp.Run(chromedp.WithLogf(ctx, noopLogf), scoped...)
	}
	return chromedp.Run(chromedp.WithLogf(ctx, noopLogf), actions...)
}

func noopLogf(string, ...interface{}) {}
