package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverbeer/match-scraper/internal/audit"
	"github.com/silverbeer/match-scraper/internal/browser"
	"github.com/silverbeer/match-scraper/internal/clock"
	"github.com/silverbeer/match-scraper/internal/config"
	"github.com/silverbeer/match-scraper/internal/errs"
	"github.com/silverbeer/match-scraper/internal/queue"
	"github.com/silverbeer/match-scraper/internal/telemetry/logging"
	"github.com/silverbeer/match-scraper/internal/telemetry/metrics"
)

// fakePage answers enough BrowserPage calls for the filter/extract stages
// to walk through a single discovered match without touching a real
// browser.
type fakePage struct {
	texts   map[string]string
	options map[string][]browser.Node
}

func newFakePage() *fakePage {
	return &fakePage{texts: map[string]string{}, options: map[string][]browser.Node{}}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error { return nil }
func (p *fakePage) Click(ctx context.Context, selector string) error { return nil }
func (p *fakePage) Fill(ctx context.Context, selector, text string) error { return nil }
func (p *fakePage) PressEnter(ctx context.Context, selector string) error { return nil }
func (p *fakePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (p *fakePage) WaitIdle(ctx context.Context, quiet time.Duration) error { return nil }
func (p *fakePage) Query(ctx context.Context, selector string) ([]browser.Node, error) {
	return p.options[selector], nil
}
func (p *fakePage) Text(ctx context.Context, selector string) (string, error) {
	return p.texts[selector], nil
}
func (p *fakePage) AttachIframe(ctx context.Context, mainSelector, iframeSelector string) error {
	return nil
}
func (p *fakePage) Close() error { return nil }

type fakeDriver struct{ page browser.BrowserPage }

func (d *fakeDriver) Open(ctx context.Context, url string) (browser.BrowserPage, error) {
	return d.page, nil
}
func (d *fakeDriver) Close() error { return nil }

type fixedIDs struct{ run, task string }

func (f fixedIDs) RunID() string  { return f.run }
func (f fixedIDs) TaskID() string { return f.task }

func testConfig(dir string) config.Config {
	return config.Config{
		League:    "Homegrown",
		AgeGroup:  "U15",
		Division:  "Northeast",
		FromDate:  "2025-10-01",
		ToDate:    "2025-10-31",
		AuditDir:  filepath.Join(dir, "audit"),
		StateFile: filepath.Join(dir, "state.json"),
		Headless:  true,
		Timeout:   time.Second,
	}
}

// TestRun_WiresFullPipelineWithZeroRows exercises the orchestrator's wiring
// end to end (browser open, filters, audit trail, snapshot persistence,
// summary shape) against a fake page with no result rows configured; row
// parsing itself is covered by internal/extract's own tests.
func TestRun_WiresFullPipelineWithZeroRows(t *testing.T) {
	dir := t.TempDir()

	page := newFakePage()
	// Age/division dropdowns must "verify" against the requested value for
	// applyDropdown to succeed with the default empty-option-list fake.
	page.texts[`[data-js="js-age"]`] = "U15"
	page.texts[`[data-js="js-division"]`] = "Northeast"
	page.texts[`[data-js="js-results"]`] = "same"
	// Pre-seat both calendar panes on the target month so the date-range
	// fallback's navigateMonth needs zero clicks (From/To both fall in
	// October 2025 for this config).
	page.texts[`.calendar-pane--left .calendar-month-label`] = "October 2025"
	page.texts[`.calendar-pane--right .calendar-month-label`] = "October 2025"

	deps := Deps{
		BrowserDriver: &fakeDriver{page: page},
		Clock:         &clock.Fixed{Current: mustParse(t, "2025-10-10T00:00:00Z"), Step: time.Second},
		IDs:           fixedIDs{run: "run-1", task: "task-1"},
		Log:           logging.New(false),
		Metrics:       metrics.Noop{},
	}

	summary := Run(context.Background(), testConfig(dir), deps)
	require.NoError(t, summary.Err)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 0, summary.Discovered) // no result rows configured in this fake
}

func TestRun_WritesRunStartedAndRunCompletedAuditEvents(t *testing.T) {
	dir := t.TempDir()

	page := newFakePage()
	page.texts[`[data-js="js-age"]`] = "U15"
	page.texts[`[data-js="js-division"]`] = "Northeast"
	page.texts[`.calendar-pane--left .calendar-month-label`] = "October 2025"
	page.texts[`.calendar-pane--right .calendar-month-label`] = "October 2025"

	now := mustParse(t, "2025-10-10T00:00:00Z")
	deps := Deps{
		BrowserDriver: &fakeDriver{page: page},
		Clock:         &clock.Fixed{Current: now, Step: time.Second},
		IDs:           fixedIDs{run: "run-3", task: "task-1"},
		Log:           logging.New(false),
		Metrics:       metrics.Noop{},
	}

	summary := Run(context.Background(), testConfig(dir), deps)
	require.NoError(t, summary.Err)

	events, _, err := audit.ReadFile(audit.PathForDay(filepath.Join(dir, "audit"), "2025-10-10"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, audit.RunStarted, events[0].EventType)
	assert.Equal(t, audit.RunCompleted, events[len(events)-1].EventType)
	for _, e := range events {
		assert.Equal(t, "run-3", e.RunID)
	}
}

func TestRun_CancelledContextIsGracefulShutdownWithoutPersistingState(t *testing.T) {
	dir := t.TempDir()

	page := newFakePage()
	page.texts[`[data-js="js-age"]`] = "U15"
	page.texts[`[data-js="js-division"]`] = "Northeast"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deps := Deps{
		BrowserDriver: &fakeDriver{page: page},
		Clock:         &clock.Fixed{Current: mustParse(t, "2025-10-10T00:00:00Z"), Step: time.Second},
		IDs:           fixedIDs{run: "run-2", task: "task-1"},
		Log:           logging.New(false),
		Metrics:       metrics.Noop{},
	}

	summary := Run(ctx, testConfig(dir), deps)
	require.Error(t, summary.Err)
	assert.Equal(t, 130, errs.ExitCodeFor(summary.Err))

	_, statErr := os.Stat(filepath.Join(dir, "state.json"))
	assert.True(t, os.IsNotExist(statErr), "state file must not be persisted on graceful shutdown")
}

// TestRun_BrokerUnreachableOnStartupAbortsBeforeMatchEvents exercises the
// spec.md §8 boundary scenario: a failing QueueConnect must still record
// run_started/run_completed(success=false), exit 5, and must never reach
// the match classification step (no match_* events at all), since
// connecting happens before any scrape work begins.
func TestRun_BrokerUnreachableOnStartupAbortsBeforeMatchEvents(t *testing.T) {
	dir := t.TempDir()

	page := newFakePage()
	page.texts[`[data-js="js-age"]`] = "U15"
	page.texts[`[data-js="js-division"]`] = "Northeast"
	page.texts[`.calendar-pane--left .calendar-month-label`] = "October 2025"
	page.texts[`.calendar-pane--right .calendar-month-label`] = "October 2025"

	cfg := testConfig(dir)
	cfg.SubmitQueue = true
	cfg.BrokerURL = "amqp://unreachable.invalid"

	connectErr := &errs.BrokerUnavailable{URL: cfg.BrokerURL, Err: assert.AnError}
	deps := Deps{
		BrowserDriver: &fakeDriver{page: page},
		Clock:         &clock.Fixed{Current: mustParse(t, "2025-10-10T00:00:00Z"), Step: time.Second},
		IDs:           fixedIDs{run: "run-4", task: "task-1"},
		Log:           logging.New(false),
		Metrics:       metrics.Noop{},
		QueueConnect: func(ctx context.Context) (*queue.Publisher, error) {
			return nil, connectErr
		},
	}

	summary := Run(context.Background(), cfg, deps)
	require.Error(t, summary.Err)
	assert.Equal(t, 5, errs.ExitCodeFor(summary.Err))

	events, _, err := audit.ReadFile(audit.PathForDay(filepath.Join(dir, "audit"), "2025-10-10"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.RunStarted, events[0].EventType)
	assert.Equal(t, audit.RunCompleted, events[1].EventType)
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}
