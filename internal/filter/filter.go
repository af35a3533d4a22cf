// Package filter implements the filter-engine state machine from spec.md
// §4.3: applying league/age/division/club/calendar filters against the
// upstream iframe's custom dropdown widgets and date-range picker, in an
// order that respects the UI's dependency graph, and verifying each
// application before moving on.
package filter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/silverbeer/match-scraper/internal/browser"
	"github.com/silverbeer/match-scraper/internal/errs"
	"github.com/silverbeer/match-scraper/internal/telemetry/logging"
)

// Selectors names the upstream UI's implementation-internal attributes
// (spec.md §6: "iframe selector, dropdown js-age attribute ... implementation-
// internal but listed in §4.3 as contract for the selector layer").
type Selectors struct {
	AgeDropdown      string
	DivisionDropdown string
	ClubDropdown     string
	ClubSearchInput  string
	DateRangeInput   string
	CalendarLeftPane string
	CalendarRightPane string
	CalendarNextBtnFmt string // fmt string with %s = "left"|"right"
	DayCellFmt       string  // fmt string with %d = day-of-month
	ResultsContainer string
}

// DefaultSelectors are the selector values observed on both known league
// sites (spec.md §6).
func DefaultSelectors() Selectors {
	return Selectors{
		AgeDropdown:        `[data-js="js-age"]`,
		DivisionDropdown:   `[data-js="js-division"]`,
		ClubDropdown:       `[data-js="js-club"]`,
		ClubSearchInput:    `[data-js="js-club"] input[type="search"]`,
		DateRangeInput:     `[data-js="js-date-range"]`,
		CalendarLeftPane:   `.calendar-pane--left`,
		CalendarRightPane:  `.calendar-pane--right`,
		CalendarNextBtnFmt: `.calendar-pane--%s .calendar-nav-next`,
		DayCellFmt:         `[data-day="%d"]`,
		ResultsContainer:   `[data-js="js-results"]`,
	}
}

// Request is the filter matrix to apply for one scrape.
type Request struct {
	AgeGroup string
	Division string
	Club     string // optional
	From, To time.Time
}

// Engine drives the filter state machine against a BrowserPage already
// scoped to the schedule iframe.
type Engine struct {
	page browser.BrowserPage
	sel  Selectors
	log  logging.Logger
}

// New constructs an Engine.
func New(page browser.BrowserPage, sel Selectors, log logging.Logger) *Engine {
	return &Engine{page: page, sel: sel, log: log}
}

// Apply runs the filters in dependency order: age, division, club, date
// range (spec.md §4.3), then waits for the results to settle.
func (e *Engine) Apply(ctx context.Context, req Request) error {
	if err := e.applyDropdown(ctx, e.sel.AgeDropdown, req.AgeGroup, "age group"); err != nil {
		return err
	}
	if err := e.applyDropdown(ctx, e.sel.DivisionDropdown, req.Division, "division"); err != nil {
		return err
	}
	if req.Club != "" {
		if err := e.applyClub(ctx, req.Club); err != nil {
			return err
		}
	}
	if err := e.applyDateRange(ctx, req.From, req.To); err != nil {
		return err
	}
	return e.settle(ctx)
}

// applyDropdown opens a custom dropdown, clicks the option whose data-value
// attribute equals value, then verifies that the dropdown's now-visible
// text contains value. A missing option is a FilterRejected, never a
// silent substitution.
func (e *Engine) applyDropdown(ctx context.Context, dropdownSelector, value, label string) error {
	if err := e.page.WaitFor(ctx, dropdownSelector, 0); err != nil {
		return err
	}
	if err := e.page.Click(ctx, dropdownSelector); err != nil {
		return errs.NewBrowserError("open "+label+" dropdown", err)
	}

	optionSelector := fmt.Sprintf(`%s [role="option"][data-value=%q]`, dropdownSelector, value)
	if err := e.page.WaitFor(ctx, optionSelector, 3*time.Second); err != nil {
		return &errs.FilterRejected{Filter: label, Requested: value}
	}
	if err := e.page.Click(ctx, optionSelector); err != nil {
		return errs.NewBrowserError("select "+label+" option", err)
	}

	visible, err := e.page.Text(ctx, dropdownSelector)
	if err != nil {
		return errs.NewBrowserError("verify "+label+" selection", err)
	}
	if !strings.Contains(visible, value) {
		return &errs.FilterRejected{Filter: label, Requested: value}
	}
	if e.log != nil {
		e.log.DebugCtx(ctx, "filter verified", "filter", label, "value", value)
	}
	return nil
}

// applyClub searches the club dropdown and clicks the first option whose
// text fuzzily contains the requested club name (spec.md §4.3.3: "fuzzy
// contains-match is acceptable").
func (e *Engine) applyClub(ctx context.Context, club string) error {
	if err := e.page.Click(ctx, e.sel.ClubDropdown); err != nil {
		return errs.NewBrowserError("open club dropdown", err)
	}
	if err := e.page.Fill(ctx, e.sel.ClubSearchInput, club); err != nil {
		return errs.NewBrowserError("type club search", err)
	}
	optionListSelector := e.sel.ClubDropdown + ` [role="option"]`
	if err := e.page.WaitFor(ctx, optionListSelector, 3*time.Second); err != nil {
		return &errs.FilterRejected{Filter: "club", Requested: club}
	}

	options, err := e.page.Query(ctx, optionListSelector)
	if err != nil {
		return errs.NewBrowserError("query club options", err)
	}

	pattern := glob.MustCompile("*" + strings.ToLower(club) + "*")
	for i, opt := range options {
		if pattern.Match(strings.ToLower(opt.Text)) {
			optSelector := fmt.Sprintf(`%s:nth-child(%d)`, optionListSelector, i+1)
			if err := e.page.Click(ctx, optSelector); err != nil {
				return errs.NewBrowserError("select club option", err)
			}
			return nil
		}
	}
	return &errs.FilterRejected{Filter: "club", Requested: club}
}

// applyDateRange attempts the direct date-input fill first (strategy a);
// if the results don't visibly refresh it falls back to navigating the
// two-pane calendar widget, including independent right-pane advancement
// for cross-month ranges (strategy b), per spec.md §4.3.4.
func (e *Engine) applyDateRange(ctx context.Context, from, to time.Time) error {
	literal := fmt.Sprintf("%s - %s", from.Format("01/02/2006"), to.Format("01/02/2006"))
	if err := e.page.Fill(ctx, e.sel.DateRangeInput, literal); err == nil {
		if err := e.page.PressEnter(ctx, e.sel.DateRangeInput); err == nil {
			if e.waitForRefresh(ctx) {
				return nil
			}
		}
	}

	if e.log != nil {
		e.log.DebugCtx(ctx, "literal date fill produced no refresh; falling back to calendar navigation")
	}
	return e.applyDateRangeViaCalendar(ctx, from, to)
}

// applyDateRangeViaCalendar opens the calendar, advances the left pane to
// from's month and the right pane to to's month independently (so a
// cross-month range advances the right pane exactly once relative to the
// left), then clicks the from and to day cells.
func (e *Engine) applyDateRangeViaCalendar(ctx context.Context, from, to time.Time) error {
	if err := e.page.Click(ctx, e.sel.DateRangeInput); err != nil {
		return errs.NewBrowserError("open calendar", err)
	}

	if err := e.navigateMonth(ctx, "left", from); err != nil {
		return err
	}
	if err := e.navigateMonth(ctx, "right", to); err != nil {
		return err
	}

	fromSelector := fmt.Sprintf(e.sel.DayCellFmt, from.Day())
	if err := e.page.Click(ctx, e.sel.CalendarLeftPane+" "+fromSelector); err != nil {
		return errs.NewBrowserError("click from-day cell", err)
	}
	toSelector := fmt.Sprintf(e.sel.DayCellFmt, to.Day())
	if err := e.page.Click(ctx, e.sel.CalendarRightPane+" "+toSelector); err != nil {
		return errs.NewBrowserError("click to-day cell", err)
	}
	return nil
}

// navigateMonth clicks the named pane's "next month" control until its
// visible month label matches target's month/year, or returns
// FilterUnavailable if the control disappears (e.g. reached a paywall of
// available months upstream).
func (e *Engine) navigateMonth(ctx context.Context, pane string, target time.Time) error {
	paneSelector := e.sel.CalendarLeftPane
	if pane == "right" {
		paneSelector = e.sel.CalendarRightPane
	}
	nextBtn := fmt.Sprintf(e.sel.CalendarNextBtnFmt, pane)
	wantLabel := target.Format("January 2006")

	for i := 0; i < 24; i++ { // hard ceiling: two years of months
		label, err := e.page.Text(ctx, paneSelector+" .calendar-month-label")
		if err != nil {
			return errs.NewBrowserError("read "+pane+" calendar month label", err)
		}
		if strings.TrimSpace(label) == wantLabel {
			return nil
		}
		if err := e.page.Click(ctx, nextBtn); err != nil {
			return &errs.FilterUnavailable{Selector: nextBtn}
		}
	}
	return &errs.FilterUnavailable{Selector: paneSelector}
}

// waitForRefresh reads the results container's text once before and once
// after a short quiet window; a literal-fill refresh is detected when the
// container's content changes between the two reads.
func (e *Engine) waitForRefresh(ctx context.Context) bool {
	before, err := e.page.Text(ctx, e.sel.ResultsContainer)
	if err != nil {
		return false
	}
	if err := e.page.WaitIdle(ctx, 800*time.Millisecond); err != nil {
		return false
	}
	after, err := e.page.Text(ctx, e.sel.ResultsContainer)
	if err != nil {
		return false
	}
	return before != after
}

// settle waits for the results container to finish mutating after the last
// filter is applied (spec.md §4.3: "prefer verifiable UI state over
// optimistic waits" — a fixed quiet window is the simplest of the three
// acceptable strategies named there).
func (e *Engine) settle(ctx context.Context) error {
	if err := e.page.WaitFor(ctx, e.sel.ResultsContainer, 0); err != nil {
		return err
	}
	return e.page.WaitIdle(ctx, 2*time.Second)
}
