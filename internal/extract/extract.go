package extract

import (
	"context"
	"fmt"

	"github.com/silverbeer/match-scraper/internal/browser"
	"github.com/silverbeer/match-scraper/internal/errs"
	"github.com/silverbeer/match-scraper/internal/matchmodel"
	"github.com/silverbeer/match-scraper/internal/telemetry/logging"
)

// Selectors names the DOM shapes the extractor reads from, in both of the
// two layouts spec.md §4.4 says upstream uses interchangeably: a table of
// rows, or a list of cards. Field selectors are relative to the row/card
// selector and are queried with Query (one query per column, across every
// row at once, in document order) rather than per-row child lookups, since
// BrowserPage has no node-scoped query primitive.
type Selectors struct {
	ResultsContainer string
	TableRow         string
	Card             string

	HomeTeam string
	AwayTeam string
	Date     string
	Time     string
	Score    string
	Venue    string
	Status   string
	MatchID  string // optional data attribute key, read from the row node's Attrs
}

// DefaultSelectors matches the layout observed on both known league sites.
func DefaultSelectors() Selectors {
	return Selectors{
		ResultsContainer: `[data-js="js-results"]`,
		TableRow:         "tr.match-row",
		Card:             ".match-card",
		HomeTeam:         ".team-home",
		AwayTeam:         ".team-away",
		Date:             ".match-date",
		Time:             ".match-time",
		Score:            ".match-score",
		Venue:            ".match-venue",
		Status:           ".match-status",
		MatchID:          "data-match-id",
	}
}

// Result is the outcome of one extraction pass.
type Result struct {
	Matches []matchmodel.Match
	Skipped int // rows that failed row-level parsing and were skipped
}

// Extractor reads the results container of a BrowserPage already scoped to
// the schedule iframe, falling back from table-row mode to card mode when
// no rows are found (spec.md §4.4).
type Extractor struct {
	page browser.BrowserPage
	sel  Selectors
	log  logging.Logger
}

// New constructs an Extractor.
func New(page browser.BrowserPage, sel Selectors, log logging.Logger) *Extractor {
	return &Extractor{page: page, sel: sel, log: log}
}

// Extract reads every visible match row/card and parses it into a
// normalized Match. A row that fails to parse is logged and skipped
// (ParseError); if the container reports content but zero rows parse
// cleanly, that is a BatchParseError (spec.md §4.4, §7).
func (e *Extractor) Extract(ctx context.Context, pc ParseContext) (Result, error) {
	rowSelector, rootNodes, err := e.resolveRoot(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(rootNodes) == 0 {
		return Result{}, nil
	}

	rows, err := e.readRows(ctx, rowSelector, len(rootNodes))
	if err != nil {
		return Result{}, err
	}

	var res Result
	for i, raw := range rows {
		if rootNodes[i].Attrs != nil {
			if id := rootNodes[i].Attrs[e.sel.MatchID]; id != "" {
				raw.MatchID = id
			}
		}
		m, err := ParseRow(raw, pc)
		if err != nil {
			res.Skipped++
			perr := &errs.ParseError{Row: fmt.Sprint(i), Err: err}
			if e.log != nil {
				e.log.WarnCtx(ctx, "skipped unparseable row", "index", i, "error", perr.Error())
			}
			continue
		}
		res.Matches = append(res.Matches, m)
	}

	if len(res.Matches) == 0 && res.Skipped > 0 {
		return Result{}, &errs.BatchParseError{
			Msg: fmt.Sprintf("%d rows present, 0 parsed cleanly", res.Skipped),
		}
	}
	return res, nil
}

// resolveRoot tries table-row mode first, falling back to card mode, per
// spec.md §4.4 ("the extractor must tolerate either markup shape").
func (e *Extractor) resolveRoot(ctx context.Context) (string, []browser.Node, error) {
	rowSelector := e.sel.ResultsContainer + " " + e.sel.TableRow
	rows, err := e.page.Query(ctx, rowSelector)
	if err != nil {
		return "", nil, err
	}
	if len(rows) > 0 {
		return rowSelector, rows, nil
	}

	cardSelector := e.sel.ResultsContainer + " " + e.sel.Card
	cards, err := e.page.Query(ctx, cardSelector)
	if err != nil {
		return "", nil, err
	}
	return cardSelector, cards, nil
}

// readRows queries each field column across every row at once and zips the
// results by index. A column selector that matches fewer nodes than rowCount
// (e.g. an optional field absent on some rows) leaves the remaining rows'
// value for that field empty rather than erroring — absence is handled by
// ParseRow/classify, not here.
func (e *Extractor) readRows(ctx context.Context, rowSelector string, rowCount int) ([]RawRow, error) {
	columns := map[string]*[]string{
		e.sel.HomeTeam: nil,
		e.sel.AwayTeam: nil,
		e.sel.Date:     nil,
		e.sel.Time:     nil,
		e.sel.Score:    nil,
		e.sel.Venue:    nil,
		e.sel.Status:   nil,
	}
	values := make(map[string][]string, len(columns))
	for sel := range columns {
		if sel == "" {
			continue
		}
		nodes, err := e.page.Query(ctx, rowSelector+" "+sel)
		if err != nil {
			return nil, err
		}
		texts := make([]string, len(nodes))
		for i, n := range nodes {
			texts[i] = n.Text
		}
		values[sel] = texts
	}

	at := func(sel string, i int) string {
		texts := values[sel]
		if i < len(texts) {
			return texts[i]
		}
		return ""
	}

	rows := make([]RawRow, rowCount)
	for i := range rows {
		rows[i] = RawRow{
			HomeTeam:   at(e.sel.HomeTeam, i),
			AwayTeam:   at(e.sel.AwayTeam, i),
			Date:       at(e.sel.Date, i),
			Time:       at(e.sel.Time, i),
			ScoreText:  at(e.sel.Score, i),
			Venue:      at(e.sel.Venue, i),
			StatusText: at(e.sel.Status, i),
		}
	}
	return rows, nil
}
