package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverbeer/match-scraper/internal/browser"
	"github.com/silverbeer/match-scraper/internal/errs"
)

// fakeQueryPage answers Query from a fixed selector->nodes table and is
// otherwise a no-op; it's just enough to exercise Extractor's row/card
// fallback and column-zip logic without a real browser.
type fakeQueryPage struct {
	results map[string][]browser.Node
}

func (p *fakeQueryPage) Navigate(ctx context.Context, url string) error { return nil }
func (p *fakeQueryPage) Click(ctx context.Context, selector string) error { return nil }
func (p *fakeQueryPage) Fill(ctx context.Context, selector, text string) error { return nil }
func (p *fakeQueryPage) PressEnter(ctx context.Context, selector string) error { return nil }
func (p *fakeQueryPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (p *fakeQueryPage) WaitIdle(ctx context.Context, quiet time.Duration) error { return nil }
func (p *fakeQueryPage) Query(ctx context.Context, selector string) ([]browser.Node, error) {
	return p.results[selector], nil
}
func (p *fakeQueryPage) Text(ctx context.Context, selector string) (string, error) { return "", nil }
func (p *fakeQueryPage) AttachIframe(ctx context.Context, mainSelector, iframeSelector string) error {
	return nil
}
func (p *fakeQueryPage) Close() error { return nil }

func TestExtract_RowModeParsesTwoCleanRows(t *testing.T) {
	sel := DefaultSelectors()
	rowSel := sel.ResultsContainer + " " + sel.TableRow
	page := &fakeQueryPage{results: map[string][]browser.Node{
		rowSel:                     {{Attrs: map[string]string{"data-match-id": "m1"}}, {Attrs: map[string]string{"data-match-id": "m2"}}},
		rowSel + " " + sel.HomeTeam: {{Text: "FC Alpha"}, {Text: "FC Gamma"}},
		rowSel + " " + sel.AwayTeam: {{Text: "FC Beta"}, {Text: "FC Delta"}},
		rowSel + " " + sel.Date:     {{Text: "10/04/2025"}, {Text: "10/05/2025"}},
		rowSel + " " + sel.Score:    {{Text: "2-1"}, {Text: ""}},
		rowSel + " " + sel.Status:   {{Text: "Final"}, {Text: ""}},
	}}

	e := New(page, sel, nil)
	res, err := e.Extract(context.Background(), testContext("2025-10-10"))
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, "m1", res.Matches[0].ExternalMatchID)
	assert.Equal(t, "m2", res.Matches[1].ExternalMatchID)
	assert.Equal(t, 0, res.Skipped)
}

func TestExtract_FallsBackToCardModeWhenNoRows(t *testing.T) {
	sel := DefaultSelectors()
	cardSel := sel.ResultsContainer + " " + sel.Card
	page := &fakeQueryPage{results: map[string][]browser.Node{
		cardSel:                      {{}},
		cardSel + " " + sel.HomeTeam: {{Text: "FC Alpha"}},
		cardSel + " " + sel.AwayTeam: {{Text: "FC Beta"}},
		cardSel + " " + sel.Date:     {{Text: "10/04/2025"}},
	}}

	e := New(page, sel, nil)
	res, err := e.Extract(context.Background(), testContext("2025-10-10"))
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "FC Alpha", res.Matches[0].HomeTeam)
}

func TestExtract_NoRowsNoCardsIsEmptyResultNotError(t *testing.T) {
	sel := DefaultSelectors()
	page := &fakeQueryPage{results: map[string][]browser.Node{}}

	e := New(page, sel, nil)
	res, err := e.Extract(context.Background(), testContext("2025-10-10"))
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
}

func TestExtract_AllRowsUnparseableIsBatchParseError(t *testing.T) {
	sel := DefaultSelectors()
	rowSel := sel.ResultsContainer + " " + sel.TableRow
	page := &fakeQueryPage{results: map[string][]browser.Node{
		rowSel:                     {{}, {}},
		rowSel + " " + sel.HomeTeam: {{Text: ""}, {Text: ""}},
		rowSel + " " + sel.AwayTeam: {{Text: ""}, {Text: ""}},
	}}

	e := New(page, sel, nil)
	_, err := e.Extract(context.Background(), testContext("2025-10-10"))

	var batchErr *errs.BatchParseError
	require.ErrorAs(t, err, &batchErr)
}

func TestExtract_OneBadRowIsSkippedNotFatal(t *testing.T) {
	sel := DefaultSelectors()
	rowSel := sel.ResultsContainer + " " + sel.TableRow
	page := &fakeQueryPage{results: map[string][]browser.Node{
		rowSel:                     {{}, {}},
		rowSel + " " + sel.HomeTeam: {{Text: "FC Alpha"}, {Text: ""}},
		rowSel + " " + sel.AwayTeam: {{Text: "FC Beta"}, {Text: ""}},
		rowSel + " " + sel.Date:     {{Text: "10/04/2025"}, {Text: ""}},
	}}

	e := New(page, sel, nil)
	res, err := e.Extract(context.Background(), testContext("2025-10-10"))
	require.NoError(t, err)
	assert.Len(t, res.Matches, 1)
	assert.Equal(t, 1, res.Skipped)
}
