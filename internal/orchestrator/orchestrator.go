// Package orchestrator implements the top-level pipeline from spec.md §4.9:
// the eight-step sequence from config resolution through run_completed,
// including partial-failure rules and signal-driven graceful shutdown.
package orchestrator

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/silverbeer/match-scraper/internal/audit"
	"github.com/silverbeer/match-scraper/internal/browser"
	"github.com/silverbeer/match-scraper/internal/clock"
	"github.com/silverbeer/match-scraper/internal/config"
	"github.com/silverbeer/match-scraper/internal/detect"
	"github.com/silverbeer/match-scraper/internal/errs"
	"github.com/silverbeer/match-scraper/internal/extract"
	"github.com/silverbeer/match-scraper/internal/filter"
	"github.com/silverbeer/match-scraper/internal/idgen"
	"github.com/silverbeer/match-scraper/internal/matchmodel"
	"github.com/silverbeer/match-scraper/internal/normalize"
	"github.com/silverbeer/match-scraper/internal/queue"
	"github.com/silverbeer/match-scraper/internal/telemetry/logging"
	"github.com/silverbeer/match-scraper/internal/telemetry/metrics"
)

// ScheduleURL is the upstream schedule page every scrape targets (spec.md
// §4.2); it is the only hardcoded endpoint, since both known league sites
// publish at this fixed path.
const ScheduleURL = "https://www.example-league.test/schedule"

// Deps are the collaborators the orchestrator drives. Each is independently
// fakeable for tests (Design Notes §9).
type Deps struct {
	BrowserDriver interface {
		Open(ctx context.Context, url string) (browser.BrowserPage, error)
		Close() error
	}
	Clock   clock.Clock
	IDs     idgen.IDGen
	Log     logging.Logger
	Metrics metrics.Recorder
	// QueueConnect dials the broker (with its own retry/backoff) and is
	// called by execute() only when cfg.SubmitQueue && !cfg.DryRun — never
	// invoked otherwise, so a --dry-run or --no-submit-queue run never
	// touches the broker. May be nil when queue submission is disabled.
	QueueConnect func(ctx context.Context) (*queue.Publisher, error)
}

// Summary is returned to the CLI layer for exit-code mapping and the final
// log line (spec.md §4.9).
type Summary struct {
	RunID      string
	Discovered int
	Updated    int
	Unchanged  int
	Submitted  int
	Failed     int
	Err        error
}

// Run executes one full scrape: browser → filters → extractor → normalizer
// → change detector → (optional) queue publish → snapshot persistence →
// run_completed, honoring ctx cancellation as graceful shutdown (spec.md
// §4.9: exit 130, no state persistence, audit events retained).
func Run(ctx context.Context, cfg config.Config, deps Deps) Summary {
	runID := deps.IDs.RunID()
	log := deps.Log.With("run_id", runID)
	started := deps.Clock.Now()

	auditWriter, err := audit.New(cfg.AuditDir, deps.Clock.Now)
	if err != nil {
		return Summary{RunID: runID, Err: err}
	}
	defer auditWriter.Close()

	var auditErr error
	writeEvent := func(evt audit.Event) {
		evt.RunID = runID
		evt.League = string(cfg.League)
		evt.AgeGroup = string(cfg.AgeGroup)
		if werr := auditWriter.Write(evt); werr != nil {
			log.ErrorCtx(ctx, "audit write failed", "error", werr.Error())
			if auditErr == nil {
				auditErr = werr
			}
		}
	}

	writeEvent(audit.Event{EventType: audit.RunStarted, Details: runMetadata(cfg)})

	store, err := detect.Open(cfg.StateFile)
	if err != nil {
		writeEvent(audit.Event{EventType: audit.RunCompleted, Details: map[string]any{"error": err.Error()}})
		return Summary{RunID: runID, Err: err}
	}

	summary, runErr := execute(ctx, cfg, deps, log, writeEvent, store)
	summary.RunID = runID

	if ctx.Err() != nil {
		// Graceful shutdown: do not persist state; audit events already
		// written stand (spec.md §4.9).
		_ = store.Close()
		writeEvent(audit.Event{EventType: audit.RunCompleted, Details: summaryDetails(summary, "interrupted")})
		summary.Err = &errs.Interrupted{}
		return summary
	}

	if runErr == nil && auditErr != nil {
		// A lost audit event fails the run: state is not persisted and the
		// AuditWriteError becomes the run's error (exit 6).
		runErr = auditErr
	}
	if runErr == nil && !cfg.DryRun {
		if persistErr := store.Persist(); persistErr != nil {
			runErr = persistErr
		}
	}
	_ = store.Close()

	duration := deps.Clock.Now().Sub(started).Seconds()
	if deps.Metrics != nil {
		deps.Metrics.ObserveRunDuration(duration)
	}

	details := summaryDetails(summary, statusFor(runErr))
	writeEvent(audit.Event{EventType: audit.RunCompleted, Details: details})

	summary.Err = runErr
	return summary
}

func statusFor(err error) string {
	if err == nil {
		return "success"
	}
	return "failed"
}

// runMetadata builds the run_metadata object spec.md §4.7 requires on
// run_started: the resolved league/age-group/division/date range a reader
// needs to know what the run actually searched for.
func runMetadata(cfg config.Config) map[string]any {
	return map[string]any{
		"league":    string(cfg.League),
		"age_group": string(cfg.AgeGroup),
		"division":  cfg.Division,
		"from":      cfg.FromDate,
		"to":        cfg.ToDate,
	}
}

func summaryDetails(s Summary, status string) map[string]any {
	return map[string]any{
		"status":     status,
		"discovered": s.Discovered,
		"updated":    s.Updated,
		"unchanged":  s.Unchanged,
		"submitted":  s.Submitted,
		"failed":     s.Failed,
	}
}

// execute runs steps 2-7 of spec.md §4.9 (browser open through per-match
// event emission and optional publish); snapshot persistence and
// run_completed are handled by the caller so graceful-shutdown can skip
// persistence without duplicating this function's control flow.
func execute(ctx context.Context, cfg config.Config, deps Deps, log logging.Logger, writeEvent func(audit.Event), store *detect.Store) (Summary, error) {
	// Connect to the broker before any scrape work begins, so a
	// broker-unreachable failure aborts the run before match_* events are
	// ever emitted (spec.md §8: "Broker unreachable on startup — exit 5,
	// no audit match_* events emitted").
	var publisher *queue.Publisher
	if cfg.SubmitQueue && !cfg.DryRun {
		if deps.QueueConnect == nil {
			return Summary{}, &errs.BrokerUnavailable{URL: "", Err: fmt.Errorf("queue submission enabled but no connector configured")}
		}
		p, err := deps.QueueConnect(ctx)
		if err != nil {
			return Summary{}, err
		}
		publisher = p
		defer publisher.Close()
	}

	page, err := deps.BrowserDriver.Open(ctx, ScheduleURL)
	if err != nil {
		return Summary{}, err
	}
	defer deps.BrowserDriver.Close()

	from, _ := time.Parse("2006-01-02", cfg.FromDate)
	to, _ := time.Parse("2006-01-02", cfg.ToDate)

	fe := filter.New(page, filter.DefaultSelectors(), log)
	if err := fe.Apply(ctx, filter.Request{
		AgeGroup: string(cfg.AgeGroup),
		Division: cfg.Division,
		Club:     cfg.Club,
		From:     from,
		To:       to,
	}); err != nil {
		return Summary{}, err
	}

	if ctx.Err() != nil {
		return Summary{}, nil
	}

	ex := extract.New(page, extract.DefaultSelectors(), log)
	result, err := ex.Extract(ctx, extract.ParseContext{
		League:   cfg.League,
		AgeGroup: cfg.AgeGroup,
		Division: cfg.Division,
		Season:   currentSeason(deps.Clock.Now()),
		Now:      deps.Clock.Now(),
	})
	if err != nil {
		return Summary{}, err
	}

	norm := normalize.New(nil)
	for i := range result.Matches {
		result.Matches[i].HomeTeam = norm.Apply(result.Matches[i].HomeTeam)
		result.Matches[i].AwayTeam = norm.Apply(result.Matches[i].AwayTeam)
	}

	outcomes := store.Classify(result.Matches)
	store.Apply(outcomes)

	summary := Summary{}
	toPublish := make([]matchmodel.Match, 0, len(outcomes))
	for _, o := range outcomes {
		match := o.Match
		switch o.Classification {
		case detect.Discovered:
			summary.Discovered++
			writeEvent(audit.Event{EventType: audit.MatchDiscovered, CorrelationID: match.ExternalMatchID, MatchData: &match})
			toPublish = append(toPublish, o.Match)
		case detect.Updated:
			summary.Updated++
			writeEvent(audit.Event{EventType: audit.MatchUpdated, CorrelationID: match.ExternalMatchID, MatchData: &match, Details: o.Diff})
			toPublish = append(toPublish, o.Match)
		case detect.Unchanged:
			summary.Unchanged++
			writeEvent(audit.Event{EventType: audit.MatchUnchanged, CorrelationID: match.ExternalMatchID, MatchData: &match})
		}
		if deps.Metrics != nil {
			deps.Metrics.IncMatches(string(o.Match.MatchStatus), string(o.Classification))
		}
	}

	if publisher != nil && len(toPublish) > 0 {
		results := publisher.SubmitBatch(ctx, toPublish)
		for _, r := range results {
			if r.Success {
				summary.Submitted++
				writeEvent(audit.Event{EventType: audit.QueueSubmitted, CorrelationID: r.CorrelationID, Details: map[string]any{"task_id": r.TaskID}})
			} else {
				summary.Failed++
				errMsg := ""
				if r.Err != nil {
					errMsg = r.Err.Error()
				}
				writeEvent(audit.Event{EventType: audit.QueueFailed, CorrelationID: r.CorrelationID, Details: map[string]any{"error": errMsg}})
			}
			if deps.Metrics != nil {
				deps.Metrics.IncQueue(r.Success)
			}
		}
	}

	return summary, nil
}

// currentSeason derives "YYYY-YYYY+1" from now, following the youth soccer
// convention that a season spans fall-to-spring. Config has no season
// field, so every run's season comes from this clock-derived value.
func currentSeason(now time.Time) string {
	year := now.Year()
	if now.Month() < time.July {
		return strconv.Itoa(year-1) + "-" + strconv.Itoa(year)
	}
	return strconv.Itoa(year) + "-" + strconv.Itoa(year+1)
}
