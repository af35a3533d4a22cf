// Package extract implements the extractor & parser from spec.md §4.4:
// locates the results container, parses rows (table mode) or cards (card
// mode) into normalized matchmodel.Match records, and classifies each
// match's status from its raw score/marker text.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/silverbeer/match-scraper/internal/matchmodel"
)

var scorePattern = regexp.MustCompile(`(\d+)\s*[-\x{2013}]\s*(\d+)`)

var dateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"January 2, 2006",
}

// ParseDate accepts the short set of date encodings named in spec.md §4.4
// and rejects anything else.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format %q", raw)
}

var timeLayouts = []string{"3:04 PM", "15:04"}

// ParseTime accepts "HH:MM AM/PM" or "HH:MM". An empty string returns an
// error, which ParseRow treats as "no time" (a missing time is acceptable).
func ParseTime(raw string) (hour, minute int, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, fmt.Errorf("empty time")
	}
	for _, layout := range timeLayouts {
		if t, e := time.Parse(layout, raw); e == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("unrecognized time format %q", raw)
}

// RawRow is the heterogeneous input the row/card readers produce: plain
// strings keyed by a normalized column/label name. This is the ONLY place
// an untyped shape exists in the pipeline — it never crosses out of this
// package; ParseRow immediately converts it to a matchmodel.Match.
type RawRow struct {
	HomeTeam   string
	AwayTeam   string
	Date       string
	Time       string // optional
	ScoreText  string // e.g. "2-1", "", "LIVE 1-0"
	Venue      string
	StatusText string // e.g. "FT", "Final", "Postponed", "", "LIVE"
	MatchID    string // optional, from a stable data attribute
}

// ParseContext carries the configuration fields attached to every match
// from the active scrape (spec.md §4.4: "Attach league, age_group,
// division, season from the active configuration").
type ParseContext struct {
	League   matchmodel.League
	AgeGroup matchmodel.AgeGroup
	Division string
	Season   string
	Now      time.Time // injected clock, for "is the date in the past" comparisons
}

// ParseRow converts one raw row/card into a normalized Match, or returns an
// error that the caller (Extractor) logs and skips (row-level failure,
// spec.md §4.4/§7).
func ParseRow(raw RawRow, pc ParseContext) (matchmodel.Match, error) {
	if raw.HomeTeam == "" || raw.AwayTeam == "" {
		return matchmodel.Match{}, fmt.Errorf("missing team name(s)")
	}

	date, err := ParseDate(raw.Date)
	if err != nil {
		return matchmodel.Match{}, err
	}

	m := matchmodel.Match{
		HomeTeam:  raw.HomeTeam,
		AwayTeam:  raw.AwayTeam,
		MatchDate: date.Format("2006-01-02"),
		Venue:     raw.Venue,
		League:    pc.League,
		AgeGroup:  pc.AgeGroup,
		Division:  pc.Division,
		MatchType: "League",
		Season:    pc.Season,
	}

	if hour, minute, err := ParseTime(raw.Time); err == nil {
		dt := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.Local)
		m.MatchDatetime = dt
		m.HasTime = true
	} else {
		m.MatchDatetime = date
	}

	status, homeScore, awayScore := classify(raw, date, pc.Now)
	m.MatchStatus = status
	m.HomeScore = homeScore
	m.AwayScore = awayScore

	if raw.MatchID != "" {
		m.ExternalMatchID = raw.MatchID
	} else {
		m.ExternalMatchID = matchmodel.SynthesizeID(m.HomeTeam, m.AwayTeam, m.MatchDate, m.Division, m.AgeGroup, m.League)
	}

	if err := m.Validate(); err != nil {
		return matchmodel.Match{}, err
	}
	return m, nil
}

// classify derives match_status and scores from the raw score/status text,
// implementing the decision policy of spec.md §4.4 exactly, including the
// placeholder-0-0-is-not-completed rule (Testable Property 2, E2E scenario 6).
func classify(raw RawRow, date, now time.Time) (matchmodel.Status, *int, *int) {
	statusText := strings.ToLower(raw.StatusText)
	scoreText := strings.ToLower(raw.ScoreText)

	if strings.Contains(statusText, "postpon") {
		return matchmodel.StatusPostponed, nil, nil
	}
	if strings.Contains(statusText, "cancel") {
		return matchmodel.StatusCancelled, nil, nil
	}

	home, away, hasScore := parseScore(raw.ScoreText)
	isFinalMarker := strings.Contains(statusText, "final") || strings.Contains(statusText, "ft") ||
		strings.Contains(scoreText, "final") || strings.Contains(scoreText, "ft")
	isLive := strings.Contains(statusText, "live") || strings.Contains(scoreText, "live")
	isPast := date.Before(truncateToDay(now))

	bothZero := hasScore && home == 0 && away == 0

	switch {
	case isLive:
		// Running scores are not recorded: Match.Validate allows scores only
		// on completed matches.
		return matchmodel.StatusInProgress, nil, nil
	case hasScore && bothZero && !isFinalMarker:
		// Placeholder 0-0 without an explicit final marker: TBD, no scores
		// recorded (spec.md §4.4, Testable Property 2).
		return matchmodel.StatusTBD, nil, nil
	case hasScore && (isFinalMarker || (isPast && !bothZero)):
		return matchmodel.StatusCompleted, intp(home), intp(away)
	default:
		return matchmodel.StatusScheduled, nil, nil
	}
}

func parseScore(raw string) (home, away int, ok bool) {
	m := scorePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(m[1])
	a, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return h, a, true
}

func truncateToDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

func intp(v int) *int { return &v }
