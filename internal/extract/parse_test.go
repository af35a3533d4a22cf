package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverbeer/match-scraper/internal/matchmodel"
)

func testContext(now string) ParseContext {
	t, _ := time.Parse("2006-01-02", now)
	return ParseContext{
		League:   matchmodel.LeagueHomegrown,
		AgeGroup: matchmodel.U15,
		Division: "Northeast",
		Season:   "2025-2026",
		Now:      t,
	}
}

func TestParseRow_CompletedMatch(t *testing.T) {
	raw := RawRow{
		HomeTeam: "FC Alpha", AwayTeam: "FC Beta",
		Date: "10/04/2025", Time: "3:00 PM",
		ScoreText: "2-1", StatusText: "Final", Venue: "Field 3",
	}
	m, err := ParseRow(raw, testContext("2025-10-10"))
	require.NoError(t, err)
	assert.Equal(t, matchmodel.StatusCompleted, m.MatchStatus)
	require.NotNil(t, m.HomeScore)
	require.NotNil(t, m.AwayScore)
	assert.Equal(t, 2, *m.HomeScore)
	assert.Equal(t, 1, *m.AwayScore)
	assert.Equal(t, "2025-10-04", m.MatchDate)
	assert.NotEmpty(t, m.ExternalMatchID)
}

func TestParseRow_PlaceholderZeroZeroWithoutFinalMarkerIsTBD(t *testing.T) {
	raw := RawRow{
		HomeTeam: "FC Alpha", AwayTeam: "FC Beta",
		Date: "10/20/2025", ScoreText: "0-0", StatusText: "",
	}
	m, err := ParseRow(raw, testContext("2025-10-10"))
	require.NoError(t, err)
	assert.Equal(t, matchmodel.StatusTBD, m.MatchStatus)
	assert.Nil(t, m.HomeScore)
	assert.Nil(t, m.AwayScore)
}

func TestParseRow_LiveMatchInProgress(t *testing.T) {
	raw := RawRow{
		HomeTeam: "FC Alpha", AwayTeam: "FC Beta",
		Date: "10/10/2025", ScoreText: "1-0", StatusText: "LIVE",
	}
	m, err := ParseRow(raw, testContext("2025-10-10"))
	require.NoError(t, err)
	assert.Equal(t, matchmodel.StatusInProgress, m.MatchStatus)
	assert.Nil(t, m.HomeScore)
	assert.Nil(t, m.AwayScore)
}

func TestParseRow_PostponedAndCancelled(t *testing.T) {
	pc := testContext("2025-10-10")

	postponed, err := ParseRow(RawRow{
		HomeTeam: "A", AwayTeam: "B", Date: "10/11/2025", StatusText: "Postponed",
	}, pc)
	require.NoError(t, err)
	assert.Equal(t, matchmodel.StatusPostponed, postponed.MatchStatus)

	cancelled, err := ParseRow(RawRow{
		HomeTeam: "A", AwayTeam: "B", Date: "10/11/2025", StatusText: "Cancelled",
	}, pc)
	require.NoError(t, err)
	assert.Equal(t, matchmodel.StatusCancelled, cancelled.MatchStatus)
}

func TestParseRow_FutureMatchWithNoScoreIsScheduled(t *testing.T) {
	raw := RawRow{HomeTeam: "A", AwayTeam: "B", Date: "12/01/2025"}
	m, err := ParseRow(raw, testContext("2025-10-10"))
	require.NoError(t, err)
	assert.Equal(t, matchmodel.StatusScheduled, m.MatchStatus)
}

func TestParseRow_MissingTeamNameIsError(t *testing.T) {
	raw := RawRow{HomeTeam: "", AwayTeam: "B", Date: "10/10/2025"}
	_, err := ParseRow(raw, testContext("2025-10-10"))
	require.Error(t, err)
}

func TestParseRow_UnrecognizedDateIsError(t *testing.T) {
	raw := RawRow{HomeTeam: "A", AwayTeam: "B", Date: "not a date"}
	_, err := ParseRow(raw, testContext("2025-10-10"))
	require.Error(t, err)
}

func TestParseRow_StableMatchIDPreferredOverSynthesized(t *testing.T) {
	raw := RawRow{HomeTeam: "A", AwayTeam: "B", Date: "10/10/2025", MatchID: "upstream-123"}
	m, err := ParseRow(raw, testContext("2025-10-10"))
	require.NoError(t, err)
	assert.Equal(t, "upstream-123", m.ExternalMatchID)
}

func TestParseDate_AcceptsAllThreeLayouts(t *testing.T) {
	for _, raw := range []string{"10/04/2025", "2025-10-04", "October 4, 2025"} {
		_, err := ParseDate(raw)
		assert.NoError(t, err, raw)
	}
}

func TestParseTime_Accepts12And24Hour(t *testing.T) {
	h, m, err := ParseTime("3:30 PM")
	require.NoError(t, err)
	assert.Equal(t, 15, h)
	assert.Equal(t, 30, m)

	h, m, err = ParseTime("15:30")
	require.NoError(t, err)
	assert.Equal(t, 15, h)
	assert.Equal(t, 30, m)
}
