package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(s string) func() time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return func() time.Time { return t }
}

func TestWrite_AppendsOneLinePerEvent(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, fixedNow("2025-10-10T12:00:00Z"))
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(Event{EventType: RunStarted, RunID: "run-1"}))
	require.NoError(t, w.Write(Event{EventType: MatchDiscovered, RunID: "run-1", CorrelationID: "m1"}))

	events, malformed, err := ReadFile(PathForDay(dir, "2025-10-10"))
	require.NoError(t, err)
	assert.Equal(t, 0, malformed)
	require.Len(t, events, 2)
	assert.Equal(t, RunStarted, events[0].EventType)
	assert.Equal(t, MatchDiscovered, events[1].EventType)
}

func TestWrite_RotatesFileAcrossUTCDayBoundary(t *testing.T) {
	dir := t.TempDir()
	day1 := fixedNow("2025-10-10T23:59:00Z")()
	day2 := fixedNow("2025-10-11T00:01:00Z")()

	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return day1
		}
		return day2
	}
	w, err := New(dir, clock)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Write(Event{EventType: RunStarted, RunID: "run-1"}))
	require.NoError(t, w.Write(Event{EventType: RunCompleted, RunID: "run-1"}))

	_, err = os.Stat(PathForDay(dir, "2025-10-10"))
	require.NoError(t, err)
	_, err = os.Stat(PathForDay(dir, "2025-10-11"))
	require.NoError(t, err)
}

func TestReadFile_SkipsMalformedLinesButKeepsRest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "match-audit-2025-10-10.jsonl")
	content := `{"event_type":"run_started","run_id":"r1"}` + "\n" +
		`not json` + "\n" +
		`{"event_type":"run_completed","run_id":"r1"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	events, malformed, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, malformed)
	assert.Len(t, events, 2)
}

func TestFilter_ChangesOnlyExcludesUnchangedAndRunEvents(t *testing.T) {
	events := []Event{
		{EventType: RunStarted},
		{EventType: MatchDiscovered},
		{EventType: MatchUnchanged},
		{EventType: MatchUpdated},
	}
	filtered := Filter{ChangesOnly: true}.Apply(events)
	assert.Len(t, filtered, 2)
}

func TestSummarize_CountsByEventTypeAndDistinctRuns(t *testing.T) {
	events := []Event{
		{EventType: RunStarted, RunID: "r1"},
		{EventType: MatchDiscovered, RunID: "r1"},
		{EventType: RunStarted, RunID: "r2"},
	}
	stats := Summarize(events, 2)
	assert.Equal(t, 3, stats.TotalEvents)
	assert.Equal(t, 2, stats.ByEventType["run_started"])
	assert.Equal(t, 2, stats.DistinctRuns)
	assert.Equal(t, 2, stats.MalformedLines)
}
