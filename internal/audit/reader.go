package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// ReadFile parses every line of the JSONL file at path into Events,
// skipping (and counting) any line that fails to unmarshal rather than
// failing the whole read — a single corrupt line must not hide the rest
// of the day's trail from `audit view`.
func ReadFile(path string) (events []Event, malformed int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			malformed++
			continue
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return events, malformed, fmt.Errorf("audit: scan %s: %w", path, err)
	}
	return events, malformed, nil
}

// Filter narrows events by the optional criteria `audit view` exposes
// (spec.md §6): any zero-value field in the predicate is ignored.
type Filter struct {
	League        string
	EventType     EventType
	CorrelationID string // external_match_id
	RunID         string
	ChangesOnly   bool // only match_discovered/updated events
}

// Apply returns the subset of events matching f.
func (f Filter) Apply(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if f.League != "" && e.League != f.League {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.CorrelationID != "" && e.CorrelationID != f.CorrelationID {
			continue
		}
		if f.RunID != "" && e.RunID != f.RunID {
			continue
		}
		if f.ChangesOnly && e.EventType != MatchDiscovered && e.EventType != MatchUpdated {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Stats summarizes one day's events for `audit stats` (spec.md §6).
type Stats struct {
	TotalEvents      int            `json:"total_events"`
	ByEventType      map[string]int `json:"by_event_type"`
	MalformedLines   int            `json:"malformed_lines"`
	DistinctRuns     int            `json:"distinct_runs"`
}

// Summarize computes Stats over events.
func Summarize(events []Event, malformed int) Stats {
	s := Stats{ByEventType: map[string]int{}}
	runs := map[string]bool{}
	for _, e := range events {
		s.TotalEvents++
		s.ByEventType[string(e.EventType)]++
		if e.RunID != "" {
			runs[e.RunID] = true
		}
	}
	s.MalformedLines = malformed
	s.DistinctRuns = len(runs)
	return s
}
