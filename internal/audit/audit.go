// Package audit implements the audit log writer from spec.md §4.7: an
// append-only JSONL trail of every run and match-level event, rotated
// daily by filename (UTC). Grounded on the teacher's append-file
// checkpoint idiom (internal/resources.Manager.checkpointLoop) but flushed
// synchronously per event rather than batched, since the audit trail must
// never be lossy (spec.md §4.7: "a write failure is always fatal").
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/silverbeer/match-scraper/internal/errs"
	"github.com/silverbeer/match-scraper/internal/matchmodel"
)

// EventType enumerates the seven audit event kinds named in spec.md §4.7.
type EventType string

const (
	RunStarted       EventType = "run_started"
	RunCompleted     EventType = "run_completed"
	MatchDiscovered  EventType = "match_discovered"
	MatchUpdated     EventType = "match_updated"
	MatchUnchanged   EventType = "match_unchanged"
	QueueSubmitted   EventType = "queue_submitted"
	QueueFailed      EventType = "queue_failed"
)

// Event is one line of the audit log. CorrelationID is the
// external_match_id for match-level and queue events; run-level events
// leave it empty and are identified by RunID alone.
type Event struct {
	Timestamp     time.Time         `json:"timestamp"`
	EventType     EventType         `json:"event_type"`
	RunID         string            `json:"run_id"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	League        string            `json:"league,omitempty"`
	AgeGroup      string            `json:"age_group,omitempty"`
	MatchData     *matchmodel.Match `json:"match_data,omitempty"`
	Details       any               `json:"details,omitempty"`
}

// Writer appends Events to the day-rotated JSONL file under dir.
type Writer struct {
	dir string
	now func() time.Time

	mu      sync.Mutex
	day     string
	file    *os.File
	bufw    *bufio.Writer
}

// New constructs a Writer rooted at dir (created if absent). now is
// injectable for deterministic tests; pass nil to use time.Now.
func New(dir string, now func() time.Time) (*Writer, error) {
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &errs.AuditWriteError{Err: fmt.Errorf("create audit dir: %w", err)}
	}
	return &Writer{dir: dir, now: now}, nil
}

// Write appends one event, rotating to a new day's file if needed, and
// flushes immediately so the event is durable before Write returns
// (spec.md §4.7: "flush per event").
func (w *Writer) Write(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = w.now()
	}
	day := e.Timestamp.UTC().Format("2006-01-02")

	if err := w.ensureFile(day); err != nil {
		return err
	}

	line, err := json.Marshal(e)
	if err != nil {
		return &errs.AuditWriteError{Err: fmt.Errorf("marshal event: %w", err)}
	}
	if _, err := w.bufw.Write(append(line, '\n')); err != nil {
		return &errs.AuditWriteError{Err: err}
	}
	if err := w.bufw.Flush(); err != nil {
		return &errs.AuditWriteError{Err: err}
	}
	return nil
}

func (w *Writer) ensureFile(day string) error {
	if w.day == day && w.file != nil {
		return nil
	}
	if w.file != nil {
		_ = w.bufw.Flush()
		_ = w.file.Close()
	}

	path := filepath.Join(w.dir, fmt.Sprintf("match-audit-%s.jsonl", day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &errs.AuditWriteError{Err: fmt.Errorf("open audit file: %w", err)}
	}
	w.day = day
	w.file = f
	w.bufw = bufio.NewWriter(f)
	return nil
}

// Close flushes and closes the currently open file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	_ = w.bufw.Flush()
	err := w.file.Close()
	w.file = nil
	return err
}

// PathForDay returns the JSONL file path for day (UTC, "2006-01-02"),
// whether or not it has been written yet — used by the `audit view`/`audit
// stats` CLI subcommands to locate files without needing a live Writer.
func PathForDay(dir, day string) string {
	return filepath.Join(dir, fmt.Sprintf("match-audit-%s.jsonl", day))
}
