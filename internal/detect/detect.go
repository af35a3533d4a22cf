// Package detect implements the change detector and state store from
// spec.md §4.6: a JSON snapshot of prior matches keyed by external_match_id,
// classified against a freshly-scraped set via matchmodel.Diff, and
// persisted atomically (write-temp-then-rename), following the teacher's
// checkpoint-to-durable-storage idiom in internal/resources.Manager.
package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/silverbeer/match-scraper/internal/errs"
	"github.com/silverbeer/match-scraper/internal/matchmodel"
)

// Classification names which bucket a match falls into for this run
// (spec.md §4.6).
type Classification string

const (
	Discovered Classification = "discovered"
	Updated    Classification = "updated"
	Unchanged  Classification = "unchanged"
)

// Outcome pairs a match with its classification and (for Updated) the
// field-level diff against the prior snapshot entry.
type Outcome struct {
	Match          matchmodel.Match
	Classification Classification
	Diff           matchmodel.DiffFields
}

// Snapshot is the on-disk state: every match ever seen, keyed by
// external_match_id. Entries accumulate additively across runs (spec.md
// §4.6: "the snapshot is never pruned by this system").
type Snapshot struct {
	Matches map[string]matchmodel.Match `json:"matches"`
}

// Store owns one state file: its advisory lock, snapshot load, and
// atomic persistence.
type Store struct {
	path    string
	mu      sync.Mutex
	lockF   *os.File
	current Snapshot
}

// Open loads the snapshot at path (an empty Snapshot if the file doesn't
// yet exist) and acquires an advisory exclusive lock via a sibling
// `<path>.lock` file, so only one run writes a given state file at a time
// (spec.md §4.6, single-writer concurrency model).
func Open(path string) (*Store, error) {
	lockPath := path + ".lock"
	lockF, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &errs.StateLocked{Path: path}
		}
		return nil, fmt.Errorf("detect: create lock file: %w", err)
	}

	snap, err := load(path)
	if err != nil {
		lockF.Close()
		os.Remove(lockPath)
		return nil, err
	}

	return &Store{path: path, lockF: lockF, current: snap}, nil
}

func load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Snapshot{Matches: map[string]matchmodel.Match{}}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("detect: read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("detect: parse snapshot: %w", err)
	}
	if snap.Matches == nil {
		snap.Matches = map[string]matchmodel.Match{}
	}
	return snap, nil
}

// Classify compares the freshly-scraped matches against the loaded
// snapshot and returns one Outcome per match, in the same order. It does
// not mutate the in-memory snapshot; call Apply to fold outcomes in before
// Persist.
func (s *Store) Classify(fresh []matchmodel.Match) []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make([]Outcome, 0, len(fresh))
	for _, m := range fresh {
		prev, ok := s.current.Matches[m.ExternalMatchID]
		if !ok {
			outcomes = append(outcomes, Outcome{Match: m, Classification: Discovered})
			continue
		}
		diff := matchmodel.Diff(prev, m)
		if diff.IsEmpty() {
			outcomes = append(outcomes, Outcome{Match: m, Classification: Unchanged})
			continue
		}
		outcomes = append(outcomes, Outcome{Match: m, Classification: Updated, Diff: diff})
	}
	return outcomes
}

// Apply folds the classified outcomes into the in-memory snapshot: every
// outcome's match, whatever its classification, overwrites or inserts its
// entry. Call Persist afterward to make it durable.
func (s *Store) Apply(outcomes []Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range outcomes {
		s.current.Matches[o.Match.ExternalMatchID] = o.Match
	}
}

// Persist writes the snapshot to a temp file in the same directory and
// renames it over path, so a crash mid-write never corrupts the existing
// state file (spec.md §4.6).
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return fmt.Errorf("detect: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("detect: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("detect: write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("detect: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("detect: rename temp snapshot: %w", err)
	}
	return nil
}

// Close releases the advisory lock. It does not persist; callers must call
// Persist explicitly before Close when the run completed successfully
// (spec.md §4.9: an interrupted run must not persist state).
func (s *Store) Close() error {
	if s.lockF == nil {
		return nil
	}
	path := s.lockF.Name()
	err := s.lockF.Close()
	os.Remove(path)
	return err
}
