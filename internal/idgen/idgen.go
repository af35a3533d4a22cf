// Package idgen provides injectable identifier generation: the run_id
// format from spec.md §3 (YYYYMMDD-HHMMSS-<6-char-random>) and RFC-4122 v4
// task ids for the queue publisher (spec.md §4.8).
package idgen

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"

	"github.com/silverbeer/match-scraper/internal/clock"
)

const runIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// IDGen is the capability the orchestrator and queue publisher depend on.
type IDGen interface {
	RunID() string
	TaskID() string
}

// Generator is the production IDGen, backed by a Clock so run ids are
// deterministic under test.
type Generator struct {
	Clock clock.Clock
}

// New constructs a Generator using the given clock.
func New(c clock.Clock) *Generator {
	return &Generator{Clock: c}
}

// RunID returns an id of the form YYYYMMDD-HHMMSS-<6-char-random>.
func (g *Generator) RunID() string {
	now := g.Clock.Now()
	suffix, err := randomAlnum(6)
	if err != nil {
		// crypto/rand failure is effectively unrecoverable on this host;
		// fall back to a fixed suffix rather than panicking mid-run.
		suffix = "000000"
	}
	return fmt.Sprintf("%s-%s-%s", now.Format("20060102"), now.Format("150405"), suffix)
}

// TaskID returns a fresh RFC-4122 v4 UUID for a broker task.
func (g *Generator) TaskID() string {
	return uuid.New().String()
}

func randomAlnum(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, v := range b {
		out[i] = runIDAlphabet[int(v)%len(runIDAlphabet)]
	}
	return string(out), nil
}
