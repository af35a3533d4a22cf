// Package errs implements the typed error taxonomy from spec.md §7. Each
// error type carries the exit code the CLI surface reports for it, so the
// orchestrator and CLI layer never need a parallel switch statement.
package errs

import "fmt"

// ConfigError is returned by the config resolver before any I/O occurs.
type ConfigError struct{ Msg string }

func (e *ConfigError) Error() string { return "config error: " + e.Msg }
func (e *ConfigError) ExitCode() int { return 2 }

// NewConfigError constructs a ConfigError with a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// BrowserError covers browser launch, navigation, iframe-not-found, and
// per-action timeout failures.
type BrowserError struct{ Msg string; Err error }

func (e *BrowserError) Error() string {
	if e.Err != nil {
		return "browser error: " + e.Msg + ": " + e.Err.Error()
	}
	return "browser error: " + e.Msg
}
func (e *BrowserError) Unwrap() error { return e.Err }
func (e *BrowserError) ExitCode() int { return 3 }

// NewBrowserError constructs a BrowserError.
func NewBrowserError(msg string, err error) *BrowserError {
	return &BrowserError{Msg: msg, Err: err}
}

// FilterUnavailable means a selector the filter engine depends on was not
// found after the configured timeout.
type FilterUnavailable struct{ Selector string }

func (e *FilterUnavailable) Error() string {
	return fmt.Sprintf("filter unavailable: selector %q not found", e.Selector)
}
func (e *FilterUnavailable) ExitCode() int { return 3 }

// FilterRejected means the dropdown's option list does not contain the
// requested value. The filter engine fails loudly rather than silently
// substituting a close match (spec.md §4.3).
type FilterRejected struct{ Filter, Requested string }

func (e *FilterRejected) Error() string {
	return fmt.Sprintf("filter rejected: %s option %q not offered by upstream UI", e.Filter, e.Requested)
}
func (e *FilterRejected) ExitCode() int { return 3 }

// ParseError is a row-level parse failure. Row-level ParseErrors are caught
// and counted by the extractor, not propagated (spec.md §4.4, §7).
type ParseError struct{ Row string; Err error }

func (e *ParseError) Error() string { return fmt.Sprintf("parse error on row %q: %v", e.Row, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// BatchParseError is raised when the results container reports at least
// one match but zero rows were extractable; this fails the run.
type BatchParseError struct{ Msg string }

func (e *BatchParseError) Error() string { return "batch parse failure: " + e.Msg }
func (e *BatchParseError) ExitCode() int { return 3 }

// StateLocked means another run already holds the advisory exclusive lock
// on the state file.
type StateLocked struct{ Path string }

func (e *StateLocked) Error() string { return fmt.Sprintf("state file %q is locked by another run", e.Path) }
func (e *StateLocked) ExitCode() int { return 4 }

// BrokerUnavailable is raised once connection retries are exhausted.
type BrokerUnavailable struct{ URL string; Err error }

func (e *BrokerUnavailable) Error() string {
	return fmt.Sprintf("broker unavailable at %s: %v", e.URL, e.Err)
}
func (e *BrokerUnavailable) Unwrap() error { return e.Err }
func (e *BrokerUnavailable) ExitCode() int { return 5 }

// MessageValidationError is a per-match publish validation failure. It does
// not abort the batch.
type MessageValidationError struct{ CorrelationID string; Err error }

func (e *MessageValidationError) Error() string {
	return fmt.Sprintf("message validation failed for %s: %v", e.CorrelationID, e.Err)
}
func (e *MessageValidationError) Unwrap() error { return e.Err }

// AuditWriteError covers any failure to append an audit event. The audit
// trail must not be lossy, so this is always fatal.
type AuditWriteError struct{ Err error }

func (e *AuditWriteError) Error() string { return "audit write error: " + e.Err.Error() }
func (e *AuditWriteError) Unwrap() error { return e.Err }
func (e *AuditWriteError) ExitCode() int { return 6 }

// Interrupted marks a run that ended via signal-driven graceful shutdown.
type Interrupted struct{}

func (e *Interrupted) Error() string { return "interrupted" }
func (e *Interrupted) ExitCode() int { return 130 }

type exitCoder interface{ ExitCode() int }

// ExitCodeFor maps any error in the taxonomy above to its exit code. Errors
// outside the taxonomy (unexpected bugs) map to a generic exit code of 1.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if ec, ok := err.(exitCoder); ok {
		return ec.ExitCode()
	}
	return 1
}
