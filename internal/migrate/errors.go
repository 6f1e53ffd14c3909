package migrate

import "fmt"

// VersionMismatchError means the document was authored by a newer build
// than this one. It must never be silently coerced downward.
type VersionMismatchError struct {
	Model          string
	DocVersion     int
	CurrentVersion int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("%s document is at schema version %d, newer than this build's %d",
		e.Model, e.DocVersion, e.CurrentVersion)
}

// NoPathError means no contiguous chain of registered steps connects the
// document's version to the current one.
type NoPathError struct {
	Model   string
	From    int
	To      int
	StuckAt int
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no migration path for %s from version %d to %d (no step leaves %d)",
		e.Model, e.From, e.To, e.StuckAt)
}

// StepError wraps a failing transform with the step's context. No partial
// application is ever surfaced as success.
type StepError struct {
	Model string
	From  int
	To    int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("migration %s %d->%d failed: %v", e.Model, e.From, e.To, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
