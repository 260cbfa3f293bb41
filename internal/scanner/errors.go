package scanner

import "fmt"

// ErrKind classifies scanner failures.
type ErrKind string

const (
	// ErrKindTimeout means the tool exceeded its execution timeout and
	// was forcibly terminated.
	ErrKindTimeout ErrKind = "timeout"
	// ErrKindExec means the tool could not be started or crashed without
	// producing parseable output.
	ErrKindExec ErrKind = "exec"
	// ErrKindParse means the tool's output could not be parsed.
	ErrKindParse ErrKind = "parse"
)

// ScanError is fatal to one scanner's result but never to the task.
type ScanError struct {
	Scanner string
	Kind    ErrKind
	Err     error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scanner %s failed (%s): %v", e.Scanner, e.Kind, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }
