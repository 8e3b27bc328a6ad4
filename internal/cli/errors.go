package cli

import "fmt"

// Process exit codes.
const (
	ExitOK        = 0
	ExitFatal     = 1   // configuration, validation, or credential failure
	ExitEscalated = 2   // reserved: a per-run I/O failure escalated instead of skipped
	ExitInternal  = 3   // panic or other internal fault
	ExitInterrupt = 130 // run canceled by an interrupt signal
)

// ExitCoder is an error with an explicit process exit code.
type ExitCoder interface {
	error
	ExitCode() int
}

// ValidationKind names which precondition check failed, in the order the
// checks run.
type ValidationKind string

const (
	KindUsage          ValidationKind = "usage"
	KindConfig         ValidationKind = "config"
	KindNoFiles        ValidationKind = "no-files"
	KindStreamConflict ValidationKind = "output-stream-conflict"
	KindInvalidModel   ValidationKind = "invalid-model"
	KindFileNotFound   ValidationKind = "file-not-found"
	KindCredential     ValidationKind = "credential"
	KindOutputDir      ValidationKind = "output-dir"
)

// ValidationError is a fatal precondition failure (exit 1). Kind identifies
// the failed check so callers and tests can tell them apart.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e ValidationError) Error() string { return e.Message }
func (e ValidationError) ExitCode() int { return ExitFatal }

func validationErrorf(kind ValidationKind, format string, args ...any) ValidationError {
	return ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ExitError wraps an error with a specific exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e ExitError) Unwrap() error { return e.Err }
func (e ExitError) ExitCode() int { return e.Code }
