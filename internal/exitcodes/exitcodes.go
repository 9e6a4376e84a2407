// Package exitcodes defines the process exit codes of the litekeep CLI so
// scripts can tell configuration mistakes from engine failures.
package exitcodes

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/johndauphine/litekeep/internal/db"
	"github.com/johndauphine/litekeep/internal/dump"
	"github.com/johndauphine/litekeep/internal/transfer"
)

const (
	// Success - command completed without errors
	Success = 0

	// ConfigError - configuration/YAML parsing or flag errors (don't retry)
	ConfigError = 1

	// OpenError - the database could not be opened or is not a database (recoverable)
	OpenError = 2

	// StatementError - the engine rejected a statement (constraint, syntax, ...)
	StatementError = 3

	// ValidationError - input rejected before touching the database (CSV width, unknown table)
	ValidationError = 4

	// Cancelled - user cancelled via SIGINT/SIGTERM (recoverable)
	Cancelled = 5

	// TransactionError - commit/rollback misuse or a rolled back transaction
	TransactionError = 6

	// IOError - file I/O errors (recoverable)
	IOError = 7
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// FromError determines the appropriate exit code for an error. Typed errors
// are classified first; anything else falls back to its message.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}

	var mismatch *transfer.ColumnCountMismatchError
	if errors.As(err, &mismatch) || errors.Is(err, dump.ErrTableNotFound) {
		return ValidationError
	}

	if errors.Is(err, db.ErrNoActiveTransaction) || errors.Is(err, db.ErrRolledBack) {
		return TransactionError
	}

	var stmtErr *db.StatementError
	if errors.As(err, &stmtErr) {
		switch stmtErr.Kind() {
		case "cancelled", "interrupt":
			return Cancelled
		case "cantopen", "corrupt", "closed":
			return OpenError
		default:
			return StatementError
		}
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return IOError
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr, []string{
		"no such file",
		"permission denied",
		"is a directory",
		"not a directory",
	}) {
		return IOError
	}

	if containsAny(errStr, []string{
		"yaml:",
		"parsing config",
		"invalid configuration",
		"parsing migrations",
		"required flag",
		"flag provided but not defined",
	}) {
		return ConfigError
	}

	if containsAny(errStr, []string{
		"opening database",
		"opening in-memory database",
		"acquiring connection",
		"pinging database",
	}) {
		return OpenError
	}

	if containsAny(errStr, []string{
		"cancel",
		"interrupt",
	}) {
		return Cancelled
	}

	return StatementError
}

// IsRecoverable returns true if the error is recoverable (safe to retry).
func IsRecoverable(code int) bool {
	switch code {
	case OpenError, Cancelled, IOError:
		return true
	default:
		return false
	}
}

// Description returns a human-readable description of the exit code.
func Description(code int) string {
	switch code {
	case Success:
		return "success"
	case ConfigError:
		return "configuration error"
	case OpenError:
		return "open error (recoverable)"
	case StatementError:
		return "statement error"
	case ValidationError:
		return "validation error"
	case Cancelled:
		return "cancelled (recoverable)"
	case TransactionError:
		return "transaction error"
	case IOError:
		return "I/O error (recoverable)"
	default:
		return "unknown error"
	}
}

func containsAny(s string, substrs []string) bool {
	for _, substr := range substrs {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
