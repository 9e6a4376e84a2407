package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNoActiveTransaction is returned by Commit and Rollback at depth 0.
	ErrNoActiveTransaction = errors.New("no active transaction")

	// ErrRolledBack matches every *RolledBackError via errors.Is.
	ErrRolledBack = errors.New("transaction rolled back")

	// ErrClosed is returned for statements issued on a closed handle.
	ErrClosed = errors.New("database is closed")
)

// RolledBackError is returned by a manual Rollback. The body that called
// Rollback should return it; the enclosing Transaction treats it as its
// failure path without issuing a second rollback and hands it to its caller.
type RolledBackError struct {
	// Savepoint is empty when the top-level transaction was rolled back.
	Savepoint string
	// Depth is the nesting level that was rolled back.
	Depth int
}

func (e *RolledBackError) Error() string {
	if e.Savepoint == "" {
		return "transaction rolled back"
	}
	return fmt.Sprintf("transaction rolled back to savepoint %s (depth %d)", e.Savepoint, e.Depth)
}

// Is reports whether target is ErrRolledBack.
func (e *RolledBackError) Is(target error) bool {
	return target == ErrRolledBack
}

// StatementError wraps any failure reported by the engine for a single
// statement. Code is the SQLite extended result code, or 0 when the error did
// not originate in the engine (e.g. a cancelled context).
type StatementError struct {
	Op   string
	SQL  string
	Code int
	Err  error
}

func newStatementError(op, query string, err error) *StatementError {
	se := &StatementError{Op: op, SQL: query, Err: err}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		se.Code = sqliteErr.Code()
	}
	return se
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, compactSQL(e.SQL, 120), e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Kind classifies the error by its primary result code.
func (e *StatementError) Kind() string {
	if e.Code == 0 {
		switch {
		case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
			return "cancelled"
		case errors.Is(e.Err, ErrClosed):
			return "closed"
		}
		return "unknown"
	}
	switch e.Code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		return "constraint"
	case sqlite3.SQLITE_BUSY:
		return "busy"
	case sqlite3.SQLITE_LOCKED:
		return "locked"
	case sqlite3.SQLITE_READONLY:
		return "readonly"
	case sqlite3.SQLITE_MISMATCH:
		return "mismatch"
	case sqlite3.SQLITE_TOOBIG:
		return "toobig"
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return "corrupt"
	case sqlite3.SQLITE_CANTOPEN:
		return "cantopen"
	case sqlite3.SQLITE_INTERRUPT:
		return "interrupt"
	case sqlite3.SQLITE_FULL:
		return "full"
	default:
		return "error"
	}
}

// IsConstraint reports whether err is a constraint violation reported by the engine.
func IsConstraint(err error) bool {
	var se *StatementError
	return errors.As(err, &se) && se.Kind() == "constraint"
}

// compactSQL collapses whitespace so multi-line statements fit on one log line.
func compactSQL(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max > 0 && len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// joinCompensation keeps cause untouched unless the compensating statement
// failed too.
func joinCompensation(cause, compErr error) error {
	if compErr == nil {
		return cause
	}
	return errors.Join(cause, compErr)
}
