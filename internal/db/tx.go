package db

import (
	"context"
	"fmt"

	"github.com/johndauphine/litekeep/internal/logging"
)

// Transaction runs fn inside a logical transaction. At depth 0 it issues
// BEGIN and COMMIT/ROLLBACK; when already inside a transaction it opens a
// uniquely named savepoint and issues RELEASE or ROLLBACK TO on exit.
//
// fn receives the same handle, so it may nest further Transaction calls. The
// error returned by fn is returned unchanged after the compensating
// statement has run. A failing nested scope does not abort its parent: the
// parent body sees the error and may carry on.
//
// If fn already ended its own scope through Commit or Rollback, no closing
// statement is issued for it.
func (d *DB) Transaction(ctx context.Context, fn func(tx *DB) error) error {
	level, savepoint, err := d.open(ctx)
	if err != nil {
		return err
	}

	if err := fn(d); err != nil {
		return d.abort(ctx, level, savepoint, err)
	}
	return d.finish(ctx, level, savepoint)
}

// RunInTransaction is Transaction for bodies that produce a value.
func RunInTransaction[T any](ctx context.Context, d *DB, fn func(tx *DB) (T, error)) (T, error) {
	var result T
	err := d.Transaction(ctx, func(tx *DB) error {
		v, err := fn(tx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// InTransaction runs fn in a transaction on any Executor. A *DB (or anything
// else with a matching Transaction method) nests through savepoints; other
// executors get a plain BEGIN TRANSACTION / COMMIT, rolled back on failure.
func InTransaction(ctx context.Context, e Executor, fn func(tx Executor) error) error {
	if t, ok := e.(interface {
		Transaction(ctx context.Context, fn func(tx *DB) error) error
	}); ok {
		return t.Transaction(ctx, func(tx *DB) error { return fn(tx) })
	}

	if _, err := e.Execute(ctx, "BEGIN TRANSACTION"); err != nil {
		return err
	}
	if err := fn(e); err != nil {
		_, rbErr := e.Execute(CompensationContext(ctx), "ROLLBACK")
		return joinCompensation(err, rbErr)
	}
	if _, err := e.Execute(ctx, "COMMIT"); err != nil {
		_, rbErr := e.Execute(CompensationContext(ctx), "ROLLBACK")
		return joinCompensation(err, rbErr)
	}
	return nil
}

// Depth returns the current nesting depth (0 when no transaction is open).
func (d *DB) Depth() int {
	return d.depth
}

// Savepoints returns a copy of the open savepoint names, outermost first.
func (d *DB) Savepoints() []string {
	return append([]string(nil), d.checkpoints...)
}

// Rollback manually rolls back the innermost open scope and returns a
// *RolledBackError. The calling body must return that error; statements after
// the call are the caller's to skip.
func (d *DB) Rollback(ctx context.Context) error {
	switch {
	case d.depth == 0:
		return fmt.Errorf("rollback: %w", ErrNoActiveTransaction)
	case d.depth == 1:
		if _, err := d.Execute(ctx, "ROLLBACK"); err != nil {
			return err
		}
		d.unwind(1)
		logging.Debug("[%s] manual rollback of top-level transaction", d.shortID())
		return &RolledBackError{Depth: 1}
	default:
		level := d.depth
		name := d.pop()
		if _, err := d.Execute(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
			return err
		}
		logging.Debug("[%s] manual rollback to %s", d.shortID(), name)
		return &RolledBackError{Savepoint: name, Depth: level}
	}
}

// Commit manually ends the innermost open scope. At depth 1 the transaction
// is committed and later statements in the body run in autocommit mode; at
// deeper levels the savepoint is released and later statements are covered
// only by the enclosing scopes.
func (d *DB) Commit(ctx context.Context) error {
	switch {
	case d.depth == 0:
		return fmt.Errorf("commit: %w", ErrNoActiveTransaction)
	case d.depth == 1:
		if _, err := d.Execute(ctx, "COMMIT"); err != nil {
			return err
		}
		d.unwind(1)
		logging.Debug("[%s] manual commit of top-level transaction", d.shortID())
		return nil
	default:
		name := d.pop()
		if _, err := d.Execute(ctx, "RELEASE SAVEPOINT "+name); err != nil {
			return err
		}
		logging.Debug("[%s] manual release of %s", d.shortID(), name)
		return nil
	}
}

// open starts a scope and returns its level and savepoint name ("" at level 1).
func (d *DB) open(ctx context.Context) (int, string, error) {
	if d.depth == 0 {
		if _, err := d.Execute(ctx, "BEGIN"); err != nil {
			return 0, "", err
		}
		d.depth = 1
		return 1, "", nil
	}

	d.seq++
	name := fmt.Sprintf("sp_%d", d.seq)
	d.checkpoints = append(d.checkpoints, name)
	d.depth++
	level := d.depth

	if _, err := d.Execute(ctx, "SAVEPOINT "+name); err != nil {
		d.unwind(level)
		return 0, "", err
	}
	return level, name, nil
}

func (d *DB) finish(ctx context.Context, level int, savepoint string) error {
	if d.depth < level {
		logging.Debug("[%s] scope at depth %d already closed", d.shortID(), level)
		return nil
	}

	if level == 1 {
		if _, err := d.Execute(ctx, "COMMIT"); err != nil {
			_, rbErr := d.Execute(CompensationContext(ctx), "ROLLBACK")
			d.unwind(1)
			return joinCompensation(err, rbErr)
		}
		d.unwind(1)
		return nil
	}

	if _, err := d.Execute(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		_, rbErr := d.Execute(CompensationContext(ctx), "ROLLBACK TO SAVEPOINT "+savepoint)
		d.unwind(level)
		return joinCompensation(err, rbErr)
	}
	d.unwind(level)
	return nil
}

func (d *DB) abort(ctx context.Context, level int, savepoint string, cause error) error {
	if d.depth < level {
		// Closed by a manual Rollback or Commit inside the body.
		return cause
	}

	var err error
	cctx := CompensationContext(ctx)
	if level == 1 {
		_, err = d.Execute(cctx, "ROLLBACK")
	} else {
		_, err = d.Execute(cctx, "ROLLBACK TO SAVEPOINT "+savepoint)
	}
	d.unwind(level)
	logging.Debug("[%s] rolled back depth %d: %v", d.shortID(), level, cause)
	return joinCompensation(cause, err)
}

// CompensationContext detaches ctx from its cancellation so cleanup
// statements (ROLLBACK, ROLLBACK TO, pragma resets) still run once the
// caller's context is done.
func CompensationContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// unwind resets the nesting state to the scope enclosing level.
func (d *DB) unwind(level int) {
	d.depth = level - 1
	keep := level - 2
	if keep < 0 {
		keep = 0
	}
	if keep < len(d.checkpoints) {
		d.checkpoints = d.checkpoints[:keep]
	}
	if d.depth == 0 {
		d.checkpoints = nil
	}
}

func (d *DB) pop() string {
	n := len(d.checkpoints)
	name := d.checkpoints[n-1]
	d.checkpoints = d.checkpoints[:n-1]
	d.depth--
	return name
}
