package dump

import (
	"context"
	"errors"
	"fmt"

	"github.com/johndauphine/litekeep/internal/db"
	"github.com/johndauphine/litekeep/internal/logging"
)

// RestoreOptions controls Restore.
type RestoreOptions struct {
	// CompatibilityMode replays the script as-is: it is expected to carry
	// its own transaction boundaries, and nothing is cleaned up on failure.
	CompatibilityMode bool
	// OnStatement, when set, is called after each script statement.
	OnStatement func(done, total int)
}

// Restore drops every existing table, view and index and replays script.
//
// By default foreign keys are disabled and the whole replay runs in one
// transaction; BEGIN, COMMIT and END statements in the script are skipped.
// On failure the transaction is rolled back and foreign keys re-enabled
// before the statement error is returned.
func Restore(ctx context.Context, e db.Executor, script string, opts RestoreOptions) error {
	stmts := SplitStatements(script)
	logging.Debug("restoring %d statement(s)", len(stmts))

	if opts.CompatibilityMode {
		if err := dropAll(ctx, e); err != nil {
			return err
		}
		return replay(ctx, e, stmts, opts, false)
	}

	if _, err := e.Execute(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disabling foreign keys: %w", err)
	}

	err := db.InTransaction(ctx, e, func(tx db.Executor) error {
		if err := dropAll(ctx, tx); err != nil {
			return err
		}
		return replay(ctx, tx, stmts, opts, true)
	})

	if _, fkErr := e.Execute(db.CompensationContext(ctx), "PRAGMA foreign_keys = ON"); fkErr != nil {
		if err == nil {
			return fmt.Errorf("re-enabling foreign keys: %w", fkErr)
		}
		return errors.Join(err, fkErr)
	}
	return err
}

func replay(ctx context.Context, e db.Executor, stmts []string, opts RestoreOptions, skipTxControl bool) error {
	for i, stmt := range stmts {
		if skipTxControl && isTransactionControl(stmt) {
			logging.Debug("skipping %q", stmt)
		} else if _, err := e.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("restoring statement %d of %d: %w", i+1, len(stmts), err)
		}
		if opts.OnStatement != nil {
			opts.OnStatement(i+1, len(stmts))
		}
	}
	return nil
}

// dropAll removes user views, indexes and tables, in that order. Objects of
// one type go newest first, so referencing tables drop before their parents.
// sqlite_sequence cannot be dropped and is left alone.
func dropAll(ctx context.Context, e db.Executor) error {
	rows, err := e.Query(ctx, `SELECT type, name FROM sqlite_master
		WHERE type IN ('view', 'index', 'table') AND substr(name, 1, 7) <> 'sqlite_'
		ORDER BY CASE type WHEN 'view' THEN 0 WHEN 'index' THEN 1 ELSE 2 END, rowid DESC`)
	if err != nil {
		return fmt.Errorf("listing objects to drop: %w", err)
	}

	for _, r := range rows.Data {
		kind, name := asString(r[0]), asString(r[1])
		var stmt string
		switch kind {
		case "view":
			stmt = "DROP VIEW IF EXISTS " + db.QuoteIdent(name)
		case "index":
			stmt = "DROP INDEX IF EXISTS " + db.QuoteIdent(name)
		default:
			stmt = "DROP TABLE IF EXISTS " + db.QuoteIdent(name)
		}
		if _, err := e.Execute(ctx, stmt); err != nil {
			return fmt.Errorf("dropping %s %s: %w", kind, name, err)
		}
	}
	if len(rows.Data) > 0 {
		logging.Debug("dropped %d existing object(s)", len(rows.Data))
	}
	return nil
}
