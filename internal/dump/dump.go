// Package dump serializes a database, or a single table, into a replayable
// SQL script and restores such scripts.
package dump

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/johndauphine/litekeep/internal/db"
	"github.com/johndauphine/litekeep/internal/logging"
)

// ErrTableNotFound is returned when Options.Table names no existing table.
var ErrTableNotFound = errors.New("table not found")

// Options controls Dump.
type Options struct {
	// CompatibilityMode wraps the script in PRAGMA foreign_keys = OFF,
	// BEGIN TRANSACTION and COMMIT so it can be replayed by other tools.
	CompatibilityMode bool
	// Table restricts the dump to one table's schema and rows.
	Table string
}

// Dump renders the schema and contents as SQL text. The output holds, in
// order: the optional compatibility preamble, each table's CREATE statement
// followed by its rows, the sqlite_sequence counters, the remaining objects
// (views, indexes, triggers) and the optional COMMIT. With Options.Table set,
// only that table is emitted and the last two sections are left out.
//
// Dump only reads.
func Dump(ctx context.Context, q db.Executor, opts Options) (string, error) {
	objects, err := Catalog(ctx, q)
	if err != nil {
		return "", err
	}

	var tables, others []Object
	for _, o := range objects {
		switch {
		case opts.Table != "":
			if o.Type == "table" && o.Name == opts.Table {
				tables = append(tables, o)
			}
		case o.Type == "table":
			tables = append(tables, o)
		default:
			others = append(others, o)
		}
	}
	if opts.Table != "" && len(tables) == 0 {
		return "", fmt.Errorf("dump %q: %w", opts.Table, ErrTableNotFound)
	}

	var b strings.Builder
	if opts.CompatibilityMode {
		b.WriteString("PRAGMA foreign_keys = OFF;\n")
		b.WriteString("BEGIN TRANSACTION;\n")
	}

	rowCount := 0
	for _, t := range tables {
		writeStatement(&b, t.SQL)
		n, err := writeRows(ctx, q, &b, t.Name)
		if err != nil {
			return "", err
		}
		rowCount += n
	}

	if opts.Table == "" {
		if err := writeSequences(ctx, q, &b); err != nil {
			return "", err
		}
		for _, o := range others {
			writeStatement(&b, o.SQL)
		}
	}

	if opts.CompatibilityMode {
		b.WriteString("COMMIT;\n")
	}

	logging.Debug("dumped %d table(s), %d other object(s), %d row(s)", len(tables), len(others), rowCount)
	return b.String(), nil
}

func writeStatement(b *strings.Builder, stmt string) {
	b.WriteString(strings.TrimRight(strings.TrimSpace(stmt), ";"))
	b.WriteString(";\n")
}

func writeRows(ctx context.Context, q db.Executor, b *strings.Builder, table string) (int, error) {
	rows, err := db.SelectStored(ctx, q, table, false)
	if err != nil {
		return 0, fmt.Errorf("reading rows of %s: %w", table, err)
	}
	if rows.Len() == 0 {
		return 0, nil
	}

	prefix := "INSERT INTO " + db.QuoteIdent(table) + " (" + db.QuoteIdents(rows.Columns) + ") VALUES ("
	for _, row := range rows.Data {
		b.WriteString(prefix)
		for i, v := range row {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Literal(v))
		}
		b.WriteString(");\n")
	}
	return rows.Len(), nil
}

// writeSequences emits the AUTOINCREMENT counters, if the engine keeps any.
func writeSequences(ctx context.Context, q db.Executor, b *strings.Builder) error {
	exists, err := q.Query(ctx, "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'")
	if err != nil {
		return fmt.Errorf("checking sqlite_sequence: %w", err)
	}
	if exists.Len() == 0 {
		return nil
	}

	rows, err := q.Query(ctx, "SELECT name, seq FROM sqlite_sequence")
	if err != nil {
		return fmt.Errorf("reading sqlite_sequence: %w", err)
	}
	if rows.Len() == 0 {
		return nil
	}

	b.WriteString("DELETE FROM sqlite_sequence;\n")
	for _, row := range rows.Data {
		fmt.Fprintf(b, "INSERT INTO sqlite_sequence (name, seq) VALUES (%s, %s);\n", Literal(row[0]), Literal(row[1]))
	}
	return nil
}
