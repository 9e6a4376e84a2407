// Package transfer moves table contents between a database and CSV text.
package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johndauphine/litekeep/internal/csvcodec"
	"github.com/johndauphine/litekeep/internal/db"
	"github.com/johndauphine/litekeep/internal/logging"
)

// ColumnCountMismatchError reports a CSV row whose width differs from the
// header. Row is 1-based and counts the header as row 1.
type ColumnCountMismatchError struct {
	Row     int
	Fields  int
	Columns int
}

func (e *ColumnCountMismatchError) Error() string {
	return fmt.Sprintf("row %d has %d fields, but header has %d columns", e.Row, e.Fields, e.Columns)
}

// ImportOptions controls ImportTableCSV.
type ImportOptions struct {
	// EmptyAsNull inserts NULL for empty fields instead of ''.
	EmptyAsNull bool
	// OnRow, when set, is called after each inserted row.
	OnRow func(done, total int)
}

// Stats describes a finished export or import.
type Stats struct {
	Table    string
	Rows     int
	Duration time.Duration
}

func (s Stats) String() string {
	rate := 0.0
	if secs := s.Duration.Seconds(); secs > 0 {
		rate = float64(s.Rows) / secs
	}
	return fmt.Sprintf("%s: %d rows in %s (%.0f rows/sec)", s.Table, s.Rows, s.Duration.Round(time.Millisecond), rate)
}

// ExportTableCSV renders every row of table as CSV with a header row of the
// table's column names. Values are written as stored; generated columns are
// included.
func ExportTableCSV(ctx context.Context, q db.Executor, table string, opts csvcodec.Options) (string, error) {
	start := time.Now()
	rows, err := db.SelectStored(ctx, q, table, true)
	if err != nil {
		return "", fmt.Errorf("exporting %s: %w", table, err)
	}

	out := csvcodec.Encode(rows.Columns, rows.Data, opts)
	logging.Debug("exported %s", Stats{Table: table, Rows: rows.Len(), Duration: time.Since(start)})
	return out, nil
}

// ImportTableCSV inserts the data rows of text into table. The header row
// names the target columns. Every row is checked against the header before
// anything is inserted, and all inserts run in one transaction. It returns
// the number of rows inserted.
func ImportTableCSV(ctx context.Context, e db.Executor, table, text string, opts ImportOptions) (int, error) {
	start := time.Now()
	records := csvcodec.Parse(text)
	if len(records) < 2 {
		return 0, nil
	}

	header, data := records[0], records[1:]
	for i, rec := range data {
		if len(rec) != len(header) {
			return 0, &ColumnCountMismatchError{Row: i + 2, Fields: len(rec), Columns: len(header)}
		}
	}

	stmt := insertStatement(table, header)
	inserted := 0
	err := db.InTransaction(ctx, e, func(tx db.Executor) error {
		args := make([]any, len(header))
		for _, rec := range data {
			for i, field := range rec {
				if field == "" && opts.EmptyAsNull {
					args[i] = nil
				} else {
					args[i] = field
				}
			}
			if _, err := tx.Execute(ctx, stmt, args...); err != nil {
				return fmt.Errorf("importing row %d into %s: %w", inserted+2, table, err)
			}
			inserted++
			if opts.OnRow != nil {
				opts.OnRow(inserted, len(data))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logging.Debug("imported %s", Stats{Table: table, Rows: inserted, Duration: time.Since(start)})
	return inserted, nil
}

func insertStatement(table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return "INSERT INTO " + db.QuoteIdent(table) + " (" + db.QuoteIdents(columns) + ") VALUES (" + placeholders + ")"
}
