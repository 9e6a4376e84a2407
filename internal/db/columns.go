package db

import (
	"context"
	"fmt"
	"strings"
)

// Column is one entry of pragma_table_xinfo.
type Column struct {
	Name string
	Type string
	// Hidden is 0 for ordinary columns, 1 for hidden virtual-table columns,
	// 2 for VIRTUAL and 3 for STORED generated columns.
	Hidden int
}

// Generated reports whether the engine computes the column's value.
func (c Column) Generated() bool {
	return c.Hidden == 2 || c.Hidden == 3
}

// TableColumns lists the columns of table in declaration order. An unknown
// table yields no columns and no error.
func TableColumns(ctx context.Context, q Executor, table string) ([]Column, error) {
	rows, err := q.Query(ctx, "SELECT name, type, hidden FROM pragma_table_xinfo(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", table, err)
	}

	cols := make([]Column, 0, rows.Len())
	for _, r := range rows.Data {
		name, _ := r[0].(string)
		typ, _ := r[1].(string)
		hidden, _ := r[2].(int64)
		cols = append(cols, Column{Name: name, Type: typ, Hidden: int(hidden)})
	}
	return cols, nil
}

// SelectStored reads every row of table with each value exactly as stored.
// Columns are selected as +"name" expressions, which carry no declared type,
// so the driver hands back TEXT declared as DATE or DATETIME as a string
// instead of converting it to time.Time. Generated columns are included
// only when withGenerated is set. Rows.Columns holds the bare column names.
func SelectStored(ctx context.Context, q Executor, table string, withGenerated bool) (*Rows, error) {
	cols, err := TableColumns(ctx, q, table)
	if err != nil {
		return nil, err
	}

	var names, exprs []string
	for _, c := range cols {
		if c.Hidden == 1 || (c.Generated() && !withGenerated) {
			continue
		}
		names = append(names, c.Name)
		exprs = append(exprs, "+"+QuoteIdent(c.Name))
	}
	if len(names) == 0 {
		// Unknown table: let the engine report it.
		return q.Query(ctx, "SELECT * FROM "+QuoteIdent(table))
	}

	rows, err := q.Query(ctx, "SELECT "+strings.Join(exprs, ", ")+" FROM "+QuoteIdent(table))
	if err != nil {
		return nil, err
	}
	rows.Columns = names
	return rows, nil
}
