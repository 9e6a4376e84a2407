package dump

import (
	"context"
	"fmt"

	"github.com/johndauphine/litekeep/internal/db"
)

// Object is one schema entry from sqlite_master.
type Object struct {
	Type      string // table, view, index or trigger
	Name      string
	TableName string
	SQL       string
}

// Catalog lists user objects in the order the engine stores them. Internal
// objects (sqlite_*) and implicit ones without SQL text (autoindexes) are
// left out.
func Catalog(ctx context.Context, q db.Executor) ([]Object, error) {
	rows, err := q.Query(ctx, `SELECT type, name, tbl_name, sql FROM sqlite_master
		WHERE sql IS NOT NULL AND substr(name, 1, 7) <> 'sqlite_'
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	objects := make([]Object, 0, rows.Len())
	for _, r := range rows.Data {
		objects = append(objects, Object{
			Type:      asString(r[0]),
			Name:      asString(r[1]),
			TableName: asString(r[2]),
			SQL:       asString(r[3]),
		})
	}
	return objects, nil
}

// Tables returns the names of user tables in catalog order.
func Tables(ctx context.Context, q db.Executor) ([]string, error) {
	objects, err := Catalog(ctx, q)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, o := range objects {
		if o.Type == "table" {
			names = append(names, o.Name)
		}
	}
	return names, nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
