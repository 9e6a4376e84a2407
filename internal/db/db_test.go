package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(context.Background(), "test", Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func countRows(t *testing.T, d *DB, query string, args ...any) int64 {
	t.Helper()
	v, err := d.QueryValue(context.Background(), query, args...)
	require.NoError(t, err)
	n, ok := v.(int64)
	require.True(t, ok, "count returned %T", v)
	return n
}

func TestExecuteAndQuery(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	_, err := d.Execute(ctx, `CREATE TABLE accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		balance INTEGER NOT NULL,
		avatar BLOB
	)`)
	require.NoError(t, err)

	res, err := d.Execute(ctx, "INSERT INTO accounts (name, balance, avatar) VALUES (?, ?, ?)", "Alice", 1000, []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.RowsAffected)
	require.Equal(t, int64(1), res.LastInsertID)

	rows, err := d.Query(ctx, "SELECT id, name, balance, avatar FROM accounts WHERE name = ?", "Alice")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "balance", "avatar"}, rows.Columns)
	require.Equal(t, 1, rows.Len())

	m := rows.Maps()[0]
	require.Equal(t, int64(1), m["id"])
	require.Equal(t, "Alice", m["name"])
	require.Equal(t, int64(1000), m["balance"])
	require.Equal(t, []byte{1, 2, 3}, m["avatar"])
}

func TestQueryEmptyResultKeepsColumns(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	_, err := d.Execute(ctx, "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, email TEXT)")
	require.NoError(t, err)

	rows, err := d.Query(ctx, "SELECT * FROM t")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "email"}, rows.Columns)
	require.Zero(t, rows.Len())
	require.Empty(t, rows.Maps())
}

func TestStatementError(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	_, err := d.Execute(ctx, "CREATE TABLE u (id INTEGER PRIMARY KEY, email TEXT UNIQUE)")
	require.NoError(t, err)
	_, err = d.Execute(ctx, "INSERT INTO u (email) VALUES (?)", "a@example.com")
	require.NoError(t, err)

	insert := "INSERT INTO u (email) VALUES (?)"
	_, err = d.Execute(ctx, insert, "a@example.com")
	require.Error(t, err)

	var se *StatementError
	require.True(t, errors.As(err, &se))
	require.Equal(t, insert, se.SQL)
	require.Equal(t, "execute", se.Op)
	require.Equal(t, "constraint", se.Kind())
	require.True(t, IsConstraint(err))

	_, err = d.Query(ctx, "SELECT * FROM missing_table")
	require.True(t, errors.As(err, &se))
	require.Equal(t, "query", se.Op)
	require.Equal(t, "error", se.Kind())
	require.False(t, IsConstraint(err))
}

func TestClosedHandle(t *testing.T) {
	d, err := Open(context.Background(), "closed", Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err = d.Execute(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, ErrClosed)

	var se *StatementError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "closed", se.Kind())
}

func TestOpenPersistsToDataDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	d, err := Open(ctx, "persist", Options{DataDir: dir})
	require.NoError(t, err)
	require.False(t, d.InMemory())
	require.Equal(t, filepath.Join(dir, "persist.sqlite3"), d.Path())

	_, err = d.Execute(ctx, "CREATE TABLE notes (body TEXT)")
	require.NoError(t, err)
	_, err = d.Execute(ctx, "INSERT INTO notes (body) VALUES ('kept')")
	require.NoError(t, err)
	require.NoError(t, d.Close())

	reopened, err := Open(ctx, "persist", Options{DataDir: dir})
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, int64(1), countRows(t, reopened, "SELECT COUNT(*) FROM notes"))
}

func TestOpenFallsBackToMemory(t *testing.T) {
	// A regular file where the data directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	d, err := Open(context.Background(), "fallback", Options{DataDir: blocker})
	require.NoError(t, err)
	defer d.Close()

	require.True(t, d.InMemory())
	_, err = d.Execute(context.Background(), "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
}

func TestOpenRequiresName(t *testing.T) {
	_, err := Open(context.Background(), "", Options{InMemory: true})
	require.Error(t, err)
}

type recordingMigrator struct {
	err   error
	calls int
}

func (m *recordingMigrator) Run(ctx context.Context, d *DB) ([]int, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	_, err := d.Execute(ctx, "CREATE TABLE IF NOT EXISTS migrations (version INTEGER PRIMARY KEY)")
	return []int{0}, err
}

func TestOpenRunsMigrator(t *testing.T) {
	m := &recordingMigrator{}
	d, err := Open(context.Background(), "migrated", Options{InMemory: true, Migrator: m})
	require.NoError(t, err)
	defer d.Close()

	require.Equal(t, 1, m.calls)
	require.Equal(t, int64(1), countRows(t, d, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'migrations'"))

	failing := &recordingMigrator{err: errors.New("boom")}
	_, err = Open(context.Background(), "broken", Options{InMemory: true, Migrator: failing})
	require.ErrorContains(t, err, "running migrations")
}
