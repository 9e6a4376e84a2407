// Package db provides a single-connection handle over an embedded SQLite
// engine with logically nested transactions.
//
// A DB pins exactly one engine connection, so every Execute, Query and
// transaction boundary is issued on one sequential channel. A DB is not safe
// for concurrent use: nesting state (depth and savepoint stack) is not locked.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/johndauphine/litekeep/internal/logging"
	_ "modernc.org/sqlite"
)

// MemoryName opens a private in-memory database when passed to Open.
const MemoryName = ":memory:"

// Executor is the pair of engine primitives every other package builds on.
type Executor interface {
	Execute(ctx context.Context, query string, args ...any) (Result, error)
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
}

// Migrator applies schema migrations to a freshly opened handle.
type Migrator interface {
	Run(ctx context.Context, d *DB) ([]int, error)
}

// Options controls Open.
type Options struct {
	// DataDir holds <name>.sqlite3 files (default: current directory).
	DataDir string
	// InMemory skips the file and opens a private in-memory database.
	InMemory bool
	// Debug raises the global log level to debug.
	Debug bool
	// Migrator, when set, runs right after the connection is established.
	Migrator Migrator
}

// Result describes the effect of an Execute call.
type Result struct {
	RowsAffected int64
	LastInsertID int64
}

// Rows is a fully materialised query result. Columns is populated even when
// no row matched.
type Rows struct {
	Columns []string
	Data    [][]any
}

// Maps returns each row as a column-name-to-value mapping.
func (r *Rows) Maps() []map[string]any {
	out := make([]map[string]any, 0, len(r.Data))
	for _, row := range r.Data {
		m := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			m[col] = row[i]
		}
		out = append(out, m)
	}
	return out
}

// Len returns the number of rows.
func (r *Rows) Len() int {
	return len(r.Data)
}

// DB is a connection handle. The handle passed to a Transaction body is the
// DB itself; nesting is tracked by depth and a savepoint stack.
type DB struct {
	id   string
	name string
	path string

	pool *sql.DB
	conn *sql.Conn

	depth       int
	checkpoints []string
	seq         uint64
}

// Open opens (or creates) the database <DataDir>/<name>.sqlite3. When the file
// cannot be opened it falls back to an in-memory database and logs a warning.
func Open(ctx context.Context, name string, opts Options) (*DB, error) {
	if name == "" {
		return nil, fmt.Errorf("database name is required")
	}
	if opts.Debug {
		logging.SetLevel(logging.LevelDebug)
	}

	d := &DB{id: uuid.NewString(), name: name}

	if !opts.InMemory && name != MemoryName {
		path, err := databasePath(opts.DataDir, name)
		if err == nil {
			err = d.connect(ctx, path+"?_pragma=journal_mode(WAL)")
		}
		if err != nil {
			logging.Warn("persistent storage unavailable for %s, falling back to in-memory database: %v", name, err)
		} else {
			d.path = path
			logging.Debug("[%s] opened %s", d.shortID(), path)
		}
	}

	if d.conn == nil {
		if err := d.connect(ctx, MemoryName); err != nil {
			return nil, fmt.Errorf("opening in-memory database: %w", err)
		}
		logging.Debug("[%s] opened in-memory database %s", d.shortID(), name)
	}

	if opts.Migrator != nil {
		applied, err := opts.Migrator.Run(ctx, d)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		if len(applied) > 0 {
			logging.Info("applied %d migration(s) to %s", len(applied), name)
		}
	}

	return d, nil
}

func databasePath(dataDir, name string) (string, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	return filepath.Join(dataDir, name+".sqlite3"), nil
}

func (d *DB) connect(ctx context.Context, dsn string) error {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// The pinned connection is the only one ever used.
	pool.SetMaxOpenConns(1)

	conn, err := pool.Conn(ctx)
	if err != nil {
		pool.Close()
		return fmt.Errorf("acquiring connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		pool.Close()
		return fmt.Errorf("pinging database: %w", err)
	}

	d.pool = pool
	d.conn = conn
	return nil
}

// ID returns the handle's instance id.
func (d *DB) ID() string {
	return d.id
}

// Name returns the logical database name passed to Open.
func (d *DB) Name() string {
	return d.name
}

// Path returns the database file, or "" for an in-memory database.
func (d *DB) Path() string {
	return d.path
}

// InMemory reports whether the handle is backed by an in-memory database.
func (d *DB) InMemory() bool {
	return d.path == ""
}

func (d *DB) shortID() string {
	if len(d.id) >= 8 {
		return d.id[:8]
	}
	return d.id
}

// Execute runs a statement with positional parameters.
func (d *DB) Execute(ctx context.Context, query string, args ...any) (Result, error) {
	if d.conn == nil {
		return Result{}, newStatementError("execute", query, ErrClosed)
	}
	logging.Debug("[%s] exec: %s", d.shortID(), compactSQL(query, 200))

	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, newStatementError("execute", query, err)
	}

	var r Result
	r.RowsAffected, _ = res.RowsAffected()
	r.LastInsertID, _ = res.LastInsertId()
	return r, nil
}

// Query runs a statement expected to produce rows.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	if d.conn == nil {
		return nil, newStatementError("query", query, ErrClosed)
	}
	logging.Debug("[%s] query: %s", d.shortID(), compactSQL(query, 200))

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newStatementError("query", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, newStatementError("query", query, err)
	}

	out := &Rows{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, newStatementError("query", query, err)
		}
		out.Data = append(out.Data, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, newStatementError("query", query, err)
	}
	return out, nil
}

// QueryValue returns the first column of the first row, or nil when the
// query produced no rows.
func (d *DB) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	rows, err := d.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if rows.Len() == 0 || len(rows.Columns) == 0 {
		return nil, nil
	}
	return rows.Data[0][0], nil
}

// Close releases the connection. An open transaction is discarded by the
// engine. Close is idempotent.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	if d.depth > 0 {
		logging.Warn("closing %s with an open transaction (depth %d); uncommitted work is discarded", d.name, d.depth)
	}
	d.depth = 0
	d.checkpoints = nil

	connErr := d.conn.Close()
	poolErr := d.pool.Close()
	d.conn = nil
	d.pool = nil
	logging.Debug("[%s] closed %s", d.shortID(), d.name)

	if connErr != nil {
		return connErr
	}
	return poolErr
}

// String implements fmt.Stringer for log lines.
func (d *DB) String() string {
	var b strings.Builder
	b.WriteString(d.name)
	if d.path != "" {
		b.WriteString(" (" + d.path + ")")
	} else {
		b.WriteString(" (memory)")
	}
	return b.String()
}

var _ Executor = (*DB)(nil)
