// Package migrate applies ordered, apply-once schema migrations and records
// them in a migrations table.
package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/johndauphine/litekeep/internal/db"
	"github.com/johndauphine/litekeep/internal/dump"
	"github.com/johndauphine/litekeep/internal/logging"
)

// Migration is one schema step. Up takes precedence over SQL; SQL may hold
// several statements.
type Migration struct {
	Version     int                                            `yaml:"version"`
	Description string                                         `yaml:"description"`
	SQL         string                                         `yaml:"sql"`
	Up          func(ctx context.Context, e db.Executor) error `yaml:"-"`
}

// Initial creates the table that records applied versions. It is always
// version 0 and never recorded itself.
var Initial = Migration{
	Version:     0,
	Description: "create migrations table",
	SQL: `CREATE TABLE IF NOT EXISTS migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Runner holds migrations sorted by version.
type Runner struct {
	migrations []Migration
}

// NewRunner returns a runner holding Initial plus ms.
func NewRunner(ms ...Migration) *Runner {
	r := &Runner{}
	r.Add(Initial)
	r.Add(ms...)
	return r
}

// Add registers migrations, keeping the list sorted by version.
func (r *Runner) Add(ms ...Migration) {
	r.migrations = append(r.migrations, ms...)
	sort.SliceStable(r.migrations, func(i, j int) bool {
		return r.migrations[i].Version < r.migrations[j].Version
	})
}

// Migrations returns a copy of the registered migrations in version order.
func (r *Runner) Migrations() []Migration {
	return append([]Migration(nil), r.migrations...)
}

// Current returns the highest applied version, or 0 when nothing has been
// applied or the migrations table does not exist yet.
func Current(ctx context.Context, e db.Executor) (int, error) {
	rows, err := e.Query(ctx, "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'migrations'")
	if err != nil {
		return 0, fmt.Errorf("checking migrations table: %w", err)
	}
	if rows.Len() == 0 {
		return 0, nil
	}

	rows, err = e.Query(ctx, "SELECT MAX(version) FROM migrations")
	if err != nil {
		return 0, fmt.Errorf("reading current version: %w", err)
	}
	if rows.Len() == 0 {
		return 0, nil
	}
	v, _ := rows.Data[0][0].(int64)
	return int(v), nil
}

// Pending returns the migrations with a version above the current one.
func (r *Runner) Pending(ctx context.Context, e db.Executor) ([]Migration, error) {
	current, err := Current(ctx, e)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, m := range r.migrations {
		if m.Version > current {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Run ensures the migrations table exists and applies every pending
// migration in version order, each in its own transaction together with its
// bookkeeping row. It stops at the first failure; earlier migrations stay
// applied. It returns the versions applied.
func (r *Runner) Run(ctx context.Context, d *db.DB) ([]int, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if err := apply(ctx, d, Initial); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	pending, err := r.Pending(ctx, d)
	if err != nil {
		return nil, err
	}

	var applied []int
	for _, m := range pending {
		logging.Debug("running migration to version %d %s", m.Version, m.Description)
		err := d.Transaction(ctx, func(tx *db.DB) error {
			if err := apply(ctx, tx, m); err != nil {
				return err
			}
			_, err := tx.Execute(ctx, "INSERT INTO migrations (version) VALUES (?)", m.Version)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("migration %d: %w", m.Version, err)
		}
		applied = append(applied, m.Version)
		logging.Debug("migration to version %d completed", m.Version)
	}
	return applied, nil
}

func (r *Runner) validate() error {
	seen := make(map[int]bool, len(r.migrations))
	for _, m := range r.migrations {
		if m.Version < 0 {
			return fmt.Errorf("migration version %d is negative", m.Version)
		}
		if seen[m.Version] {
			return fmt.Errorf("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = true
	}
	return nil
}

func apply(ctx context.Context, e db.Executor, m Migration) error {
	if m.Up != nil {
		return m.Up(ctx, e)
	}
	for _, stmt := range dump.SplitStatements(m.SQL) {
		if _, err := e.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var _ db.Migrator = (*Runner)(nil)
