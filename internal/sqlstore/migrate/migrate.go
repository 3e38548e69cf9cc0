// Package migrate creates the log_entries schema for the dialects the SQL
// store reads, so fixture databases and fresh installs start from the same
// layout Blocky writes.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations
var migrations embed.FS

// Runner applies versioned SQL migrations for one dialect.
type Runner struct {
	db      *sql.DB
	dialect string
}

// NewRunner creates a migration runner. dialect names a directory under
// migrations/; timescale shares postgresql's.
func NewRunner(db *sql.DB, dialect string) *Runner {
	switch dialect {
	case "timescale", "postgres":
		dialect = "postgresql"
	case "sqlite3":
		dialect = "sqlite"
	}
	return &Runner{db: db, dialect: dialect}
}

type migration struct {
	version    int
	name       string
	statements []string
}

func (r *Runner) loadMigrations() ([]migration, error) {
	dir := "migrations/" + r.dialect
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations for dialect %q: %w", r.dialect, err)
	}

	var migs []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(e.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		ver, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("parsing version from %s: %w", e.Name(), err)
		}
		data, err := migrations.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		migs = append(migs, migration{version: ver, name: e.Name(), statements: splitStatements(string(data))})
	}

	sort.Slice(migs, func(i, j int) bool { return migs[i].version < migs[j].version })
	return migs, nil
}

// splitStatements splits a file on statement-terminating semicolons. Not
// every driver accepts several statements per Exec.
func splitStatements(src string) []string {
	var out []string
	for _, stmt := range strings.Split(src, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *Runner) bootstrap(ctx context.Context) error {
	var ddl string
	switch r.dialect {
	case "clickhouse":
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version    UInt32,
			name       String,
			applied_at DateTime DEFAULT now()
		) ENGINE = MergeTree ORDER BY version`
	case "mysql":
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INT PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       VARCHAR NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
	}
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *Runner) appliedVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v)
	if err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

func (r *Runner) record(ctx context.Context, exec func(context.Context, string, ...any) (sql.Result, error), m migration) error {
	q := "INSERT INTO schema_migrations (version, name) VALUES (?, ?)"
	if r.dialect == "postgresql" {
		q = "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)"
	}
	_, err := exec(ctx, q, m.version, m.name)
	return err
}

// Run applies all pending migrations in order. Each migration runs in a
// transaction where the database supports transactional DDL, and is
// recorded in the schema_migrations table.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap schema_migrations: %w", err)
	}

	migs, err := r.loadMigrations()
	if err != nil {
		return err
	}

	current, err := r.appliedVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading applied version: %w", err)
	}

	for _, m := range migs {
		if m.version <= current {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, m migration) error {
	// ClickHouse has no transactions and MySQL commits DDL implicitly.
	if r.dialect == "clickhouse" || r.dialect == "mysql" {
		for _, stmt := range m.statements {
			if _, err := r.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("executing %s: %w", m.name, err)
			}
		}
		if err := r.record(ctx, r.db.ExecContext, m); err != nil {
			return fmt.Errorf("recording %s: %w", m.name, err)
		}
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", m.name, err)
	}
	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing %s: %w", m.name, err)
		}
	}
	if err := r.record(ctx, tx.ExecContext, m); err != nil {
		tx.Rollback()
		return fmt.Errorf("recording %s: %w", m.name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", m.name, err)
	}
	return nil
}

// Status returns the current applied version and count of pending migrations.
func (r *Runner) Status(ctx context.Context) (current int, pending int, err error) {
	if err = r.bootstrap(ctx); err != nil {
		return 0, 0, fmt.Errorf("bootstrap schema_migrations: %w", err)
	}

	current, err = r.appliedVersion(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("reading applied version: %w", err)
	}

	migs, err := r.loadMigrations()
	if err != nil {
		return 0, 0, err
	}

	for _, m := range migs {
		if m.version > current {
			pending++
		}
	}

	return current, pending, nil
}
