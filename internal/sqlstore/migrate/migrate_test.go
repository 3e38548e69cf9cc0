package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T, driver string) *sql.DB {
	t.Helper()
	dsn := ""
	if driver == "sqlite3" {
		dsn = ":memory:"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		t.Fatalf("open %s: %v", driver, err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunAppliesAllMigrations(t *testing.T) {
	for _, tc := range []struct{ driver, dialect string }{
		{"duckdb", "duckdb"},
		{"sqlite3", "sqlite"},
	} {
		t.Run(tc.dialect, func(t *testing.T) {
			db := openTestDB(t, tc.driver)
			if err := NewRunner(db, tc.dialect).Run(context.Background()); err != nil {
				t.Fatalf("Run: %v", err)
			}
			for _, table := range []string{"log_entries", "schema_migrations"} {
				var n int
				if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
					t.Errorf("table %s not usable: %v", table, err)
				}
			}
		})
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, "duckdb")
	r := NewRunner(db, "duckdb")

	if err := r.Run(ctx); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := r.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	cur, pending, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != 2 || pending != 0 {
		t.Errorf("expected version=2 pending=0, got version=%d pending=%d", cur, pending)
	}
}

func TestStatusReportsCorrectly(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, "sqlite3")
	r := NewRunner(db, "sqlite3")

	cur, pending, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != 0 || pending != 2 {
		t.Errorf("before run: expected version=0 pending=2, got version=%d pending=%d", cur, pending)
	}

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	cur, pending, err = r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if cur != 2 || pending != 0 {
		t.Errorf("after run: expected version=2 pending=0, got version=%d pending=%d", cur, pending)
	}
}

func TestEveryDialectHasMigrations(t *testing.T) {
	for _, d := range []string{"mysql", "postgresql", "timescale", "sqlite", "duckdb", "clickhouse"} {
		migs, err := NewRunner(nil, d).loadMigrations()
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		if len(migs) == 0 || migs[0].version != 1 {
			t.Errorf("%s: expected migrations starting at version 1, got %d", d, len(migs))
		}
		for _, m := range migs {
			if len(m.statements) == 0 {
				t.Errorf("%s: %s has no statements", d, m.name)
			}
		}
	}
}

func TestUnknownDialect(t *testing.T) {
	if _, err := NewRunner(nil, "oracle").loadMigrations(); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	if len(got) != 2 || got[1] != "CREATE INDEX i ON a (x)" {
		t.Errorf("unexpected split: %q", got)
	}
}
