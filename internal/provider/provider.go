// Package provider builds the configured query-log backend.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/querylens/internal/csvlog"
	"github.com/tinytelemetry/querylens/internal/demo"
	"github.com/tinytelemetry/querylens/internal/memstore"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/sqlstore"
)

var log = logrus.WithField("component", "provider")

var (
	// ErrMissingTarget means the kind needs a directory or DSN and none was set.
	ErrMissingTarget = errors.New("log target is required")
	// ErrUnknownKind means the configured log type is not supported.
	ErrUnknownKind = errors.New("unknown log type")
)

// Kind names a backend.
type Kind string

const (
	CSV        Kind = "csv"
	CSVClient  Kind = "csv-client"
	MySQL      Kind = "mysql"
	PostgreSQL Kind = "postgresql"
	Timescale  Kind = "timescale"
	SQLite     Kind = "sqlite"
	DuckDB     Kind = "duckdb"
	ClickHouse Kind = "clickhouse"
	Demo       Kind = "demo"
)

// Kinds lists every supported backend.
var Kinds = []Kind{CSV, CSVClient, MySQL, PostgreSQL, Timescale, SQLite, DuckDB, ClickHouse, Demo}

// Config selects and tunes a backend.
type Config struct {
	Kind   Kind
	Target string // directory for csv kinds, DSN for SQL kinds, fixture file for demo

	DemoMode    bool   // forces the demo backend regardless of Kind
	DemoFixture string // YAML fixture for the demo backend
	DemoSeed    uint64

	CacheTTL     time.Duration // memory backends
	QueryTimeout time.Duration // SQL backends
	Strict       bool          // surface I/O and query errors instead of empty results
	InitSchema   bool          // create the log table on SQL backends

	Now func() time.Time
}

// New constructs the provider described by cfg. Configuration errors are
// returned before any I/O.
func New(ctx context.Context, cfg Config) (model.Provider, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(string(cfg.Kind))))
	if cfg.DemoMode {
		kind = Demo
	}

	switch kind {
	case Demo:
		fixture := cfg.DemoFixture
		if fixture == "" && cfg.Kind == Demo {
			fixture = cfg.Target
		}
		log.WithField("fixture", fixture).Info("using demo provider")
		return demo.New(demo.Options{Seed: cfg.DemoSeed, Fixture: fixture, Now: cfg.Now})

	case CSV, CSVClient:
		if cfg.Target == "" {
			return nil, fmt.Errorf("%w for %s", ErrMissingTarget, kind)
		}
		opts := csvlog.Options{Options: memstore.Options{
			CacheTTL: cfg.CacheTTL,
			Now:      cfg.Now,
			Strict:   cfg.Strict,
		}}
		log.WithFields(logrus.Fields{"kind": kind, "dir": cfg.Target}).Info("using file provider")
		if kind == CSV {
			return csvlog.NewFileProvider(cfg.Target, opts), nil
		}
		return csvlog.NewClientProvider(cfg.Target, opts), nil

	case MySQL, PostgreSQL, Timescale, SQLite, DuckDB, ClickHouse:
		if cfg.Target == "" {
			return nil, fmt.Errorf("%w for %s", ErrMissingTarget, kind)
		}
		d, _ := sqlstore.Lookup(string(kind))
		s, err := sqlstore.Open(ctx, d, cfg.Target, sqlstore.Options{
			QueryTimeout: cfg.QueryTimeout,
			Now:          cfg.Now,
			Strict:       cfg.Strict,
		})
		if err != nil {
			return nil, err
		}
		if cfg.InitSchema {
			if err := s.InitSchema(ctx); err != nil {
				s.Close()
				return nil, fmt.Errorf("initialising %s schema: %w", kind, err)
			}
		}
		log.WithField("kind", kind).Info("using sql provider")
		return s, nil
	}

	if kind == "" {
		return nil, fmt.Errorf("%w: none configured (one of %s)", ErrUnknownKind, kindList())
	}
	return nil, fmt.Errorf("%w %q (one of %s)", ErrUnknownKind, kind, kindList())
}

func kindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
