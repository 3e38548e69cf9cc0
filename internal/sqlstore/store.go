// Package sqlstore answers the provider contract with SQL aggregation against
// the log_entries table Blocky writes to MySQL, PostgreSQL, SQLite, DuckDB
// or ClickHouse. Dialect differences live in Dialect values; the queries
// themselves are shared.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timestamp"
)

var log = logrus.WithField("component", "sqlstore")

// DefaultTable is the table Blocky's query logger writes to.
const DefaultTable = "log_entries"

// identPattern guards table and column names, which are spliced into SQL.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Columns maps record fields to column names.
type Columns struct {
	RequestTs     string `yaml:"requestTs"`
	ClientIP      string `yaml:"clientIp"`
	ClientName    string `yaml:"clientName"`
	DurationMs    string `yaml:"durationMs"`
	Reason        string `yaml:"reason"`
	ResponseType  string `yaml:"responseType"`
	QuestionType  string `yaml:"questionType"`
	QuestionName  string `yaml:"questionName"`
	EffectiveTLDP string `yaml:"effectiveTldp"`
	Answer        string `yaml:"answer"`
	ResponseCode  string `yaml:"responseCode"`
	Hostname      string `yaml:"hostname"`
}

// DefaultColumns returns Blocky's column names.
func DefaultColumns() Columns {
	return Columns{
		RequestTs:     "request_ts",
		ClientIP:      "client_ip",
		ClientName:    "client_name",
		DurationMs:    "duration_ms",
		Reason:        "reason",
		ResponseType:  "response_type",
		QuestionType:  "question_type",
		QuestionName:  "question_name",
		EffectiveTLDP: "effective_tldp",
		Answer:        "answer",
		ResponseCode:  "response_code",
		Hostname:      "hostname",
	}
}

func (c Columns) list() []string {
	return []string{
		c.RequestTs, c.ClientIP, c.ClientName, c.DurationMs, c.Reason, c.ResponseType,
		c.QuestionType, c.QuestionName, c.EffectiveTLDP, c.Answer, c.ResponseCode, c.Hostname,
	}
}

// Options tune a Store.
type Options struct {
	Table        string           // defaults to DefaultTable
	Columns      Columns          // zero value selects DefaultColumns
	QueryTimeout time.Duration    // per statement; defaults to model.DefaultQueryTimeout
	Now          func() time.Time // defaults to time.Now
	Strict       bool             // return query errors instead of empty results
}

// Store runs the provider queries against one database.
type Store struct {
	db     *sql.DB
	d      Dialect
	table  string
	cols   Columns
	ts     string // timestamp column as the dialect compares it
	parser *timestamp.Parser
	now    func() time.Time
	strict bool
	log    *logrus.Entry

	QueryTimeout time.Duration
}

var _ model.Provider = (*Store)(nil)

// Open connects to dsn using dialect d and verifies the connection.
func Open(ctx context.Context, d Dialect, dsn string, opts Options) (*Store, error) {
	db, err := d.open(dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", d.Name, err)
	}
	s, err := New(db, d, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	pctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", d.Name, err)
	}
	return s, nil
}

// New wraps an open database. The Store takes ownership of db.
func New(db *sql.DB, d Dialect, opts Options) (*Store, error) {
	s := &Store{
		db:           db,
		d:            d,
		table:        opts.Table,
		cols:         opts.Columns,
		parser:       timestamp.NewParser(),
		now:          opts.Now,
		strict:       opts.Strict,
		QueryTimeout: opts.QueryTimeout,
		log:          log.WithField("dialect", d.Name),
	}
	if s.table == "" {
		s.table = DefaultTable
	}
	if s.cols == (Columns{}) {
		s.cols = DefaultColumns()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.QueryTimeout <= 0 {
		s.QueryTimeout = model.DefaultQueryTimeout
	}
	for _, name := range append([]string{s.table}, s.cols.list()...) {
		if !identPattern.MatchString(name) {
			return nil, fmt.Errorf("sqlstore: invalid identifier %q", name)
		}
	}
	s.ts = d.Time(s.cols.RequestTs)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect {
	return s.d
}

// queryCtx bounds a single statement by the store's query timeout.
func (s *Store) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.QueryTimeout)
}

// fail applies the error policy. Cancellation by the caller and strict mode
// return the error; otherwise it is logged and the caller answers with
// empty data.
func (s *Store) fail(parent context.Context, op string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if s.strict {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.WithField("op", op).Warnf("query exceeded %s", s.QueryTimeout)
		return nil
	}
	s.log.WithField("op", op).WithError(err).Warn("query failed")
	return nil
}

// nullTime scans a nullable timestamp of any driver representation.
type nullTime struct {
	parser *timestamp.Parser
	t      time.Time
}

func (n *nullTime) Scan(v any) error {
	n.t = time.Time{}
	if v == nil {
		return nil
	}
	t, ok := n.parser.ParseTimestamp(v)
	if !ok {
		switch tv := v.(type) {
		case time.Time:
			return nil
		case *time.Time:
			if tv == nil || tv.IsZero() {
				return nil
			}
		}
		return fmt.Errorf("unsupported timestamp %T %v", v, v)
	}
	n.t = t
	return nil
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
