package sqlstore

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

// Dialect is the per-database strategy the generic Store defers to. Every
// function receives SQL expressions and returns SQL expressions.
type Dialect struct {
	Name   string
	Driver string

	// Open connects to dsn. Nil opens Driver with dsn unchanged.
	Open func(dsn string) (*sql.DB, error)
	// Bucket renders col as the bucket label of timerange.Label.
	Bucket func(r timerange.Range, col string) string
	// Time normalises a timestamp column for comparison and ordering.
	Time func(col string) string
	// TimeArg converts a bound instant to the driver's parameter value.
	TimeArg func(t time.Time) any
	// Key gives a grouping key byte-wise equality and ordering.
	Key func(expr string) string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool
	// LikeEscape is the escape character for LIKE patterns; EscapeClause is
	// appended after every LIKE.
	LikeEscape   byte
	EscapeClause string
}

func identity(s string) string { return s }

func utcArg(t time.Time) any { return t.UTC() }

func (d Dialect) open(dsn string) (*sql.DB, error) {
	if d.Open != nil {
		return d.Open(dsn)
	}
	return sql.Open(d.Driver, dsn)
}

// rebind rewrites ? placeholders for dialects with numbered parameters. The
// queries built here carry no ? inside string literals.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// likePattern builds a case-insensitive substring pattern for LOWER(col) LIKE ?.
// The needle folds ASCII only, as LOWER() does in SQLite and ClickHouse and as
// the in-memory filters do. MySQL, PostgreSQL and DuckDB also fold non-ASCII
// letters in the column, so they can disagree on non-ASCII capitals.
func (d Dialect) likePattern(s string) string {
	esc := string(d.LikeEscape)
	r := strings.NewReplacer(esc, esc+esc, "%", esc+"%", "_", esc+"_")
	return "%" + r.Replace(model.LowerASCII(s)) + "%"
}

// MySQL reads Blocky's MySQL/MariaDB query log. Sessions are pinned to UTC
// so DATETIME values written in UTC bucket correctly.
var MySQL = Dialect{
	Name:   "mysql",
	Driver: "mysql",
	Open:   openMySQL,
	Bucket: func(r timerange.Range, col string) string {
		switch r {
		case timerange.Hour:
			return "CONCAT(DATE_FORMAT(" + col + ", '%Y-%m-%d %H:'), LPAD(FLOOR(MINUTE(" + col + ") / 5) * 5, 2, '0'))"
		case timerange.Day:
			return "DATE_FORMAT(" + col + ", '%Y-%m-%d %H:00')"
		case timerange.Week:
			return "CONCAT(DATE_FORMAT(" + col + ", '%Y-%m-%d '), LPAD(FLOOR(HOUR(" + col + ") / 6) * 6, 2, '0'), ':00')"
		default:
			return "DATE_FORMAT(" + col + ", '%Y-%m-%d')"
		}
	},
	Time:    identity,
	TimeArg: utcArg,
	Key: func(expr string) string {
		return "(CAST(" + expr + " AS CHAR CHARACTER SET utf8mb4) COLLATE utf8mb4_bin)"
	},
	LikeEscape:   '!',
	EscapeClause: " ESCAPE '!'",
}

// openMySQL accepts both mysql:// URLs and native go-sql-driver DSNs.
func openMySQL(dsn string) (*sql.DB, error) {
	cfg, err := parseMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["time_zone"] = "'+00:00'"
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(conn), nil
}

func parseMySQLDSN(dsn string) (*mysql.Config, error) {
	if !strings.HasPrefix(dsn, "mysql://") {
		return mysql.ParseDSN(dsn)
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing mysql url: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Host + ":3306"
	}
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	for k, v := range u.Query() {
		if len(v) > 0 {
			if cfg.Params == nil {
				cfg.Params = map[string]string{}
			}
			cfg.Params[k] = v[0]
		}
	}
	return cfg, nil
}

// PostgreSQL reads Blocky's PostgreSQL (and TimescaleDB) query log.
var PostgreSQL = Dialect{
	Name:   "postgresql",
	Driver: "pgx",
	Open: func(dsn string) (*sql.DB, error) {
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, err
		}
		cfg.RuntimeParams["timezone"] = "UTC"
		return stdlib.OpenDB(*cfg), nil
	},
	Bucket: func(r timerange.Range, col string) string {
		utc := col + " AT TIME ZONE 'UTC'"
		switch r {
		case timerange.Hour:
			return "TO_CHAR(DATE_TRUNC('hour', " + utc + ") + INTERVAL '5 min' * FLOOR(EXTRACT(MINUTE FROM " + utc + ") / 5), 'YYYY-MM-DD HH24:MI')"
		case timerange.Day:
			return "TO_CHAR(DATE_TRUNC('hour', " + utc + "), 'YYYY-MM-DD HH24:00')"
		case timerange.Week:
			return "TO_CHAR(DATE_TRUNC('day', " + utc + ") + INTERVAL '6 hours' * FLOOR(EXTRACT(HOUR FROM " + utc + ") / 6), 'YYYY-MM-DD HH24:00')"
		default:
			return "TO_CHAR(DATE_TRUNC('day', " + utc + "), 'YYYY-MM-DD')"
		}
	},
	Time:         identity,
	TimeArg:      utcArg,
	Key:          func(expr string) string { return "(" + expr + ") COLLATE \"C\"" },
	Numbered:     true,
	LikeEscape:   '!',
	EscapeClause: " ESCAPE '!'",
}

// Timescale is PostgreSQL under its own name.
var Timescale = func() Dialect {
	d := PostgreSQL
	d.Name = "timescale"
	return d
}()

// sqliteTime is the layout strftime('%Y-%m-%d %H:%M:%f') produces.
const sqliteTime = "2006-01-02 15:04:05.000"

// SQLite reads a SQLite query log. Timestamps are text, so comparisons go
// through strftime to normalise separators, fractions and offsets.
var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite3",
	Open: func(dsn string) (*sql.DB, error) {
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		if dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			// every pooled connection would see its own empty database
			db.SetMaxOpenConns(1)
		}
		return db, nil
	},
	Bucket: func(r timerange.Range, col string) string {
		switch r {
		case timerange.Hour:
			return "(strftime('%Y-%m-%d %H:', " + col + ") || printf('%02d', (CAST(strftime('%M', " + col + ") AS INTEGER) / 5) * 5))"
		case timerange.Day:
			return "strftime('%Y-%m-%d %H:00', " + col + ")"
		case timerange.Week:
			return "(strftime('%Y-%m-%d ', " + col + ") || printf('%02d', (CAST(strftime('%H', " + col + ") AS INTEGER) / 6) * 6) || ':00')"
		default:
			return "strftime('%Y-%m-%d', " + col + ")"
		}
	},
	Time:         func(col string) string { return "strftime('%Y-%m-%d %H:%M:%f', " + col + ")" },
	TimeArg:      func(t time.Time) any { return t.UTC().Format(sqliteTime) },
	Key:          identity,
	LikeEscape:   '!',
	EscapeClause: " ESCAPE '!'",
}

// DuckDB reads a DuckDB query log with naive UTC TIMESTAMP columns.
var DuckDB = Dialect{
	Name:   "duckdb",
	Driver: "duckdb",
	Bucket: func(r timerange.Range, col string) string {
		switch r {
		case timerange.Hour:
			return "strftime(time_bucket(INTERVAL '5 minutes', " + col + "), '%Y-%m-%d %H:%M')"
		case timerange.Day:
			return "strftime(date_trunc('hour', " + col + "), '%Y-%m-%d %H:00')"
		case timerange.Week:
			return "strftime(time_bucket(INTERVAL '6 hours', " + col + "), '%Y-%m-%d %H:00')"
		default:
			return "strftime(date_trunc('day', " + col + "), '%Y-%m-%d')"
		}
	},
	Time:         identity,
	TimeArg:      utcArg,
	Key:          identity,
	LikeEscape:   '!',
	EscapeClause: " ESCAPE '!'",
}

// ClickHouse reads a ClickHouse query log with DateTime64(3, 'UTC') columns.
// LIKE escapes with a backslash and takes no ESCAPE clause.
var ClickHouse = Dialect{
	Name:   "clickhouse",
	Driver: "clickhouse",
	Bucket: func(r timerange.Range, col string) string {
		switch r {
		case timerange.Hour:
			return "formatDateTime(toStartOfFiveMinutes(" + col + "), '%Y-%m-%d %H:%i', 'UTC')"
		case timerange.Day:
			return "formatDateTime(toStartOfHour(" + col + "), '%Y-%m-%d %H:00', 'UTC')"
		case timerange.Week:
			return "formatDateTime(toStartOfInterval(" + col + ", INTERVAL 6 HOUR, 'UTC'), '%Y-%m-%d %H:00', 'UTC')"
		default:
			return "formatDateTime(toStartOfDay(" + col + ", 'UTC'), '%Y-%m-%d', 'UTC')"
		}
	},
	Time:       identity,
	TimeArg:    utcArg,
	Key:        identity,
	LikeEscape: '\\',
}

var dialects = map[string]Dialect{
	MySQL.Name:      MySQL,
	PostgreSQL.Name: PostgreSQL,
	"postgres":      PostgreSQL,
	Timescale.Name:  Timescale,
	SQLite.Name:     SQLite,
	"sqlite3":       SQLite,
	DuckDB.Name:     DuckDB,
	ClickHouse.Name: ClickHouse,
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, bool) {
	d, ok := dialects[strings.ToLower(name)]
	return d, ok
}
