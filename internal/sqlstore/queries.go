package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/tinytelemetry/querylens/internal/aggregate"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

// where accumulates AND-ed conditions and their arguments.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (s *Store) since(w *where, t time.Time) {
	w.add(s.ts+" >= ?", s.d.TimeArg(t))
}

// like adds a case-insensitive substring match on col. NULL never matches.
func (s *Store) like(w *where, col, needle string) {
	w.add("LOWER("+col+") LIKE ?"+s.d.EscapeClause, s.d.likePattern(needle))
}

// keyOf groups col with NULL folded into model.UnknownKey.
func (s *Store) keyOf(col string) string {
	return s.d.Key("COALESCE(" + col + ", '" + model.UnknownKey + "')")
}

func (s *Store) countIf(responseType string) string {
	return "COUNT(CASE WHEN " + s.cols.ResponseType + " = '" + responseType + "' THEN 1 END)"
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args []any, dest ...any) error {
	return s.db.QueryRowContext(ctx, s.d.rebind(query), args...).Scan(dest...)
}

// QueryLogs lists raw entries newest first.
func (s *Store) QueryLogs(ctx context.Context, opts model.QueryLogsOptions) (model.Page[model.LogEntry], error) {
	page := model.Page[model.LogEntry]{Items: []model.LogEntry{}}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	c := s.cols
	var w where
	if opts.Search != "" {
		s.like(&w, c.QuestionName, opts.Search)
	}
	if opts.ResponseType != "" {
		w.add(c.ResponseType+" = ?", opts.ResponseType)
	}
	if opts.Client != "" {
		s.like(&w, c.ClientName, opts.Client)
	}
	if opts.QuestionType != "" {
		w.add(c.QuestionType+" = ?", opts.QuestionType)
	}

	var total int64
	if err := s.queryRow(qctx, "SELECT COUNT(*) FROM "+s.table+w.String(), w.args, &total); err != nil {
		return page, s.fail(ctx, "QueryLogs", err)
	}
	page.TotalCount = int(total)
	if opts.Limit <= 0 || total == 0 {
		return page, nil
	}

	q := "SELECT " + strings.Join(c.list(), ", ") + " FROM " + s.table + w.String() +
		" ORDER BY " + s.logOrder() + " LIMIT ? OFFSET ?"
	rows, err := s.query(qctx, q, append(w.args, opts.Limit, max(opts.Offset, 0))...)
	if err != nil {
		return page, s.fail(ctx, "QueryLogs", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			s.log.WithError(err).Warn("scan error (QueryLogs)")
			continue
		}
		page.Items = append(page.Items, e)
	}
	if err := rows.Err(); err != nil {
		return model.Page[model.LogEntry]{Items: []model.LogEntry{}}, s.fail(ctx, "QueryLogs", err)
	}
	return page, nil
}

// logOrder sorts newest first. Rows sharing a timestamp fall back to the
// remaining columns so LIMIT/OFFSET pages neither overlap nor skip rows.
func (s *Store) logOrder() string {
	cols := s.cols.list()
	return strings.Join(append([]string{s.ts + " DESC"}, cols[1:]...), ", ")
}

func (s *Store) scanEntry(rows *sql.Rows) (model.LogEntry, error) {
	var (
		ts                                         = nullTime{parser: s.parser}
		ip, name, reason, rt, qt, qn, tld, ans, rc sql.NullString
		host                                       sql.NullString
		dur                                        sql.NullInt64
	)
	if err := rows.Scan(&ts, &ip, &name, &dur, &reason, &rt, &qt, &qn, &tld, &ans, &rc, &host); err != nil {
		return model.LogEntry{}, err
	}
	return model.LogEntry{
		RequestTs:     ts.t,
		ClientIP:      strPtr(ip),
		ClientName:    strPtr(name),
		DurationMs:    intPtr(dur),
		Reason:        strPtr(reason),
		ResponseType:  strPtr(rt),
		QuestionType:  strPtr(qt),
		QuestionName:  strPtr(qn),
		EffectiveTLDP: strPtr(tld),
		Answer:        strPtr(ans),
		ResponseCode:  strPtr(rc),
		Hostname:      strPtr(host),
	}, nil
}

// Stats24h counts entries of the trailing 24 hours.
func (s *Store) Stats24h(ctx context.Context) (model.Stats, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var w where
	s.since(&w, s.now().Add(-24*time.Hour))
	var st model.Stats
	q := "SELECT COUNT(*), " + s.countIf(model.ResponseBlocked) + " FROM " + s.table + w.String()
	if err := s.queryRow(qctx, q, w.args, &st.TotalQueries, &st.Blocked); err != nil {
		return model.Stats{}, s.fail(ctx, "Stats24h", err)
	}
	return st, nil
}

// QueriesOverTime buckets the range in SQL and merges the rows into the full
// zero-filled series, so every backend returns the same labels.
func (s *Store) QueriesOverTime(ctx context.Context, opts model.OverTimeOptions) ([]model.QueriesOverTimeEntry, error) {
	cfg := timerange.For(opts.Range, s.now())
	out := aggregate.EmptySeries(cfg)
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var w where
	s.since(&w, cfg.Since)
	if opts.Domain != "" {
		s.like(&w, s.cols.QuestionName, opts.Domain)
	}
	if opts.Client != "" {
		s.like(&w, s.cols.ClientName, opts.Client)
	}
	bucket := s.d.Bucket(opts.Range, s.cols.RequestTs)
	q := "SELECT " + bucket + ", COUNT(*), " + s.countIf(model.ResponseBlocked) + ", " + s.countIf(model.ResponseCached) +
		" FROM " + s.table + w.String() + " GROUP BY " + bucket
	rows, err := s.query(qctx, q, w.args...)
	if err != nil {
		return out, s.fail(ctx, "QueriesOverTime", err)
	}
	defer rows.Close()

	index := make(map[string]int, len(out))
	for i, b := range out {
		index[b.Time] = i
	}
	for rows.Next() {
		var (
			label                  sql.NullString
			total, blocked, cached int64
		)
		if err := rows.Scan(&label, &total, &blocked, &cached); err != nil {
			s.log.WithError(err).Warn("scan error (QueriesOverTime)")
			continue
		}
		// rows past the end of the span have no bucket
		i, ok := index[label.String]
		if !label.Valid || !ok {
			continue
		}
		out[i].Total += total
		out[i].Blocked += blocked
		out[i].Cached += cached
	}
	if err := rows.Err(); err != nil {
		return aggregate.EmptySeries(cfg), s.fail(ctx, "QueriesOverTime", err)
	}
	return out, nil
}

type group struct {
	key     string
	count   int64
	blocked int64
}

// ranked returns one page of col's groups ordered by count then key, the
// number of groups, and the size of the filtered population.
func (s *Store) ranked(ctx context.Context, op, col string, opts model.TopOptions) ([]group, int, int64, error) {
	cfg := timerange.For(opts.Range, s.now())
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var w where
	s.since(&w, cfg.Since)
	if opts.Filter == model.FilterBlocked {
		w.add(s.cols.ResponseType+" = ?", model.ResponseBlocked)
	}
	key := s.keyOf(col)

	var population, distinct int64
	q := "SELECT COUNT(*), COUNT(DISTINCT " + key + ") FROM " + s.table + w.String()
	if err := s.queryRow(qctx, q, w.args, &population, &distinct); err != nil {
		return nil, 0, 0, s.fail(ctx, op, err)
	}
	if opts.Limit <= 0 || distinct == 0 {
		return nil, int(distinct), population, nil
	}

	q = "SELECT " + key + ", COUNT(*), " + s.countIf(model.ResponseBlocked) + " FROM " + s.table + w.String() +
		" GROUP BY " + key + " ORDER BY COUNT(*) DESC, " + key + " ASC LIMIT ? OFFSET ?"
	rows, err := s.query(qctx, q, append(w.args, opts.Limit, max(opts.Offset, 0))...)
	if err != nil {
		return nil, 0, 0, s.fail(ctx, op, err)
	}
	defer rows.Close()

	var groups []group
	for rows.Next() {
		var g group
		if err := rows.Scan(&g.key, &g.count, &g.blocked); err != nil {
			s.log.WithError(err).Warnf("scan error (%s)", op)
			continue
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, s.fail(ctx, op, err)
	}
	return groups, int(distinct), population, nil
}

// TopDomains ranks domains over the range.
func (s *Store) TopDomains(ctx context.Context, opts model.TopOptions) (model.Page[model.TopDomainEntry], error) {
	groups, total, population, err := s.ranked(ctx, "TopDomains", s.cols.QuestionName, opts)
	if err != nil {
		return model.Page[model.TopDomainEntry]{Items: []model.TopDomainEntry{}}, err
	}
	page := model.Page[model.TopDomainEntry]{Items: make([]model.TopDomainEntry, len(groups)), TotalCount: total}
	for i, g := range groups {
		page.Items[i] = model.TopDomainEntry{
			Domain:     g.key,
			Count:      g.count,
			Blocked:    g.blocked,
			Percentage: model.Percent(g.count, population),
		}
	}
	return page, nil
}

// TopClients ranks clients over the range.
func (s *Store) TopClients(ctx context.Context, opts model.TopOptions) (model.Page[model.TopClientEntry], error) {
	groups, total, population, err := s.ranked(ctx, "TopClients", s.cols.ClientName, opts)
	if err != nil {
		return model.Page[model.TopClientEntry]{Items: []model.TopClientEntry{}}, err
	}
	page := model.Page[model.TopClientEntry]{Items: make([]model.TopClientEntry, len(groups)), TotalCount: total}
	for i, g := range groups {
		page.Items[i] = model.TopClientEntry{
			Client:     g.key,
			Total:      g.count,
			Blocked:    g.blocked,
			Percentage: model.Percent(g.count, population),
		}
	}
	return page, nil
}

// QueryTypesBreakdown counts record types over the range.
func (s *Store) QueryTypesBreakdown(ctx context.Context, r timerange.Range) ([]model.QueryTypeEntry, error) {
	cfg := timerange.For(r, s.now())
	out := []model.QueryTypeEntry{}
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var w where
	s.since(&w, cfg.Since)
	key := s.keyOf(s.cols.QuestionType)
	q := "SELECT " + key + ", COUNT(*) FROM " + s.table + w.String() +
		" GROUP BY " + key + " ORDER BY COUNT(*) DESC, " + key + " ASC"
	rows, err := s.query(qctx, q, w.args...)
	if err != nil {
		return out, s.fail(ctx, "QueryTypesBreakdown", err)
	}
	defer rows.Close()

	var population int64
	for rows.Next() {
		var e model.QueryTypeEntry
		if err := rows.Scan(&e.Type, &e.Count); err != nil {
			s.log.WithError(err).Warn("scan error (QueryTypesBreakdown)")
			continue
		}
		population += e.Count
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return []model.QueryTypeEntry{}, s.fail(ctx, "QueryTypesBreakdown", err)
	}
	for i := range out {
		out[i].Percentage = model.Percent(out[i].Count, population)
	}
	return out, nil
}

// SearchDomains returns domains containing the query, most queried first.
func (s *Store) SearchDomains(ctx context.Context, opts model.SearchOptions) ([]model.SearchHit, error) {
	return s.search(ctx, "SearchDomains", s.cols.QuestionName, opts)
}

// SearchClients returns clients containing the query, most active first.
func (s *Store) SearchClients(ctx context.Context, opts model.SearchOptions) ([]model.SearchHit, error) {
	return s.search(ctx, "SearchClients", s.cols.ClientName, opts)
}

func (s *Store) search(ctx context.Context, op, col string, opts model.SearchOptions) ([]model.SearchHit, error) {
	hits := []model.SearchHit{}
	if strings.TrimSpace(opts.Query) == "" || opts.Limit <= 0 {
		return hits, nil
	}
	cfg := timerange.For(opts.Range, s.now())
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var w where
	s.since(&w, cfg.Since)
	s.like(&w, col, opts.Query)
	key := s.d.Key(col)
	q := "SELECT " + key + ", COUNT(*) FROM " + s.table + w.String() +
		" GROUP BY " + key + " ORDER BY COUNT(*) DESC, " + key + " ASC LIMIT ?"
	rows, err := s.query(qctx, q, append(w.args, opts.Limit)...)
	if err != nil {
		return hits, s.fail(ctx, op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var h model.SearchHit
		if err := rows.Scan(&h.Key, &h.Count); err != nil {
			s.log.WithError(err).Warnf("scan error (%s)", op)
			continue
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return []model.SearchHit{}, s.fail(ctx, op, err)
	}
	return hits, nil
}
