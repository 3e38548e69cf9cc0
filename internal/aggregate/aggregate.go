// Package aggregate turns an in-memory, range-filtered set of log entries into
// the dashboard's result shapes. Every function is pure.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

type groupCount struct {
	key     string
	count   int64
	blocked int64
}

// rank groups entries by keyOf and sorts by count desc, key asc.
func rank(entries []model.LogEntry, keyOf func(*model.LogEntry) string) []groupCount {
	idx := make(map[string]int)
	var groups []groupCount
	for i := range entries {
		e := &entries[i]
		k := keyOf(e)
		j, ok := idx[k]
		if !ok {
			j = len(groups)
			idx[k] = j
			groups = append(groups, groupCount{key: k})
		}
		groups[j].count++
		if e.IsBlocked() {
			groups[j].blocked++
		}
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].count != groups[b].count {
			return groups[a].count > groups[b].count
		}
		return groups[a].key < groups[b].key
	})
	return groups
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// QueriesOverTime counts entries per bucket of cfg. Entries before cfg.Since
// or past the last bucket are dropped.
func QueriesOverTime(entries []model.LogEntry, cfg timerange.Config) []model.QueriesOverTimeEntry {
	out := EmptySeries(cfg)
	for i := range entries {
		e := &entries[i]
		if e.RequestTs.IsZero() || e.RequestTs.Before(cfg.Since) {
			continue
		}
		b := cfg.Index(e.RequestTs)
		if b < 0 || b >= cfg.Count {
			continue
		}
		out[b].Total++
		if e.IsBlocked() {
			out[b].Blocked++
		}
		if e.IsCached() {
			out[b].Cached++
		}
	}
	return out
}

// EmptySeries returns cfg.Count zeroed, labelled buckets.
func EmptySeries(cfg timerange.Config) []model.QueriesOverTimeEntry {
	out := make([]model.QueriesOverTimeEntry, cfg.Count)
	for i, start := range cfg.Buckets() {
		out[i] = model.QueriesOverTimeEntry{
			Time:  timerange.Label(cfg.Range, start),
			Start: start,
		}
	}
	return out
}

// TopDomains ranks domains. Percentages are relative to len(entries).
func TopDomains(entries []model.LogEntry, limit, offset int) model.Page[model.TopDomainEntry] {
	groups := rank(entries, (*model.LogEntry).DomainKey)
	total := int64(len(entries))
	page := paginate(groups, limit, offset)
	items := make([]model.TopDomainEntry, len(page))
	for i, g := range page {
		items[i] = model.TopDomainEntry{
			Domain:     g.key,
			Count:      g.count,
			Blocked:    g.blocked,
			Percentage: model.Percent(g.count, total),
		}
	}
	return model.Page[model.TopDomainEntry]{Items: items, TotalCount: len(groups)}
}

// TopClients ranks clients. Percentages are relative to len(entries).
func TopClients(entries []model.LogEntry, limit, offset int) model.Page[model.TopClientEntry] {
	groups := rank(entries, (*model.LogEntry).ClientKey)
	total := int64(len(entries))
	page := paginate(groups, limit, offset)
	items := make([]model.TopClientEntry, len(page))
	for i, g := range page {
		items[i] = model.TopClientEntry{
			Client:     g.key,
			Total:      g.count,
			Blocked:    g.blocked,
			Percentage: model.Percent(g.count, total),
		}
	}
	return model.Page[model.TopClientEntry]{Items: items, TotalCount: len(groups)}
}

// QueryTypes breaks entries down by record type.
func QueryTypes(entries []model.LogEntry) []model.QueryTypeEntry {
	groups := rank(entries, (*model.LogEntry).TypeKey)
	total := int64(len(entries))
	out := make([]model.QueryTypeEntry, len(groups))
	for i, g := range groups {
		out[i] = model.QueryTypeEntry{Type: g.key, Count: g.count, Percentage: model.Percent(g.count, total)}
	}
	return out
}

// FilterBlocked restricts entries to BLOCKED responses in blocked mode.
func FilterBlocked(entries []model.LogEntry, mode model.FilterMode) []model.LogEntry {
	if mode != model.FilterBlocked {
		return entries
	}
	out := make([]model.LogEntry, 0, len(entries)/4)
	for _, e := range entries {
		if e.IsBlocked() {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether the ASCII-lower-cased value of s contains needle,
// which must already be folded with model.LowerASCII. Null never matches.
func Contains(s *string, needle string) bool {
	return s != nil && strings.Contains(model.LowerASCII(*s), needle)
}

// FilterDomainClient keeps entries whose domain and client contain the given
// substrings, case-insensitively. Empty arguments do not filter.
func FilterDomainClient(entries []model.LogEntry, domain, client string) []model.LogEntry {
	if domain == "" && client == "" {
		return entries
	}
	d, c := model.LowerASCII(domain), model.LowerASCII(client)
	out := make([]model.LogEntry, 0, len(entries))
	for _, e := range entries {
		if d != "" && !Contains(e.QuestionName, d) {
			continue
		}
		if c != "" && !Contains(e.ClientName, c) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func search(entries []model.LogEntry, query string, limit int, field func(*model.LogEntry) *string) []model.SearchHit {
	if strings.TrimSpace(query) == "" {
		return []model.SearchHit{}
	}
	needle := model.LowerASCII(query)
	matched := make([]model.LogEntry, 0)
	for _, e := range entries {
		if Contains(field(&e), needle) {
			matched = append(matched, e)
		}
	}
	groups := rank(matched, func(e *model.LogEntry) string { return *field(e) })
	page := paginate(groups, limit, 0)
	out := make([]model.SearchHit, len(page))
	for i, g := range page {
		out[i] = model.SearchHit{Key: g.key, Count: g.count}
	}
	return out
}

// SearchDomains returns the domains containing query, most queried first.
// A blank query returns no hits.
func SearchDomains(entries []model.LogEntry, query string, limit int) []model.SearchHit {
	return search(entries, query, limit, func(e *model.LogEntry) *string { return e.QuestionName })
}

// SearchClients returns the clients containing query, most active first.
func SearchClients(entries []model.LogEntry, query string, limit int) []model.SearchHit {
	return search(entries, query, limit, func(e *model.LogEntry) *string { return e.ClientName })
}

// Stats totals the entries requested at or after since.
func Stats(entries []model.LogEntry, since time.Time) model.Stats {
	var s model.Stats
	for i := range entries {
		e := &entries[i]
		if e.RequestTs.IsZero() || e.RequestTs.Before(since) {
			continue
		}
		s.TotalQueries++
		if e.IsBlocked() {
			s.Blocked++
		}
	}
	return s
}

// InRange keeps entries with a timestamp at or after since.
func InRange(entries []model.LogEntry, since time.Time) []model.LogEntry {
	out := make([]model.LogEntry, 0, len(entries))
	for _, e := range entries {
		if !e.RequestTs.IsZero() && !e.RequestTs.Before(since) {
			out = append(out, e)
		}
	}
	return out
}
