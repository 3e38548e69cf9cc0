package model

import (
	"strings"
	"time"
)

// Response types emitted by the upstream DNS server.
const (
	ResponseResolved    = "RESOLVED"
	ResponseBlocked     = "BLOCKED"
	ResponseCached      = "CACHED"
	ResponseConditional = "CONDITIONAL"
	ResponseCustomDNS   = "CUSTOMDNS"
	ResponseHostsFile   = "HOSTSFILE"
	ResponseSpecial     = "SPECIAL"
	ResponseFiltered    = "FILTERED"
	ResponseNotFQDN     = "NOTFQDN"
)

// ResponseTypes lists the full response-type vocabulary in display order.
var ResponseTypes = []string{
	ResponseResolved, ResponseBlocked, ResponseCached, ResponseConditional,
	ResponseCustomDNS, ResponseHostsFile, ResponseSpecial, ResponseFiltered,
	ResponseNotFQDN,
}

// UnknownKey is the bucket key used for records with no domain, client or type.
const UnknownKey = "unknown"

// LogEntry is one DNS query observation. It is the canonical record shared by
// the file readers, the SQL stores and the read surfaces (HTTP and socket RPC).
// Nil pointers stand for null columns; a zero RequestTs means no timestamp.
type LogEntry struct {
	ID            *int64    `json:"id,omitempty" yaml:"id,omitempty"`
	RequestTs     time.Time `json:"requestTs,omitzero" yaml:"requestTs"`
	ClientIP      *string   `json:"clientIp" yaml:"clientIp"`
	ClientName    *string   `json:"clientName" yaml:"clientName"`
	DurationMs    *int64    `json:"durationMs" yaml:"durationMs"`
	Reason        *string   `json:"reason" yaml:"reason"`
	QuestionName  *string   `json:"questionName" yaml:"questionName"`
	Answer        *string   `json:"answer" yaml:"answer"`
	ResponseCode  *string   `json:"responseCode" yaml:"responseCode"`
	ResponseType  *string   `json:"responseType" yaml:"responseType"`
	QuestionType  *string   `json:"questionType" yaml:"questionType"`
	Hostname      *string   `json:"hostname" yaml:"hostname"`
	EffectiveTLDP *string   `json:"effectiveTldp" yaml:"effectiveTldp"`
}

// Str returns a pointer to s, or nil when s is empty.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int returns a pointer to n.
func Int(n int64) *int64 { return &n }

// LowerASCII lower-cases A-Z and leaves every other byte alone, matching the
// LOWER() of SQLite. Case-insensitive matching folds with it on every backend.
func LowerASCII(s string) string {
	i := 0
	for i < len(s) && (s[i] < 'A' || s[i] > 'Z') {
		i++
	}
	if i == len(s) {
		return s
	}
	b := []byte(s)
	for ; i < len(b); i++ {
		if c := b[i]; 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// Deref returns the pointed-to string, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func keyOf(s *string) string {
	if s == nil {
		return UnknownKey
	}
	return *s
}

// DomainKey returns the queried domain, or "unknown" when it is null.
func (e *LogEntry) DomainKey() string { return keyOf(e.QuestionName) }

// ClientKey returns the client display name, or "unknown" when it is null.
func (e *LogEntry) ClientKey() string { return keyOf(e.ClientName) }

// TypeKey returns the queried record type, or "unknown" when it is null.
func (e *LogEntry) TypeKey() string { return keyOf(e.QuestionType) }

// IsBlocked reports whether the query was answered by the blocking engine.
func (e *LogEntry) IsBlocked() bool {
	return e.ResponseType != nil && *e.ResponseType == ResponseBlocked
}

// IsCached reports whether the query was answered from cache.
func (e *LogEntry) IsCached() bool {
	return e.ResponseType != nil && *e.ResponseType == ResponseCached
}

// SplitReason separates the reason into its head and parenthesised detail,
// e.g. "BLOCKED (ads.list)" yields ("BLOCKED", "ads.list").
func (e *LogEntry) SplitReason() (head, detail string) {
	if e.Reason == nil {
		return "", ""
	}
	r := strings.TrimSpace(*e.Reason)
	open := strings.IndexByte(r, '(')
	if open < 0 || !strings.HasSuffix(r, ")") {
		return r, ""
	}
	return strings.TrimSpace(r[:open]), strings.TrimSpace(r[open+1 : len(r)-1])
}

// Page is one paginated slice of a larger result together with the size of
// the full result.
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"totalCount"`
}

// Stats holds rolling totals.
type Stats struct {
	TotalQueries int64 `json:"totalQueries"`
	Blocked      int64 `json:"blocked"`
}

// QueriesOverTimeEntry is one bucket of the time series. Time is the bucket
// label (see timerange.Label) and Start the bucket's first instant.
type QueriesOverTimeEntry struct {
	Time    string    `json:"time"`
	Start   time.Time `json:"start"`
	Total   int64     `json:"total"`
	Blocked int64     `json:"blocked"`
	Cached  int64     `json:"cached"`
}

// TopDomainEntry is one row of the ranked domain list.
type TopDomainEntry struct {
	Domain     string  `json:"domain"`
	Count      int64   `json:"count"`
	Blocked    int64   `json:"blocked"`
	Percentage float64 `json:"percentage"`
}

// TopClientEntry is one row of the ranked client list.
type TopClientEntry struct {
	Client     string  `json:"client"`
	Total      int64   `json:"total"`
	Blocked    int64   `json:"blocked"`
	Percentage float64 `json:"percentage"`
}

// QueryTypeEntry is one row of the record-type breakdown.
type QueryTypeEntry struct {
	Type       string  `json:"type"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// SearchHit is one domain or client matched by a substring search.
type SearchHit struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Percent returns part/whole*100, or 0 for an empty population.
func Percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
