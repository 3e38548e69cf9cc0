// Package timestamp parses the request timestamps found in query-log files and
// returned by the SQL drivers.
package timestamp

import (
	"strings"
	"time"
)

// Layouts are tried in order. Zoned layouts come first so an explicit offset
// always wins over the parser's default location.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

var localLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parser converts textual and driver-native timestamps to UTC instants.
type Parser struct {
	// Location applies to timestamps without an explicit offset.
	Location *time.Location
}

// NewParser returns a parser that reads offset-less timestamps as UTC.
func NewParser() *Parser {
	return &Parser{Location: time.UTC}
}

// ParseString parses s, returning false when no layout matches.
func (p *Parser) ParseString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// some writers use a comma before fractional seconds
	if i := strings.LastIndexByte(s, ','); i > 0 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '9' {
		s = s[:i] + "." + s[i+1:]
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseTimestamp accepts the value shapes produced by database/sql drivers
// and JSON decoders: time.Time, strings, byte slices and unix epochs.
func (p *Parser) ParseTimestamp(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if ts.IsZero() {
			return time.Time{}, false
		}
		return ts.UTC(), true
	case *time.Time:
		if ts == nil {
			return time.Time{}, false
		}
		return p.ParseTimestamp(*ts)
	case string:
		return p.ParseString(ts)
	case []byte:
		return p.ParseString(string(ts))
	case int64:
		return parseUnix(float64(ts)), true
	case int:
		return parseUnix(float64(ts)), true
	case float64:
		return parseUnix(ts), true
	}
	return time.Time{}, false
}

// parseUnix guesses the epoch unit from magnitude.
func parseUnix(v float64) time.Time {
	switch {
	case v > 1e17:
		return time.Unix(0, int64(v)).UTC()
	case v > 1e14:
		return time.UnixMicro(int64(v)).UTC()
	case v > 1e11:
		return time.UnixMilli(int64(v)).UTC()
	default:
		sec := int64(v)
		return time.Unix(sec, int64((v-float64(sec))*1e9)).UTC()
	}
}

// Format renders t the way the flat-file writers do: RFC 3339 with
// millisecond precision in UTC.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
