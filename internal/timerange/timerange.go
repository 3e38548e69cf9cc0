// Package timerange maps symbolic dashboard ranges to concrete, UTC-anchored
// bucket layouts and defines the bucket label format every backend emits.
package timerange

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned by Parse for anything outside the four ranges.
var ErrInvalidRange = errors.New("invalid time range")

// Range is a symbolic window ending now.
type Range string

const (
	Hour  Range = "1h"
	Day   Range = "24h"
	Week  Range = "7d"
	Month Range = "30d"
)

// All lists the ranges from shortest to longest.
var All = []Range{Hour, Day, Week, Month}

type layout struct {
	width time.Duration
	count int
}

var layouts = map[Range]layout{
	Hour:  {5 * time.Minute, 12},
	Day:   {time.Hour, 24},
	Week:  {6 * time.Hour, 28},
	Month: {24 * time.Hour, 30},
}

// Parse validates s as a Range.
func Parse(s string) (Range, error) {
	r := Range(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRange, s)
	}
	return r, nil
}

// Valid reports whether r is one of the four supported ranges.
func (r Range) Valid() bool {
	_, ok := layouts[r]
	return ok
}

func (r Range) String() string { return string(r) }

// Width returns the bucket width of r.
func (r Range) Width() time.Duration { return layouts[r].width }

// Count returns the number of bucket widths r spans.
func (r Range) Count() int { return layouts[r].count }

// Span returns the length of the window ending now.
func (r Range) Span() time.Duration {
	l := layouts[r]
	return time.Duration(l.count) * l.width
}

// Config is the concrete layout of a range at one instant.
type Config struct {
	Range Range
	Since time.Time // inclusive population bound, now - span
	Start time.Time // first bucket start, Since floored to Width in UTC
	Width time.Duration
	Count int // buckets from Start through the one containing now
}

// For computes the layout of r at now. Records at or after now-span belong to
// the range. Buckets lie on the UTC grid of the bucket width, so the first one
// is partly before Since and the last one contains now.
func For(r Range, now time.Time) Config {
	l, ok := layouts[r]
	if !ok {
		panic(fmt.Sprintf("timerange: unknown range %q", r))
	}
	since := now.UTC().Add(-time.Duration(l.count) * l.width)
	return Config{
		Range: r,
		Since: since,
		Start: since.Truncate(l.width),
		Width: l.width,
		Count: l.count + 1,
	}
}

// End returns the exclusive upper bound of the last bucket.
func (c Config) End() time.Time {
	return c.Start.Add(time.Duration(c.Count) * c.Width)
}

// Index returns the bucket index of t. Values outside [0, Count) mean t lies
// outside the span.
func (c Config) Index(t time.Time) int {
	d := t.Sub(c.Start)
	if d < 0 {
		// floor, not truncation toward zero
		return int((d - c.Width + 1) / c.Width)
	}
	return int(d / c.Width)
}

// Buckets returns the start instant of every bucket in order.
func (c Config) Buckets() []time.Time {
	out := make([]time.Time, c.Count)
	for i := range out {
		out[i] = c.Start.Add(time.Duration(i) * c.Width)
	}
	return out
}

// Label formats the bucket containing t for range r:
//
//	1h  -> 2006-01-02 15:04 (minute floored to 5)
//	24h -> 2006-01-02 15:00
//	7d  -> 2006-01-02 15:00 (hour floored to 6)
//	30d -> 2006-01-02
//
// SQL dialects render exactly this shape so their rows merge into the bucket
// sequence by string equality.
func Label(r Range, t time.Time) string {
	t = t.UTC()
	switch r {
	case Hour:
		return fmt.Sprintf("%s %02d:%02d", t.Format("2006-01-02"), t.Hour(), t.Minute()/5*5)
	case Day:
		return fmt.Sprintf("%s %02d:00", t.Format("2006-01-02"), t.Hour())
	case Week:
		return fmt.Sprintf("%s %02d:00", t.Format("2006-01-02"), t.Hour()/6*6)
	case Month:
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
