package timerange

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 14, 37, 12, 0, time.UTC)

func TestForLayouts(t *testing.T) {
	tests := []struct {
		r         Range
		width     time.Duration
		count     int
		wantSince time.Time
		wantStart time.Time
	}{
		{Hour, 5 * time.Minute, 13, time.Date(2026, 3, 10, 13, 37, 12, 0, time.UTC), time.Date(2026, 3, 10, 13, 35, 0, 0, time.UTC)},
		{Day, time.Hour, 25, time.Date(2026, 3, 9, 14, 37, 12, 0, time.UTC), time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)},
		{Week, 6 * time.Hour, 29, time.Date(2026, 3, 3, 14, 37, 12, 0, time.UTC), time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)},
		{Month, 24 * time.Hour, 31, time.Date(2026, 2, 8, 14, 37, 12, 0, time.UTC), time.Date(2026, 2, 8, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			cfg := For(tt.r, testNow)
			if cfg.Width != tt.width || cfg.Count != tt.count {
				t.Fatalf("layout = %v x %d, want %v x %d", cfg.Width, cfg.Count, tt.width, tt.count)
			}
			if !cfg.Since.Equal(tt.wantSince) {
				t.Errorf("since = %v, want %v", cfg.Since, tt.wantSince)
			}
			if !cfg.Since.Equal(testNow.Add(-tt.r.Span())) {
				t.Errorf("since %v is not now minus %v", cfg.Since, tt.r.Span())
			}
			if !cfg.Start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", cfg.Start, tt.wantStart)
			}
			if cfg.Index(cfg.Since) != 0 {
				t.Errorf("since falls in bucket %d, want 0", cfg.Index(cfg.Since))
			}
			if cfg.Index(testNow) != cfg.Count-1 {
				t.Errorf("now falls in bucket %d, want %d", cfg.Index(testNow), cfg.Count-1)
			}
			if !cfg.End().After(testNow) {
				t.Errorf("end %v does not cover now", cfg.End())
			}
			if cfg.End().Sub(testNow) > cfg.Width {
				t.Errorf("end %v more than one bucket past now", cfg.End())
			}
		})
	}
}

func TestForOnBucketBoundary(t *testing.T) {
	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	cfg := For(Month, at)
	if !cfg.Start.Equal(cfg.Since) {
		t.Errorf("start = %v, want since %v", cfg.Start, cfg.Since)
	}
	if got := Label(Month, cfg.Buckets()[cfg.Count-1]); got != "2026-03-10" {
		t.Errorf("last bucket = %q, want the bucket starting at now", got)
	}
}

func TestForIgnoresLocalZone(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	a := For(Week, testNow)
	b := For(Week, testNow.In(loc))
	if !a.Start.Equal(b.Start) {
		t.Errorf("start differs by zone: %v vs %v", a.Start, b.Start)
	}
}

func TestIndex(t *testing.T) {
	cfg := For(Hour, testNow)

	tests := []struct {
		at   time.Time
		want int
	}{
		{cfg.Start, 0},
		{cfg.Start.Add(4*time.Minute + 59*time.Second), 0},
		{cfg.Start.Add(5 * time.Minute), 1},
		{testNow, 12},
		{cfg.Start.Add(-time.Second), -1},
		{cfg.End(), 13},
	}
	for _, tt := range tests {
		if got := cfg.Index(tt.at); got != tt.want {
			t.Errorf("Index(%v) = %d, want %d", tt.at, got, tt.want)
		}
	}
}

func TestLabel(t *testing.T) {
	at := time.Date(2026, 3, 10, 14, 37, 12, 0, time.UTC)
	tests := []struct {
		r    Range
		want string
	}{
		{Hour, "2026-03-10 14:35"},
		{Day, "2026-03-10 14:00"},
		{Week, "2026-03-10 12:00"},
		{Month, "2026-03-10"},
	}
	for _, tt := range tests {
		if got := Label(tt.r, at); got != tt.want {
			t.Errorf("Label(%s) = %q, want %q", tt.r, got, tt.want)
		}
	}

	// offsets are normalised to UTC before formatting
	east := at.In(time.FixedZone("CET", 3600))
	if got := Label(Day, east); got != "2026-03-10 14:00" {
		t.Errorf("Label in CET = %q", got)
	}
}

func TestBucketLabelsAreUnique(t *testing.T) {
	for _, r := range All {
		cfg := For(r, testNow)
		seen := map[string]bool{}
		for _, b := range cfg.Buckets() {
			l := Label(r, b)
			if seen[l] {
				t.Fatalf("%s: duplicate label %q", r, l)
			}
			seen[l] = true
		}
		if len(seen) != cfg.Count {
			t.Errorf("%s: %d labels, want %d", r, len(seen), cfg.Count)
		}
	}
}

func TestParse(t *testing.T) {
	for _, s := range []string{"1h", "24h", "7d", "30d"} {
		if _, err := Parse(s); err != nil {
			t.Errorf("Parse(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "2h", "1d", "30D"} {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidRange", s, err)
		}
	}
}
