package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/querylens/internal/logfile"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/sqlstore"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

// windowEntries straddle now-span for the 1h and 30d ranges. The inner ones
// fall before the first UTC bucket boundary after now-span.
func windowEntries() []model.LogEntry {
	mk := func(ago time.Duration, domain string) model.LogEntry {
		return model.LogEntry{
			RequestTs:    seedNow.Add(-ago),
			ClientName:   model.Str("laptop"),
			QuestionName: model.Str(domain),
			ResponseType: model.Str(model.ResponseResolved),
			QuestionType: model.Str("A"),
		}
	}
	return []model.LogEntry{
		mk(59*minute, "edge-hour.example"),
		mk(61*minute, "outside-hour.example"),
		mk(29*day+20*hour, "edge-month.example"),
		mk(30*day+minute, "outside-month.example"),
	}
}

func openWindowBackends(t *testing.T) map[string]model.Provider {
	t.Helper()
	ctx := context.Background()
	entries := windowEntries()
	out := map[string]model.Provider{}

	single := t.TempDir()
	var data []byte
	for i := len(entries) - 1; i >= 0; i-- {
		data = append(data, logfile.FormatLine(entries[i])+"\n"...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(single, "querylog.log"), data, 0644))

	perClient := t.TempDir()
	for _, e := range entries {
		name := e.RequestTs.UTC().Format(logfile.DateLayout) + "_laptop.log"
		f, err := os.OpenFile(filepath.Join(perClient, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		require.NoError(t, err)
		_, err = f.WriteString(logfile.FormatLine(e) + "\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	for kind, dir := range map[Kind]string{CSV: single, CSVClient: perClient} {
		p, err := New(ctx, Config{Kind: kind, Target: dir, Strict: true, Now: seedClock})
		require.NoError(t, err)
		out[string(kind)] = p
	}
	for _, kind := range []Kind{SQLite, DuckDB} {
		p, err := New(ctx, Config{Kind: kind, Target: filepath.Join(t.TempDir(), "window.db"), InitSchema: true, Strict: true, Now: seedClock})
		require.NoError(t, err)
		require.NoError(t, p.(*sqlstore.Store).Insert(ctx, entries))
		out[string(kind)] = p
	}
	for _, p := range out {
		t.Cleanup(func() { p.Close() })
	}
	return out
}

func TestRangeCoversNowMinusSpan(t *testing.T) {
	ctx := context.Background()
	for name, p := range openWindowBackends(t) {
		t.Run(name, func(t *testing.T) {
			for _, tc := range []struct {
				r    timerange.Range
				want []string
			}{
				{timerange.Hour, []string{"edge-hour.example"}},
				{timerange.Month, []string{"edge-hour.example", "edge-month.example", "outside-hour.example"}},
			} {
				page, err := p.TopDomains(ctx, model.TopOptions{Range: tc.r, Limit: 10})
				require.NoError(t, err)
				var got []string
				for _, d := range page.Items {
					got = append(got, d.Domain)
				}
				assert.ElementsMatch(t, tc.want, got, "range %s", tc.r)

				series, err := p.QueriesOverTime(ctx, model.OverTimeOptions{Range: tc.r})
				require.NoError(t, err)
				var total int64
				for _, b := range series {
					total += b.Total
				}
				assert.EqualValues(t, len(tc.want), total, "series %s", tc.r)
			}

			series, err := p.QueriesOverTime(ctx, model.OverTimeOptions{Range: timerange.Month})
			require.NoError(t, err)
			assert.Equal(t, "2026-02-08", series[0].Time)
			assert.EqualValues(t, 1, series[0].Total)
		})
	}
}
