package demo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/querylens/internal/logfile"
	"github.com/tinytelemetry/querylens/internal/logparse"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

var now = time.Date(2026, 3, 10, 14, 37, 12, 0, time.UTC)

func clock() time.Time { return now }

func TestGeneratorIsDeterministicPerSeed(t *testing.T) {
	a := NewGenerator(42).Generate(now, 50)
	b := NewGenerator(42).Generate(now, 50)
	assert.Equal(t, a, b)

	c := NewGenerator(43).Generate(now, 50)
	assert.NotEqual(t, a, c)
}

func TestGeneratorEntriesAreWellFormed(t *testing.T) {
	entries := NewGenerator(7).Generate(now, 500)
	require.Len(t, entries, 500)

	for i, e := range entries {
		require.False(t, e.RequestTs.After(now), "entry %d in the future", i)
		require.True(t, e.RequestTs.After(now.Add(-30*24*time.Hour)), "entry %d too old", i)
		if i > 0 {
			require.False(t, e.RequestTs.Before(entries[i-1].RequestTs), "not oldest first")
		}
		rt := model.Deref(e.ResponseType)
		assert.Equal(t, rt, logparse.NormalizeResponseType(rt))
		_, ok := logparse.NormalizeQuestionType(model.Deref(e.QuestionType))
		assert.True(t, ok, "bad question type %q", model.Deref(e.QuestionType))
		if e.IsBlocked() {
			head, detail := e.SplitReason()
			assert.Equal(t, model.ResponseBlocked, head)
			assert.NotEmpty(t, detail)
		}
	}
}

func TestGeneratorEntriesSurviveTheLogFormat(t *testing.T) {
	for i, e := range NewGenerator(5).Generate(now, 200) {
		require.Zero(t, e.RequestTs.Nanosecond()%int(time.Millisecond), "entry %d below millisecond precision", i)

		got, ok := logfile.ParseLine(logfile.FormatLine(e))
		require.True(t, ok)
		require.True(t, got.RequestTs.Equal(e.RequestTs), "entry %d: %v != %v", i, got.RequestTs, e.RequestTs)
		got.RequestTs, e.RequestTs = time.Time{}, time.Time{}
		require.Equal(t, e, got, "entry %d", i)
	}
}

func TestGenerateDay(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	for _, e := range NewGenerator(1).GenerateDay(day.Add(13*time.Hour), 100) {
		assert.Equal(t, day, e.RequestTs.Truncate(24*time.Hour))
	}
}

func TestProviderIsStableAcrossCalls(t *testing.T) {
	p, err := New(Options{Seed: 9, Size: 300, Now: clock})
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.QueryLogs(ctx, model.QueryLogsOptions{Limit: 20})
	require.NoError(t, err)
	b, err := p.QueryLogs(ctx, model.QueryLogsOptions{Limit: 20})
	require.NoError(t, err)

	assert.Equal(t, 300, a.TotalCount)
	assert.Equal(t, a, b)
	for i := 1; i < len(a.Items); i++ {
		assert.False(t, a.Items[i].RequestTs.After(a.Items[i-1].RequestTs))
	}

	first, err := p.QueryLogs(ctx, model.QueryLogsOptions{Limit: 5})
	require.NoError(t, err)
	second, err := p.QueryLogs(ctx, model.QueryLogsOptions{Limit: 5, Offset: 5})
	require.NoError(t, err)
	joined := append(append([]model.LogEntry{}, first.Items...), second.Items...)
	assert.Equal(t, a.Items[:10], joined)

	top1, err := p.TopDomains(ctx, model.TopOptions{Range: timerange.Month, Limit: 10})
	require.NoError(t, err)
	top2, err := p.TopDomains(ctx, model.TopOptions{Range: timerange.Month, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, top1, top2)

	series, err := p.QueriesOverTime(ctx, model.OverTimeOptions{Range: timerange.Month})
	require.NoError(t, err)
	assert.Len(t, series, 31)
}

func TestProviderFollowsTheClock(t *testing.T) {
	at := now
	p, err := New(Options{Seed: 9, Size: 50, Now: func() time.Time { return at }})
	require.NoError(t, err)
	ctx := context.Background()

	a, err := p.QueryLogs(ctx, model.QueryLogsOptions{Limit: 1})
	require.NoError(t, err)
	at = at.Add(time.Hour)
	b, err := p.QueryLogs(ctx, model.QueryLogsOptions{Limit: 1})
	require.NoError(t, err)

	require.Len(t, a.Items, 1)
	require.Len(t, b.Items, 1)
	assert.Equal(t, time.Hour, b.Items[0].RequestTs.Sub(a.Items[0].RequestTs))
}

const fixtureYAML = `entries:
  - ago: 2m
    clientIp: 192.168.1.10
    clientName: laptop
    reason: BLOCKED (ads.list)
    questionName: blocked-site.com
    questionType: A
  - ago: 3h
    clientIp: 192.168.1.20
    reason: RESOLVED
    responseType: RESOLVED
    questionName: google.com
    questionType: AAAA
  - requestTs: 2020-01-01T00:00:00Z
    clientName: ancient
    responseType: CACHED
`

func TestProviderFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0644))

	p, err := New(Options{Fixture: path, Now: clock})
	require.NoError(t, err)
	ctx := context.Background()

	page, err := p.QueryLogs(ctx, model.QueryLogsOptions{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 3, page.TotalCount)
	first := page.Items[0]
	assert.Equal(t, now.Add(-2*time.Minute), first.RequestTs)
	assert.True(t, first.IsBlocked(), "response type derived from reason")

	top, err := p.TopClients(ctx, model.TopOptions{Range: timerange.Day, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, top.TotalCount)
	assert.Equal(t, "laptop", top.Items[0].Client)
	assert.Equal(t, model.UnknownKey, top.Items[1].Client)

	stats, err := p.Stats24h(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{TotalQueries: 2, Blocked: 1}, stats)
}

func TestProviderFixtureErrors(t *testing.T) {
	_, err := New(Options{Fixture: filepath.Join(t.TempDir(), "missing.yml")})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  - ago: soon\n"), 0644))
	_, err = New(Options{Fixture: path})
	assert.ErrorContains(t, err, "bad ago")
}
