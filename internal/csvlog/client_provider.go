package csvlog

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/querylens/internal/logfile"
	"github.com/tinytelemetry/querylens/internal/memstore"
	"github.com/tinytelemetry/querylens/internal/model"
)

// maxParallelFiles bounds concurrent file scans in one fan-out.
const maxParallelFiles = 8

// ClientProvider reads per-client files named YYYY-MM-DD_<client>.log. Log
// listings use the latest day only; range queries read every day the range
// can touch.
type ClientProvider struct {
	*memstore.Base
	dir    string
	reader *logfile.Reader
}

var _ model.Provider = (*ClientProvider)(nil)

// NewClientProvider creates a per-client provider over dir.
func NewClientProvider(dir string, opts Options) *ClientProvider {
	p := &ClientProvider{dir: dir, reader: opts.Reader}
	if p.reader == nil {
		p.reader = &logfile.Reader{}
	}
	p.Base = memstore.NewBase(memstore.SourceFunc(p.fetchRange), opts.Options)
	return p
}

// readAll scans files concurrently and merges the results. Any failing scan
// fails the whole read.
func (p *ClientProvider) readAll(ctx context.Context, files []string, pred logfile.Predicate) ([]model.LogEntry, error) {
	results := make([][]model.LogEntry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, path := range files {
		g.Go(func() error {
			entries, err := p.reader.Stream(gctx, path, pred)
			if err != nil {
				return fmt.Errorf("scanning %s: %w", path, err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, r := range results {
		n += len(r)
	}
	merged := make([]model.LogEntry, 0, n)
	for _, r := range results {
		merged = append(merged, r...)
	}
	log.Debugf("merged %d entries from %d files", n, len(files))
	return merged, nil
}

func (p *ClientProvider) fetchRange(ctx context.Context, since time.Time) ([]model.LogEntry, error) {
	// file dates follow the writer's local calendar, allow a day of slack
	files, err := logfile.FilesSince(p.dir, since.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	return p.readAll(ctx, files, func(e *model.LogEntry) bool {
		return !e.RequestTs.IsZero() && !e.RequestTs.Before(since)
	})
}

// QueryLogs lists the latest day's entries across all clients, most recent
// first.
func (p *ClientProvider) QueryLogs(ctx context.Context, opts model.QueryLogsOptions) (model.Page[model.LogEntry], error) {
	empty := model.Page[model.LogEntry]{Items: []model.LogEntry{}}

	files, err := logfile.LatestDateFiles(p.dir)
	if err != nil {
		return empty, p.Recover("query logs", err)
	}
	entries, err := p.readAll(ctx, files, logfile.NewFilter(opts).Match)
	if err != nil {
		return empty, p.Recover("query logs", err)
	}
	memstore.SortNewestFirst(entries)
	return memstore.Paginate(entries, opts.Limit, opts.Offset), nil
}

// Close is a no-op; files are opened per call.
func (p *ClientProvider) Close() error { return nil }
