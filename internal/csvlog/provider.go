// Package csvlog serves the provider contract straight from the DNS server's
// tab-separated query-log files.
package csvlog

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/querylens/internal/logfile"
	"github.com/tinytelemetry/querylens/internal/memstore"
	"github.com/tinytelemetry/querylens/internal/model"
)

var log = logrus.WithField("component", "csvlog")

// FileProvider reads the newest *.log file of a directory on every call.
type FileProvider struct {
	*memstore.Base
	dir    string
	reader *logfile.Reader
}

var _ model.Provider = (*FileProvider)(nil)

// Options configure both file providers.
type Options struct {
	memstore.Options
	Reader *logfile.Reader // defaults to UTC timestamps
}

// NewFileProvider creates a provider over dir. The directory is checked only
// when queried, so it may appear after startup.
func NewFileProvider(dir string, opts Options) *FileProvider {
	p := &FileProvider{dir: dir, reader: opts.Reader}
	if p.reader == nil {
		p.reader = &logfile.Reader{}
	}
	p.Base = memstore.NewBase(memstore.SourceFunc(p.fetchRange), opts.Options)
	return p
}

func (p *FileProvider) fetchRange(ctx context.Context, since time.Time) ([]model.LogEntry, error) {
	path, err := logfile.LatestLogFile(p.dir)
	if err != nil {
		return nil, err
	}
	return p.reader.Stream(ctx, path, func(e *model.LogEntry) bool {
		return !e.RequestTs.IsZero() && !e.RequestTs.Before(since)
	})
}

// QueryLogs lists the newest file's entries, most recent first.
func (p *FileProvider) QueryLogs(ctx context.Context, opts model.QueryLogsOptions) (model.Page[model.LogEntry], error) {
	empty := model.Page[model.LogEntry]{Items: []model.LogEntry{}}

	path, err := logfile.LatestLogFile(p.dir)
	if err != nil {
		return empty, p.Recover("query logs", err)
	}
	entries, err := p.reader.Stream(ctx, path, logfile.NewFilter(opts).Match)
	if err != nil {
		return empty, p.Recover("query logs", err)
	}
	// files are appended oldest first
	memstore.Reverse(entries)
	return memstore.Paginate(entries, opts.Limit, opts.Offset), nil
}

// Close is a no-op; files are opened per call.
func (p *FileProvider) Close() error { return nil }
