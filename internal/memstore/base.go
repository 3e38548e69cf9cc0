// Package memstore implements the analytics half of the provider contract for
// backends that load log entries into memory.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/tinytelemetry/querylens/internal/aggregate"
	"github.com/tinytelemetry/querylens/internal/logfile"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

var log = logrus.WithField("component", "memstore")

// Source loads every entry requested at or after since.
type Source interface {
	FetchRange(ctx context.Context, since time.Time) ([]model.LogEntry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, since time.Time) ([]model.LogEntry, error)

func (f SourceFunc) FetchRange(ctx context.Context, since time.Time) ([]model.LogEntry, error) {
	return f(ctx, since)
}

// Options tune a Base.
type Options struct {
	CacheTTL     time.Duration    // defaults to model.DefaultCacheTTL
	DisableCache bool             // rescan on every call
	Now          func() time.Time // defaults to time.Now
	Strict       bool             // return I/O errors instead of empty results
}

type cacheEntry struct {
	entries []model.LogEntry
	at      time.Time
}

// Base caches range scans of a Source and answers the aggregation methods
// of model.Provider from them. Embedders supply QueryLogs and Close.
type Base struct {
	src     Source
	ttl     time.Duration
	noCache bool
	now     func() time.Time
	strict  bool

	mu    sync.Mutex
	cache map[timerange.Range]cacheEntry
	group singleflight.Group
}

// NewBase creates a Base over src.
func NewBase(src Source, opts Options) *Base {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = model.DefaultCacheTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Base{
		src:     src,
		ttl:     ttl,
		noCache: opts.DisableCache,
		now:     now,
		strict:  opts.Strict,
		cache:   make(map[timerange.Range]cacheEntry),
	}
}

// Now returns the current time of the base's clock.
func (b *Base) Now() time.Time { return b.now() }

// Strict reports whether I/O errors are returned to callers.
func (b *Base) Strict() bool { return b.strict }

// Recover applies the error policy: a missing log file is "no data yet" and
// never an error; anything else is returned in strict mode and logged
// otherwise. A nil result means the caller should answer with empty data.
func (b *Base) Recover(op string, err error) error {
	if err == nil || errors.Is(err, logfile.ErrNoLogFiles) {
		if err != nil {
			log.Debugf("%s: %v", op, err)
		}
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || b.strict {
		return err
	}
	log.Warnf("%s: %v", op, err)
	return nil
}

// Invalidate drops every cached range.
func (b *Base) Invalidate() {
	b.mu.Lock()
	b.cache = make(map[timerange.Range]cacheEntry)
	b.mu.Unlock()
}

// Entries returns the entries inside r's span together with the span's
// layout. Scans are cached per range for the TTL; concurrent callers share a
// single in-flight scan, and a failed scan is never cached.
func (b *Base) Entries(ctx context.Context, r timerange.Range) ([]model.LogEntry, timerange.Config, error) {
	cfg := timerange.For(r, b.now())
	if b.noCache {
		entries, err := b.src.FetchRange(ctx, cfg.Since)
		if err != nil {
			return nil, cfg, err
		}
		return aggregate.InRange(entries, cfg.Since), cfg, nil
	}

	b.mu.Lock()
	ce, ok := b.cache[r]
	b.mu.Unlock()
	if ok && b.now().Sub(ce.at) < b.ttl {
		return aggregate.InRange(ce.entries, cfg.Since), cfg, nil
	}

	ch := b.group.DoChan(string(r), func() (any, error) {
		at := b.now()
		// detached so one caller's cancellation does not fail the others
		entries, err := b.src.FetchRange(context.WithoutCancel(ctx), timerange.For(r, at).Since)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		b.cache[r] = cacheEntry{entries: entries, at: at}
		b.mu.Unlock()
		return entries, nil
	})

	select {
	case <-ctx.Done():
		return nil, cfg, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, cfg, res.Err
		}
		return aggregate.InRange(res.Val.([]model.LogEntry), cfg.Since), cfg, nil
	}
}

func (b *Base) entries(ctx context.Context, op string, r timerange.Range) ([]model.LogEntry, timerange.Config, error) {
	entries, cfg, err := b.Entries(ctx, r)
	if err != nil {
		return nil, cfg, b.Recover(op, err)
	}
	return entries, cfg, nil
}

// Stats24h totals the entries of the last 24 hours.
func (b *Base) Stats24h(ctx context.Context) (model.Stats, error) {
	since := b.now().Add(-24 * time.Hour)
	entries, err := b.src.FetchRange(ctx, since)
	if err != nil {
		return model.Stats{}, b.Recover("stats 24h", err)
	}
	return aggregate.Stats(entries, since), nil
}

// QueriesOverTime buckets the range, optionally narrowed by domain and client.
func (b *Base) QueriesOverTime(ctx context.Context, opts model.OverTimeOptions) ([]model.QueriesOverTimeEntry, error) {
	entries, cfg, err := b.entries(ctx, "queries over time", opts.Range)
	if err != nil {
		return nil, err
	}
	return aggregate.QueriesOverTime(aggregate.FilterDomainClient(entries, opts.Domain, opts.Client), cfg), nil
}

// TopDomains ranks the range's domains.
func (b *Base) TopDomains(ctx context.Context, opts model.TopOptions) (model.Page[model.TopDomainEntry], error) {
	entries, _, err := b.entries(ctx, "top domains", opts.Range)
	if err != nil {
		return model.Page[model.TopDomainEntry]{}, err
	}
	return aggregate.TopDomains(aggregate.FilterBlocked(entries, opts.Filter), opts.Limit, opts.Offset), nil
}

// TopClients ranks the range's clients.
func (b *Base) TopClients(ctx context.Context, opts model.TopOptions) (model.Page[model.TopClientEntry], error) {
	entries, _, err := b.entries(ctx, "top clients", opts.Range)
	if err != nil {
		return model.Page[model.TopClientEntry]{}, err
	}
	return aggregate.TopClients(aggregate.FilterBlocked(entries, opts.Filter), opts.Limit, opts.Offset), nil
}

// QueryTypesBreakdown breaks the range down by record type.
func (b *Base) QueryTypesBreakdown(ctx context.Context, r timerange.Range) ([]model.QueryTypeEntry, error) {
	entries, _, err := b.entries(ctx, "query types", r)
	if err != nil {
		return nil, err
	}
	return aggregate.QueryTypes(entries), nil
}

// SearchDomains searches the range's domains.
func (b *Base) SearchDomains(ctx context.Context, opts model.SearchOptions) ([]model.SearchHit, error) {
	if blank(opts.Query) {
		return []model.SearchHit{}, nil
	}
	entries, _, err := b.entries(ctx, "search domains", opts.Range)
	if err != nil {
		return nil, err
	}
	return aggregate.SearchDomains(entries, opts.Query, opts.Limit), nil
}

// SearchClients searches the range's clients.
func (b *Base) SearchClients(ctx context.Context, opts model.SearchOptions) ([]model.SearchHit, error) {
	if blank(opts.Query) {
		return []model.SearchHit{}, nil
	}
	entries, _, err := b.entries(ctx, "search clients", opts.Range)
	if err != nil {
		return nil, err
	}
	return aggregate.SearchClients(entries, opts.Query, opts.Limit), nil
}
