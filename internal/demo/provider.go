package demo

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/querylens/internal/logfile"
	"github.com/tinytelemetry/querylens/internal/logparse"
	"github.com/tinytelemetry/querylens/internal/memstore"
	"github.com/tinytelemetry/querylens/internal/model"
)

// DefaultSize is the number of entries regenerated per call.
const DefaultSize = 2000

// Provider serves synthetic data. Every call regenerates the set from the
// same seed anchored at the current time (or re-anchors the fixture), so
// calls at the same instant agree and pages of one listing line up.
type Provider struct {
	*memstore.Base

	seed uint64
	size int

	fixture []fixtureEntry
}

var _ model.Provider = (*Provider)(nil)

// Options configure the demo provider.
type Options struct {
	Seed    uint64           // generator seed; zero picks one from the clock
	Size    int              // entries per generated set
	Fixture string           // optional YAML fixture replacing the generator
	Now     func() time.Time // clock
}

// New creates a demo provider.
func New(opts Options) (*Provider, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	p := &Provider{seed: seed, size: opts.Size}
	if p.size <= 0 {
		p.size = DefaultSize
	}
	if opts.Fixture != "" {
		f, err := loadFixture(opts.Fixture)
		if err != nil {
			return nil, err
		}
		p.fixture = f
	}
	p.Base = memstore.NewBase(memstore.SourceFunc(p.fetchRange), memstore.Options{
		DisableCache: true,
		Now:          opts.Now,
	})
	return p, nil
}

func (p *Provider) snapshot() []model.LogEntry {
	now := p.Now()
	if p.fixture != nil {
		out := make([]model.LogEntry, len(p.fixture))
		for i, f := range p.fixture {
			out[i] = f.resolve(now)
		}
		return out
	}
	return NewGenerator(p.seed).Generate(now, p.size)
}

func (p *Provider) fetchRange(_ context.Context, since time.Time) ([]model.LogEntry, error) {
	var out []model.LogEntry
	for _, e := range p.snapshot() {
		if !e.RequestTs.IsZero() && !e.RequestTs.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// QueryLogs filters a regenerated set and returns it newest first.
func (p *Provider) QueryLogs(_ context.Context, opts model.QueryLogsOptions) (model.Page[model.LogEntry], error) {
	f := logfile.NewFilter(opts)
	var matched []model.LogEntry
	for _, e := range p.snapshot() {
		if f.Match(&e) {
			matched = append(matched, e)
		}
	}
	memstore.SortNewestFirst(matched)
	return memstore.Paginate(matched, opts.Limit, opts.Offset), nil
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }

type fixtureEntry struct {
	// Ago places the entry relative to the time of each call, e.g. "15m".
	Ago            string `yaml:"ago"`
	model.LogEntry `yaml:",inline"`
}

func (f fixtureEntry) resolve(now time.Time) model.LogEntry {
	e := f.LogEntry
	if f.Ago != "" {
		if d, err := time.ParseDuration(f.Ago); err == nil {
			e.RequestTs = now.Add(-d).UTC()
		}
	}
	return e
}

type fixtureFile struct {
	Entries []fixtureEntry `yaml:"entries"`
}

// loadFixture reads a YAML fixture. Entries without a response type take it
// from their reason.
func loadFixture(path string) ([]fixtureEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading demo fixture: %w", err)
	}
	var ff fixtureFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parsing demo fixture %s: %w", path, err)
	}
	for i := range ff.Entries {
		e := &ff.Entries[i]
		if e.Ago != "" {
			if _, err := time.ParseDuration(e.Ago); err != nil {
				return nil, fmt.Errorf("demo fixture entry %d: bad ago %q: %w", i, e.Ago, err)
			}
		}
		if e.ResponseType == nil && e.Reason != nil {
			e.ResponseType = model.Str(logparse.ResponseTypeFromReason(*e.Reason))
		}
	}
	return ff.Entries, nil
}
