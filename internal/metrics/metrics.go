// Package metrics instruments a provider with Prometheus call counters and
// latency histograms.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

// Metrics holds the provider collectors.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Rows     *prometheus.HistogramVec
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "querylens_provider_calls_total",
			Help: "Total number of provider calls",
		}, []string{"backend", "method"}),

		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "querylens_provider_errors_total",
			Help: "Total number of provider calls that returned an error",
		}, []string{"backend", "method"}),

		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "querylens_provider_call_duration_seconds",
			Help:    "Latency of provider calls",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"backend", "method"}),

		Rows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "querylens_provider_result_rows",
			Help:    "Number of rows returned per provider call",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"backend", "method"}),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Calls, m.Errors, m.Duration, m.Rows} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Provider decorates a model.Provider with metrics.
type Provider struct {
	next    model.Provider
	m       *Metrics
	backend string
}

var _ model.Provider = (*Provider)(nil)

// Instrument wraps p, labelling its series with backend.
func Instrument(p model.Provider, m *Metrics, backend string) *Provider {
	return &Provider{next: p, m: m, backend: backend}
}

// Unwrap returns the decorated provider.
func (p *Provider) Unwrap() model.Provider { return p.next }

func (p *Provider) observe(method string, start time.Time, rows int, err error) {
	p.m.Calls.WithLabelValues(p.backend, method).Inc()
	p.m.Duration.WithLabelValues(p.backend, method).Observe(time.Since(start).Seconds())
	if err != nil {
		p.m.Errors.WithLabelValues(p.backend, method).Inc()
		return
	}
	p.m.Rows.WithLabelValues(p.backend, method).Observe(float64(rows))
}

func (p *Provider) QueryLogs(ctx context.Context, opts model.QueryLogsOptions) (model.Page[model.LogEntry], error) {
	start := time.Now()
	res, err := p.next.QueryLogs(ctx, opts)
	p.observe("QueryLogs", start, len(res.Items), err)
	return res, err
}

func (p *Provider) Stats24h(ctx context.Context) (model.Stats, error) {
	start := time.Now()
	res, err := p.next.Stats24h(ctx)
	p.observe("Stats24h", start, 1, err)
	return res, err
}

func (p *Provider) QueriesOverTime(ctx context.Context, opts model.OverTimeOptions) ([]model.QueriesOverTimeEntry, error) {
	start := time.Now()
	res, err := p.next.QueriesOverTime(ctx, opts)
	p.observe("QueriesOverTime", start, len(res), err)
	return res, err
}

func (p *Provider) TopDomains(ctx context.Context, opts model.TopOptions) (model.Page[model.TopDomainEntry], error) {
	start := time.Now()
	res, err := p.next.TopDomains(ctx, opts)
	p.observe("TopDomains", start, len(res.Items), err)
	return res, err
}

func (p *Provider) TopClients(ctx context.Context, opts model.TopOptions) (model.Page[model.TopClientEntry], error) {
	start := time.Now()
	res, err := p.next.TopClients(ctx, opts)
	p.observe("TopClients", start, len(res.Items), err)
	return res, err
}

func (p *Provider) QueryTypesBreakdown(ctx context.Context, r timerange.Range) ([]model.QueryTypeEntry, error) {
	start := time.Now()
	res, err := p.next.QueryTypesBreakdown(ctx, r)
	p.observe("QueryTypesBreakdown", start, len(res), err)
	return res, err
}

func (p *Provider) SearchDomains(ctx context.Context, opts model.SearchOptions) ([]model.SearchHit, error) {
	start := time.Now()
	res, err := p.next.SearchDomains(ctx, opts)
	p.observe("SearchDomains", start, len(res), err)
	return res, err
}

func (p *Provider) SearchClients(ctx context.Context, opts model.SearchOptions) ([]model.SearchHit, error) {
	start := time.Now()
	res, err := p.next.SearchClients(ctx, opts)
	p.observe("SearchClients", start, len(res), err)
	return res, err
}

func (p *Provider) Close() error { return p.next.Close() }
