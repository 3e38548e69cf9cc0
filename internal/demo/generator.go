// Package demo produces synthetic query logs, both for the demo provider and
// for writing fixture files.
package demo

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/miekg/dns"

	"github.com/tinytelemetry/querylens/internal/model"
)

// Client is one simulated device.
type Client struct {
	IP   string
	Name string
}

type weighted[T any] struct {
	value  T
	weight int
}

func pick[T any](r *rand.Rand, items []weighted[T]) T {
	total := 0
	for _, it := range items {
		total += it.weight
	}
	n := r.IntN(total)
	for _, it := range items {
		if n < it.weight {
			return it.value
		}
		n -= it.weight
	}
	return items[len(items)-1].value
}

var responseWeights = []weighted[string]{
	{model.ResponseResolved, 55},
	{model.ResponseCached, 25},
	{model.ResponseBlocked, 15},
	{model.ResponseConditional, 3},
	{model.ResponseCustomDNS, 2},
}

var questionWeights = []weighted[uint16]{
	{dns.TypeA, 60},
	{dns.TypeAAAA, 25},
	{dns.TypeHTTPS, 5},
	{dns.TypeCNAME, 4},
	{dns.TypeMX, 2},
	{dns.TypeTXT, 2},
	{dns.TypePTR, 1},
	{dns.TypeSRV, 1},
}

// ageWeights skews traffic toward the recent past so every range has data.
var ageWeights = []weighted[time.Duration]{
	{time.Hour, 3},
	{24 * time.Hour, 3},
	{7 * 24 * time.Hour, 2},
	{30 * 24 * time.Hour, 2},
}

var (
	defaultClients = []Client{
		{"192.168.1.10", "laptop"},
		{"192.168.1.20", "phone"},
		{"192.168.1.30", "tablet"},
		{"192.168.1.40", "desktop"},
		{"10.0.0.5", "smart-tv"},
		{"10.0.0.15", "iot-device"},
		{"10.0.0.25", "server"},
		{"172.16.0.100", "nas"},
	}

	allowedDomains = []string{
		"google.com.", "github.com.", "stackoverflow.com.", "reddit.com.",
		"amazon.com.", "youtube.com.", "netflix.com.", "cloudflare.com.",
		"example.com.", "wikipedia.org.",
	}

	blockedDomains = []string{
		"ads.tracking.com.", "telemetry.microsoft.com.", "analytics.google.com.",
		"doubleclick.net.", "facebook-ads.com.", "tracker.example.org.",
	}

	upstreams      = []string{"cloudflare", "google", "quad9"}
	blockingGroups = []string{"ads", "tracking", "malware"}
	responseCodes  = []weighted[string]{{"NOERROR", 90}, {"NXDOMAIN", 7}, {"SERVFAIL", 3}}
)

// Generator produces weighted-random log entries.
type Generator struct {
	Rand     *rand.Rand
	Clients  []Client
	Hostname string
	// Span bounds how far back entries reach; zero means 30 days.
	Span time.Duration
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		Rand:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Clients:  defaultClients,
		Hostname: "blocky-demo",
	}
}

func (g *Generator) age() time.Duration {
	limit := pick(g.Rand, ageWeights)
	if g.Span > 0 && limit > g.Span {
		limit = g.Span
	}
	return time.Duration(g.Rand.Int64N(int64(limit)))
}

// Entry generates one entry requested at ts, truncated to the millisecond
// precision of the log line format.
func (g *Generator) Entry(ts time.Time) model.LogEntry {
	ts = ts.UTC().Truncate(time.Millisecond)
	r := g.Rand
	c := g.Clients[r.IntN(len(g.Clients))]
	respType := pick(r, responseWeights)
	qType := dns.TypeToString[pick(r, questionWeights)]

	domain := allowedDomains[r.IntN(len(allowedDomains))]
	code := pick(r, responseCodes)
	reason := respType
	answer := ""
	switch respType {
	case model.ResponseBlocked:
		domain = blockedDomains[r.IntN(len(blockedDomains))]
		code = "NXDOMAIN"
		reason = fmt.Sprintf("BLOCKED (%s)", blockingGroups[r.IntN(len(blockingGroups))])
	case model.ResponseResolved:
		reason = fmt.Sprintf("RESOLVED (%s)", upstreams[r.IntN(len(upstreams))])
		answer = g.answer(qType)
	default:
		answer = g.answer(qType)
	}

	return model.LogEntry{
		RequestTs:    ts,
		ClientIP:     model.Str(c.IP),
		ClientName:   model.Str(c.Name),
		DurationMs:   model.Int(1 + r.Int64N(250)),
		Reason:       model.Str(reason),
		QuestionName: model.Str(domain),
		Answer:       model.Str(answer),
		ResponseCode: model.Str(code),
		ResponseType: model.Str(respType),
		QuestionType: model.Str(qType),
		Hostname:     model.Str(g.Hostname),
	}
}

func (g *Generator) answer(qType string) string {
	r := g.Rand
	switch qType {
	case "AAAA":
		return fmt.Sprintf("AAAA (2606:4700::%x)", r.IntN(0xffff))
	case "CNAME":
		return "CNAME (edge.example.net.)"
	case "MX":
		return "MX (10 mail.example.com.)"
	}
	return fmt.Sprintf("A (%d.%d.%d.%d)", 1+r.IntN(222), r.IntN(256), r.IntN(256), 1+r.IntN(254))
}

// Generate returns n entries aged relative to now, oldest first.
func (g *Generator) Generate(now time.Time, n int) []model.LogEntry {
	out := make([]model.LogEntry, n)
	for i := range out {
		out[i] = g.Entry(now.Add(-g.age()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestTs.Before(out[j].RequestTs) })
	return out
}

// GenerateDay returns n entries spread over the UTC calendar day of day,
// oldest first. It backs the fixture-file writer.
func (g *Generator) GenerateDay(day time.Time, n int) []model.LogEntry {
	start := day.UTC().Truncate(24 * time.Hour)
	out := make([]model.LogEntry, n)
	for i := range out {
		out[i] = g.Entry(start.Add(time.Duration(g.Rand.Int64N(int64(24 * time.Hour)))))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestTs.Before(out[j].RequestTs) })
	return out
}
