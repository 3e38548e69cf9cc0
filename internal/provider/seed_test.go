package provider

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tinytelemetry/querylens/internal/logfile"
	"github.com/tinytelemetry/querylens/internal/model"
)

var seedNow = time.Date(2026, 3, 10, 14, 37, 12, 0, time.UTC)

func seedClock() time.Time { return seedNow }

type template struct {
	ago      time.Duration
	ip       string
	client   string
	duration int64 // negative for NULL
	reason   string
	domain   string
	answer   string
	respType string
	qType    string
}

const (
	minute = time.Minute
	hour   = time.Hour
	day    = 24 * time.Hour
)

var templates = []template{
	// last hour
	{2 * minute, "192.168.1.10", "laptop", 12, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "A"},
	{5 * minute, "192.168.1.20", "Phone", 8, "CACHED", "google.com", "142.250.80.46", "CACHED", "A"},
	{10 * minute, "192.168.1.10", "laptop", 15, "RESOLVED", "GitHub.com", "140.82.121.3", "RESOLVED", "A"},
	{15 * minute, "192.168.1.30", "server-01", 3, "BLOCKED (ads.list)", "blocked-site.com", "0.0.0.0", "BLOCKED", "A"},
	{20 * minute, "192.168.1.10", "laptop", 22, "RESOLVED", "example.org", "93.184.216.34", "RESOLVED", "AAAA"},
	{30 * minute, "192.168.1.20", "Phone", 5, "CACHED", "google.com", "142.250.80.46", "CACHED", "A"},
	{40 * minute, "192.168.1.10", "laptop", -1, "RESOLVED", "", "10.0.0.1", "RESOLVED", "A"},
	{50 * minute, "192.168.1.10", "laptop", 18, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "AAAA"},

	// last 24 hours
	{2 * hour, "192.168.1.10", "laptop", 10, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "A"},
	{3 * hour, "192.168.1.20", "Phone", 14, "RESOLVED", "GitHub.com", "140.82.121.3", "RESOLVED", "A"},
	{4 * hour, "192.168.1.30", "server-01", 2, "BLOCKED (ads.list)", "blocked-site.com", "0.0.0.0", "BLOCKED", "A"},
	{5 * hour, "192.168.1.10", "laptop", 20, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "AAAA"},
	{6 * hour, "192.168.1.20", "Phone", 7, "CACHED", "example.org", "93.184.216.34", "CACHED", "A"},
	{8 * hour, "192.168.1.10", "laptop", 11, "RESOLVED", "GitHub.com", "140.82.121.3", "RESOLVED", "CNAME"},
	{10 * hour, "192.168.1.40", "", 9, "RESOLVED", "rare-domain.net", "203.0.113.50", "RESOLVED", "A"},
	{12 * hour, "192.168.1.10", "laptop", 16, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "A"},
	{14 * hour, "192.168.1.20", "Phone", -1, "BLOCKED (malware.list)", "blocked-site.com", "0.0.0.0", "BLOCKED", "A"},
	{16 * hour, "192.168.1.10", "laptop", 6, "RESOLVED", "GitHub.com", "140.82.121.3", "RESOLVED", "A"},
	{20 * hour, "192.168.1.30", "server-01", 4, "CACHED", "google.com", "142.250.80.46", "CACHED", "A"},
	{22 * hour, "192.168.1.40", "", 13, "RESOLVED", "", "10.0.0.2", "RESOLVED", "AAAA"},

	// last 7 days
	{2 * day, "192.168.1.10", "laptop", 19, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "A"},
	{2*day + 6*hour, "192.168.1.20", "Phone", 25, "RESOLVED", "GitHub.com", "140.82.121.3", "RESOLVED", "AAAA"},
	{3 * day, "192.168.1.10", "laptop", 3, "BLOCKED (ads.list)", "blocked-site.com", "0.0.0.0", "BLOCKED", "A"},
	{3*day + 12*hour, "192.168.1.30", "server-01", 8, "RESOLVED", "example.org", "93.184.216.34", "RESOLVED", "A"},
	{4 * day, "192.168.1.10", "laptop", 11, "RESOLVED", "rare-domain.net", "203.0.113.50", "RESOLVED", "CNAME"},
	{4*day + 8*hour, "192.168.1.20", "Phone", 14, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "A"},
	{5 * day, "192.168.1.10", "laptop", 7, "BLOCKED (tracker.list)", "blocked-site.com", "0.0.0.0", "BLOCKED", "A"},
	{5*day + 6*hour, "192.168.1.10", "laptop", 21, "RESOLVED", "GitHub.com", "140.82.121.3", "RESOLVED", "A"},
	{5*day + 18*hour, "192.168.1.30", "server-01", 5, "RESOLVED", "example.org", "93.184.216.34", "RESOLVED", "CNAME"},
	{6 * day, "192.168.1.10", "laptop", 17, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "A"},
	{6*day + 12*hour, "192.168.1.20", "Phone", 9, "CACHED", "google.com", "142.250.80.46", "CACHED", "A"},
	{6*day + 20*hour, "192.168.1.10", "laptop", 4, "RESOLVED", "", "10.0.0.3", "RESOLVED", "A"},

	// last 30 days
	{8 * day, "192.168.1.10", "laptop", 23, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "A"},
	{10 * day, "192.168.1.20", "Phone", 6, "BLOCKED (ads.list)", "blocked-site.com", "0.0.0.0", "BLOCKED", "A"},
	{12 * day, "192.168.1.20", "Phone", 11, "BLOCKED (malware.list)", "blocked-site.com", "0.0.0.0", "BLOCKED", "A"},
	{14 * day, "192.168.1.30", "server-01", 10, "RESOLVED", "example.org", "93.184.216.34", "RESOLVED", "A"},
	{16 * day, "192.168.1.10", "laptop", 8, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "CNAME"},
	{18 * day, "192.168.1.10", "laptop", 12, "CACHED", "google.com", "142.250.80.46", "CACHED", "A"},
	{20 * day, "192.168.1.40", "", 19, "RESOLVED", "", "10.0.0.4", "RESOLVED", "AAAA"},
	{22 * day, "192.168.1.10", "laptop", 15, "RESOLVED", "GitHub.com", "140.82.121.3", "RESOLVED", "AAAA"},
	{25 * day, "192.168.1.10", "laptop", 7, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "A"},
	{28 * day, "192.168.1.30", "server-01", 13, "CACHED", "example.org", "93.184.216.34", "CACHED", "A"},

	// outside every range
	{35 * day, "192.168.1.10", "laptop", 30, "RESOLVED", "google.com", "142.250.80.46", "RESOLVED", "A"},
	{40 * day, "192.168.1.20", "Phone", -1, "BLOCKED (ads.list)", "blocked-site.com", "0.0.0.0", "BLOCKED", "A"},
	{45 * day, "192.168.1.30", "server-01", 9, "RESOLVED", "example.org", "93.184.216.34", "RESOLVED", "AAAA"},
}

// seedEntries returns the scenario newest first.
func seedEntries() []model.LogEntry {
	out := make([]model.LogEntry, len(templates))
	for i, tp := range templates {
		e := model.LogEntry{
			RequestTs:    seedNow.Add(-tp.ago),
			ClientIP:     model.Str(tp.ip),
			ClientName:   model.Str(tp.client),
			Reason:       model.Str(tp.reason),
			QuestionName: model.Str(tp.domain),
			Answer:       model.Str(tp.answer),
			ResponseCode: model.Str("NOERROR"),
			ResponseType: model.Str(tp.respType),
			QuestionType: model.Str(tp.qType),
			Hostname:     model.Str("blocky-instance-1"),
		}
		if tp.duration >= 0 {
			e.DurationMs = model.Int(tp.duration)
		}
		out[i] = e
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestTs.After(out[j].RequestTs) })
	return out
}

// writeSingleFile writes the scenario oldest first into dir/querylog.log.
func writeSingleFile(dir string) error {
	entries := seedEntries()
	lines := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		lines = append(lines, logfile.FormatLine(entries[i]))
	}
	return os.WriteFile(filepath.Join(dir, "querylog.log"), []byte(strings.Join(lines, "\n")+"\n"), 0644)
}

// writeClientFiles writes one file per client, all under the seed day so the
// latest date group holds the whole scenario.
func writeClientFiles(dir string) error {
	entries := seedEntries()
	byClient := map[string][]string{}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		name := model.Deref(e.ClientName)
		if name == "" {
			name = model.Deref(e.ClientIP)
		}
		byClient[name] = append(byClient[name], logfile.FormatLine(e))
	}
	date := seedNow.Format(logfile.DateLayout)
	for name, lines := range byClient {
		path := filepath.Join(dir, date+"_"+name+".log")
		if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
			return err
		}
	}
	return nil
}
