// Package logfile reads the tab-separated query-log files written by the DNS
// server's CSV logger.
package logfile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timestamp"
)

var log = logrus.WithField("component", "logfile")

// FieldCount is the number of tab-separated columns in one record.
const FieldCount = 11

const (
	initialBufSize = 64 * 1024
	maxLineSize    = 1024 * 1024
)

// Predicate decides whether a parsed entry is kept.
type Predicate func(*model.LogEntry) bool

// Reader parses log lines. The zero value reads offset-less timestamps as UTC.
type Reader struct {
	Timestamps *timestamp.Parser
}

var defaultReader = &Reader{}

// ParseLine parses one line with the default reader.
func ParseLine(line string) (model.LogEntry, bool) {
	return defaultReader.ParseLine(line)
}

// Stream parses path with the default reader.
func Stream(ctx context.Context, path string, pred Predicate) ([]model.LogEntry, error) {
	return defaultReader.Stream(ctx, path, pred)
}

// ParseLine parses one record. Blank lines and lines with fewer than
// FieldCount columns yield false; the latter are logged.
func (r *Reader) ParseLine(line string) (model.LogEntry, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return model.LogEntry{}, false
	}

	fields := strings.Split(line, "\t")
	if len(fields) < FieldCount {
		log.Warnf("malformed log line (expected %d fields, got %d): %q", FieldCount, len(fields), line)
		return model.LogEntry{}, false
	}

	e := model.LogEntry{
		ClientIP:     model.Str(fields[1]),
		ClientName:   model.Str(fields[2]),
		Reason:       model.Str(fields[4]),
		QuestionName: model.Str(fields[5]),
		Answer:       model.Str(fields[6]),
		ResponseCode: model.Str(fields[7]),
		ResponseType: model.Str(fields[8]),
		QuestionType: model.Str(fields[9]),
		Hostname:     model.Str(fields[10]),
	}
	if fields[0] != "" {
		p := r.Timestamps
		if p == nil {
			p = timestamp.NewParser()
		}
		if ts, ok := p.ParseString(fields[0]); ok {
			e.RequestTs = ts
		}
	}
	if d, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64); err == nil {
		e.DurationMs = &d
	}
	return e, true
}

// Stream reads path line by line, keeping entries accepted by pred (nil keeps
// everything). Lines are never accumulated before filtering.
func (r *Reader) Stream(ctx context.Context, path string, pred Predicate) ([]model.LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, initialBufSize), maxLineSize)

	var out []model.LogEntry
	n := 0
	for sc.Scan() {
		n++
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		e, ok := r.ParseLine(sc.Text())
		if !ok {
			continue
		}
		if pred == nil || pred(&e) {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

// FormatLine renders e in the on-disk layout. Null fields become empty columns.
func FormatLine(e model.LogEntry) string {
	duration := ""
	if e.DurationMs != nil {
		duration = strconv.FormatInt(*e.DurationMs, 10)
	}
	return strings.Join([]string{
		timestamp.Format(e.RequestTs),
		model.Deref(e.ClientIP),
		model.Deref(e.ClientName),
		duration,
		model.Deref(e.Reason),
		model.Deref(e.QuestionName),
		model.Deref(e.Answer),
		model.Deref(e.ResponseCode),
		model.Deref(e.ResponseType),
		model.Deref(e.QuestionType),
		model.Deref(e.Hostname),
	}, "\t")
}

// Filter is the request-level predicate applied while scanning.
type Filter struct {
	search       string
	client       string
	responseType string
	questionType string
}

// NewFilter builds the scan predicate for a log listing request.
func NewFilter(opts model.QueryLogsOptions) Filter {
	return Filter{
		search:       model.LowerASCII(opts.Search),
		client:       model.LowerASCII(opts.Client),
		responseType: opts.ResponseType,
		questionType: opts.QuestionType,
	}
}

// Match reports whether e passes every configured condition.
func (f Filter) Match(e *model.LogEntry) bool {
	if f.search != "" && !containsFold(e.QuestionName, f.search) {
		return false
	}
	if f.client != "" && !containsFold(e.ClientName, f.client) {
		return false
	}
	if f.responseType != "" && model.Deref(e.ResponseType) != f.responseType {
		return false
	}
	if f.questionType != "" && model.Deref(e.QuestionType) != f.questionType {
		return false
	}
	return true
}

func containsFold(s *string, lowerNeedle string) bool {
	return s != nil && strings.Contains(model.LowerASCII(*s), lowerNeedle)
}
