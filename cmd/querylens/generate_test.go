package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/querylens/internal/demo"
	"github.com/tinytelemetry/querylens/internal/logfile"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/provider"
)

var genNow = time.Date(2026, 3, 10, 14, 37, 12, 0, time.UTC)

func TestGenerateEntries(t *testing.T) {
	entries := generateEntries(demo.NewGenerator(42), genNow, 3, 100)
	if len(entries) == 0 || len(entries) > 300 {
		t.Fatalf("generated %d entries", len(entries))
	}
	first := genNow.AddDate(0, 0, -2).Truncate(24 * time.Hour)
	for i, e := range entries {
		if e.RequestTs.After(genNow) || e.RequestTs.Before(first) {
			t.Fatalf("entry %d at %s outside [%s, %s]", i, e.RequestTs, first, genNow)
		}
		if i > 0 && e.RequestTs.Before(entries[i-1].RequestTs) {
			t.Fatalf("entries not oldest first at %d", i)
		}
	}
}

func TestWriteEntriesSingleFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	entries := generateEntries(demo.NewGenerator(1), genNow, 2, 50)

	n, err := writeEntries(context.Background(), appConfig{LogType: "CSV", LogTarget: dir}, entries)
	if err != nil {
		t.Fatalf("writeEntries: %v", err)
	}
	if n != len(entries) {
		t.Errorf("wrote %d, want %d", n, len(entries))
	}

	got, err := logfile.Stream(context.Background(), filepath.Join(dir, singleFileName), nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("read back %d entries, want %d", len(got), len(entries))
	}
	for i := range got {
		if !got[i].RequestTs.Equal(entries[i].RequestTs) || model.Deref(got[i].QuestionName) != model.Deref(entries[i].QuestionName) {
			t.Fatalf("entry %d = %+v, want %+v", i, got[i], entries[i])
		}
	}
}

func TestWriteEntriesClientFiles(t *testing.T) {
	dir := t.TempDir()
	entries := generateEntries(demo.NewGenerator(2), genNow, 2, 80)
	if _, err := writeEntries(context.Background(), appConfig{LogType: "csv-client", LogTarget: dir}, entries); err != nil {
		t.Fatalf("writeEntries: %v", err)
	}

	groups, err := logfile.DateGroups(dir)
	if err != nil {
		t.Fatalf("DateGroups: %v", err)
	}
	if len(groups) != 2 || groups[0].Date != "2026-03-10" || groups[1].Date != "2026-03-09" {
		t.Fatalf("groups = %+v", groups)
	}

	total := 0
	for _, g := range groups {
		for _, f := range g.Files {
			got, err := logfile.Stream(context.Background(), f, nil)
			if err != nil {
				t.Fatalf("Stream %s: %v", f, err)
			}
			client := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(f), g.Date+"_"), ".log")
			for _, e := range got {
				if model.Deref(e.ClientName) != client {
					t.Errorf("%s holds entry for %q", f, model.Deref(e.ClientName))
				}
			}
			total += len(got)
		}
	}
	if total != len(entries) {
		t.Errorf("read back %d entries, want %d", total, len(entries))
	}
}

func TestWriteEntriesSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "querylog.db")
	cfg := appConfig{LogType: "sqlite", LogTarget: path, QueryTimeout: time.Minute}
	entries := generateEntries(demo.NewGenerator(3), time.Now().UTC(), 1, 40)

	if _, err := writeEntries(context.Background(), cfg, entries); err != nil {
		t.Fatalf("writeEntries: %v", err)
	}

	p, err := provider.New(context.Background(), providerConfig(cfg))
	if err != nil {
		t.Fatalf("provider.New: %v", err)
	}
	defer p.Close()
	page, err := p.QueryLogs(context.Background(), model.QueryLogsOptions{Limit: 1})
	if err != nil {
		t.Fatalf("QueryLogs: %v", err)
	}
	if page.TotalCount != len(entries) {
		t.Errorf("total = %d, want %d", page.TotalCount, len(entries))
	}
}

func TestWriteEntriesErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := writeEntries(ctx, appConfig{LogType: "csv"}, nil); err == nil {
		t.Error("expected missing target error")
	}
	if _, err := writeEntries(ctx, appConfig{LogType: "demo", LogTarget: t.TempDir()}, nil); err == nil {
		t.Error("expected error for demo backend")
	}
}

func TestQueryCommandAgainstGeneratedFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC()
	entries := generateEntries(demo.NewGenerator(4), now, 2, 60)
	if _, err := writeEntries(context.Background(), appConfig{LogType: "csv", LogTarget: dir}, entries); err != nil {
		t.Fatalf("writeEntries: %v", err)
	}
	p, err := provider.New(context.Background(), provider.Config{Kind: provider.CSV, Target: dir, Strict: true})
	if err != nil {
		t.Fatalf("provider.New: %v", err)
	}
	defer p.Close()

	var out bytes.Buffer
	if err := runQuery(context.Background(), &out, p, operations["logs"], queryFlags{limit: 5}); err != nil {
		t.Fatalf("runQuery logs: %v", err)
	}
	var page model.Page[model.LogEntry]
	if err := json.Unmarshal(out.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out.String())
	}
	if page.TotalCount != len(entries) || len(page.Items) != 5 {
		t.Errorf("page = %d items of %d", len(page.Items), page.TotalCount)
	}

	out.Reset()
	f := queryFlags{rangeName: "24h", limit: 3, filter: "blocked"}
	if err := runQuery(context.Background(), &out, p, operations["top-clients"], f); err != nil {
		t.Fatalf("runQuery top-clients: %v", err)
	}
	var top model.Page[model.TopClientEntry]
	if err := json.Unmarshal(out.Bytes(), &top); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, c := range top.Items {
		if c.Blocked != c.Total {
			t.Errorf("blocked-only ranking has non-blocked queries: %+v", c)
		}
	}

	for name, f := range map[string]queryFlags{
		"logs":        {limit: 0},
		"top-domains": {rangeName: "2h", limit: 5},
		"query-types": {rangeName: ""},
	} {
		if err := runQuery(context.Background(), &out, p, operations[name], f); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "Version:    dev") {
		t.Errorf("version output = %q", out.String())
	}
}

func TestUnknownQueryOperation(t *testing.T) {
	isolateHome(t)
	root := newRootCommand()
	root.SetArgs([]string{"query", "everything"})
	root.SetOut(os.Stderr)
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "unknown operation") {
		t.Errorf("err = %v", err)
	}
}

func TestTUIWithoutServer(t *testing.T) {
	isolateHome(t)
	root := newRootCommand()
	root.SetArgs([]string{"tui", "--socket-path", filepath.Join(t.TempDir(), "missing.sock")})
	root.SetOut(os.Stderr)
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "cannot connect to querylens") {
		t.Errorf("err = %v", err)
	}
}
