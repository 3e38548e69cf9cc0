package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tinytelemetry/querylens/internal/demo"
	"github.com/tinytelemetry/querylens/internal/logfile"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/provider"
	"github.com/tinytelemetry/querylens/internal/sqlstore"
)

// singleFileName is the file the csv backend reads when generated here.
const singleFileName = "querylog.log"

type generateFlags struct {
	days   int
	perDay int
	seed   uint64
}

func createGenerateCommand(load configLoader) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic query logs into the configured backend",
		Long: `generate fills the configured log target with demo traffic so a backend can be
tried without a resolver. csv writes one querylog.log, csv-client writes one
YYYY-MM-DD_<client>.log per client and day, SQL backends get rows inserted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if f.days <= 0 || f.perDay <= 0 {
				return fmt.Errorf("--days and --per-day must be positive")
			}
			seed := f.seed
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			entries := generateEntries(demo.NewGenerator(seed), time.Now().UTC(), f.days, f.perDay)
			n, err := writeEntries(cmd.Context(), cfg, entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d entries to %s (%s)\n", n, redact(cfg.LogTarget), cfg.LogType)
			return nil
		},
	}
	cmd.Flags().IntVar(&f.days, "days", 7, "days of history to generate, ending today")
	cmd.Flags().IntVar(&f.perDay, "per-day", 500, "entries per day")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "generator seed (0 picks one from the clock)")
	return cmd
}

// generateEntries returns days worth of entries ending at now, oldest first.
func generateEntries(gen *demo.Generator, now time.Time, days, perDay int) []model.LogEntry {
	var out []model.LogEntry
	for d := days - 1; d >= 0; d-- {
		for _, e := range gen.GenerateDay(now.AddDate(0, 0, -d), perDay) {
			if e.RequestTs.After(now) {
				continue
			}
			out = append(out, e)
		}
	}
	return out
}

func writeEntries(ctx context.Context, cfg appConfig, entries []model.LogEntry) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	kind := provider.Kind(strings.ToLower(strings.TrimSpace(cfg.LogType)))
	if cfg.LogTarget == "" {
		return 0, fmt.Errorf("%w for %s", provider.ErrMissingTarget, kind)
	}

	switch kind {
	case provider.CSV:
		if err := os.MkdirAll(cfg.LogTarget, 0755); err != nil {
			return 0, err
		}
		return len(entries), writeLogFile(filepath.Join(cfg.LogTarget, singleFileName), entries)

	case provider.CSVClient:
		if err := os.MkdirAll(cfg.LogTarget, 0755); err != nil {
			return 0, err
		}
		return len(entries), writeClientFiles(cfg.LogTarget, entries)

	case provider.MySQL, provider.PostgreSQL, provider.Timescale, provider.SQLite, provider.DuckDB, provider.ClickHouse:
		pcfg := providerConfig(cfg)
		pcfg.DemoMode = false
		pcfg.InitSchema = true
		p, err := provider.New(ctx, pcfg)
		if err != nil {
			return 0, err
		}
		defer p.Close()
		store, ok := p.(*sqlstore.Store)
		if !ok {
			return 0, fmt.Errorf("%s backend does not accept inserts", kind)
		}
		if err := store.Insert(ctx, entries); err != nil {
			return 0, err
		}
		return len(entries), nil
	}
	return 0, fmt.Errorf("%w %q: generate needs a file or SQL backend", provider.ErrUnknownKind, kind)
}

func writeLogFile(path string, entries []model.LogEntry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, e := range entries {
		w.WriteString(logfile.FormatLine(e))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeClientFiles splits entries by UTC day and client into the per-client
// file layout.
func writeClientFiles(dir string, entries []model.LogEntry) error {
	files := make(map[string][]model.LogEntry)
	var order []string
	for _, e := range entries {
		client := model.Deref(e.ClientName)
		if client == "" {
			client = model.Deref(e.ClientIP)
		}
		if client == "" {
			client = model.UnknownKey
		}
		name := e.RequestTs.UTC().Format(logfile.DateLayout) + "_" + strings.ReplaceAll(client, string(filepath.Separator), "_") + ".log"
		if _, ok := files[name]; !ok {
			order = append(order, name)
		}
		files[name] = append(files[name], e)
	}
	for _, name := range order {
		if err := writeLogFile(filepath.Join(dir, name), files[name]); err != nil {
			return err
		}
	}
	logrus.WithFields(logrus.Fields{"dir": dir, "files": len(order)}).Debug("wrote client files")
	return nil
}
