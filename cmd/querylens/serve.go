package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/querylens/internal/httpserver"
	"github.com/tinytelemetry/querylens/internal/logging"
	"github.com/tinytelemetry/querylens/internal/metrics"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/provider"
	"github.com/tinytelemetry/querylens/internal/socketrpc"
)

type configLoader func(cmd *cobra.Command) (appConfig, error)

func createServeCommand(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve query-log statistics over HTTP and the local socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	cmd.Flags().Bool("api-enabled", true, "serve the HTTP API")
	cmd.Flags().String("api-addr", defaultAPIAddr, "HTTP API listen address")
	cmd.Flags().Bool("socket-enabled", true, "serve JSON-RPC on the unix socket")
	cmd.Flags().String("socket-path", socketrpc.DefaultSocketPath(), "unix socket path")
	cmd.Flags().Bool("metrics-enabled", true, "expose /metrics on the HTTP API")
	cmd.Flags().Duration("cache-ttl", defaultCacheTTL, "memory backend result cache lifetime")
	cmd.Flags().Duration("query-timeout", defaultQueryTimeout, "SQL backend per-query timeout")
	cmd.Flags().Bool("init-schema", false, "create the log table on SQL backends")
	cmd.Flags().String("log-file", logging.DefaultFile(), "rotated runtime log file (empty for stderr only)")
	return cmd
}

func providerConfig(cfg appConfig) provider.Config {
	return provider.Config{
		Kind:         provider.Kind(cfg.LogType),
		Target:       cfg.LogTarget,
		DemoMode:     cfg.DemoMode,
		DemoFixture:  cfg.DemoFixture,
		CacheTTL:     cfg.CacheTTL,
		QueryTimeout: cfg.QueryTimeout,
		Strict:       cfg.Strict,
		InitSchema:   cfg.InitSchema,
	}
}

func backendName(cfg appConfig) string {
	if cfg.DemoMode {
		return string(provider.Demo)
	}
	return strings.ToLower(strings.TrimSpace(cfg.LogType))
}

// runServer serves the configured provider until ctx ends or a signal arrives.
func runServer(ctx context.Context, cfg appConfig) error {
	logFile, err := logging.Setup(logrus.StandardLogger(), logging.Config{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer logFile.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := provider.New(ctx, providerConfig(cfg))
	if err != nil {
		return err
	}
	defer p.Close()

	var served model.Provider = p
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.NewMetrics()
		if err := m.Register(reg); err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		served = metrics.Instrument(p, m, backendName(cfg))
		gatherer = reg
	}

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, served, gatherer)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	socketUp := false
	if cfg.SocketEnabled {
		sockServer := socketrpc.NewServer(cfg.SocketPath, served)
		if err := sockServer.Start(); err != nil {
			logrus.WithError(err).Warn("failed to start socket server")
		} else {
			socketUp = true
			defer sockServer.Stop()
		}
	}

	printStartupBanner(cfg, socketUp)

	g, gctx := errgroup.WithContext(ctx)

	// Warm the 24h stats once so a misconfigured backend shows up in the log
	// at startup rather than on the first dashboard request.
	g.Go(func() error {
		wctx, cancel := context.WithTimeout(gctx, cfg.QueryTimeout)
		defer cancel()
		stats, err := served.Stats24h(wctx)
		if err != nil {
			logrus.WithError(err).Warn("initial stats query failed")
			return nil
		}
		logrus.WithFields(logrus.Fields{"total": stats.TotalQueries, "blocked": stats.Blocked}).Info("backend ready")
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		logrus.WithError(err).Error("server exited with error")
	}
	fmt.Println("\nShutting down gracefully...")
	return nil
}

func printStartupBanner(cfg appConfig, socketUp bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	status := func(label string, on bool, value string) string {
		if on {
			return fmt.Sprintf("    %s  %-14s %s", check, label, cyan.Render(value))
		}
		return fmt.Sprintf("    %s  %-14s %s", dot, label, dim.Render("disabled"))
	}

	separator := dim.Render("    ─────────────────────────────────")
	lines := []string{
		"",
		cyan.Bold(true).Render("    querylens"),
		"    " + dim.Render("v"+version),
		"",
		separator,
		"",
		bold.Render("    Gateway"),
		"",
		status("HTTP API", cfg.APIEnabled, cfg.APIAddr),
		status("Metrics", cfg.APIEnabled && cfg.MetricsEnabled, cfg.APIAddr+"/metrics"),
		status("Unix Socket", socketUp, shortenPath(cfg.SocketPath)),
		"",
		bold.Render("    Backend"),
		"",
		fmt.Sprintf("    %s  %-14s %s", check, "Log Type", cyan.Render(backendName(cfg))),
	}
	if cfg.DemoMode {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Target", dim.Render("generated")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Target", dim.Render(redact(cfg.LogTarget))))
	}
	if cfg.Strict {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Errors", yellow.Render("strict")))
	}

	lines = append(lines, "", bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", dot, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines,
		"",
		separator,
		"",
		"    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"),
		"",
	)
	fmt.Println(strings.Join(lines, "\n"))
}

// redact hides the password of a DSN.
func redact(target string) string {
	prefix, rest := "", target
	if scheme, r, ok := strings.Cut(target, "://"); ok {
		prefix, rest = scheme+"://", r
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return shortenPath(target)
	}
	if user, _, hasPass := strings.Cut(userinfo, ":"); hasPass {
		return prefix + user + ":***@" + host
	}
	return target
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
