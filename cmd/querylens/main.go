package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// GetVersionInfo returns the current version and commit information.
func GetVersionInfo() (string, string) {
	return version, commit
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "querylens",
		Short:         "querylens - DNS query log analytics",
		Long:          `querylens aggregates DNS resolver query logs from flat files or SQL databases and serves dashboard statistics over HTTP and a local socket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/querylens/config.yml)")
	root.PersistentFlags().String("log-type", "", "backend: csv, csv-client, mysql, postgresql, timescale, sqlite, duckdb, clickhouse or demo")
	root.PersistentFlags().String("log-target", "", "log directory for csv backends, DSN for SQL backends")
	root.PersistentFlags().Bool("demo-mode", false, "serve generated demo data")
	root.PersistentFlags().Bool("strict", false, "surface backend errors instead of empty results")
	root.PersistentFlags().String("log-level", defaultLogLevel, "debug, info, warn or error")

	load := func(cmd *cobra.Command) (appConfig, error) {
		return loadConfig(configPath, cmd)
	}

	root.AddCommand(createServeCommand(load))
	root.AddCommand(createQueryCommand(load))
	root.AddCommand(createGenerateCommand(load))
	root.AddCommand(createTUICommand(load))
	root.AddCommand(createVersionCommand())
	return root
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "querylens - DNS query log analytics\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			fmt.Fprintf(out, "  Go version: %s\n", goVersion)
		},
	}
}
