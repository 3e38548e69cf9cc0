package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tinytelemetry/querylens/internal/logging"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/provider"
	"github.com/tinytelemetry/querylens/internal/socketrpc"
	"github.com/tinytelemetry/querylens/internal/tui"
)

func createTUICommand(load configLoader) *cobra.Command {
	var (
		local      bool
		socketPath string
		interval   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal dashboard",
		Long:  "Open the terminal dashboard against a running server's unix socket, or against the configured backend with --local.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			logFile := cfg.LogFile
			if logFile == "" {
				logFile = logging.DefaultFile()
			}
			closer, err := logging.Setup(logrus.StandardLogger(), logging.Config{Level: cfg.LogLevel, File: logFile, FileOnly: true})
			if err != nil {
				return err
			}
			defer closer.Close()

			var (
				p      model.Provider
				source string
			)
			if local {
				p, err = provider.New(cmd.Context(), providerConfig(cfg))
				source = backendName(cfg)
			} else {
				if socketPath == "" {
					socketPath = cfg.SocketPath
				}
				p, err = socketrpc.Dial(socketPath)
				if err != nil {
					err = fmt.Errorf("cannot connect to querylens at %s: %w\nIs the server running? Start it with: querylens serve", socketPath, err)
				}
				source = "socket"
			}
			if err != nil {
				return err
			}
			defer p.Close()

			dashboard := tui.NewDashboardModel(p, source, interval)
			prog := tea.NewProgram(dashboard, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := prog.Run(); err != nil {
				if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
					return fmt.Errorf("the dashboard requires a real terminal")
				}
				return fmt.Errorf("running dashboard: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "read the configured backend directly instead of a running server")
	cmd.Flags().StringVar(&socketPath, "socket-path", "", "unix socket of the running server")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "refresh interval")
	return cmd
}
