package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tinytelemetry/querylens/internal/logging"
	"github.com/tinytelemetry/querylens/internal/logparse"
	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/provider"
	"github.com/tinytelemetry/querylens/internal/socketrpc"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

type queryFlags struct {
	remote       bool
	socketPath   string
	rangeName    string
	limit        int
	offset       int
	filter       string
	search       string
	client       string
	domain       string
	responseType string
	questionType string
}

type operation func(ctx context.Context, p model.Provider, f queryFlags) (any, error)

var operations = map[string]operation{
	"logs": func(ctx context.Context, p model.Provider, f queryFlags) (any, error) {
		opts := model.QueryLogsOptions{Limit: f.limit, Offset: f.offset, Search: f.search, Client: f.client}
		if f.responseType != "" {
			if opts.ResponseType = logparse.NormalizeResponseType(f.responseType); opts.ResponseType == "" {
				return nil, fmt.Errorf("%w: response type %q", model.ErrInvalidOptions, f.responseType)
			}
		}
		if f.questionType != "" {
			qt, ok := logparse.NormalizeQuestionType(f.questionType)
			if !ok {
				return nil, fmt.Errorf("%w: question type %q", model.ErrInvalidOptions, f.questionType)
			}
			opts.QuestionType = qt
		}
		if err := opts.Validate(); err != nil {
			return nil, err
		}
		return p.QueryLogs(ctx, opts)
	},
	"stats": func(ctx context.Context, p model.Provider, _ queryFlags) (any, error) {
		return p.Stats24h(ctx)
	},
	"over-time": func(ctx context.Context, p model.Provider, f queryFlags) (any, error) {
		opts := model.OverTimeOptions{Range: timerange.Range(f.rangeName), Domain: f.domain, Client: f.client}
		if err := opts.Validate(); err != nil {
			return nil, err
		}
		return p.QueriesOverTime(ctx, opts)
	},
	"top-domains": func(ctx context.Context, p model.Provider, f queryFlags) (any, error) {
		opts, err := f.top()
		if err != nil {
			return nil, err
		}
		return p.TopDomains(ctx, opts)
	},
	"top-clients": func(ctx context.Context, p model.Provider, f queryFlags) (any, error) {
		opts, err := f.top()
		if err != nil {
			return nil, err
		}
		return p.TopClients(ctx, opts)
	},
	"query-types": func(ctx context.Context, p model.Provider, f queryFlags) (any, error) {
		r, err := timerange.Parse(f.rangeName)
		if err != nil {
			return nil, err
		}
		return p.QueryTypesBreakdown(ctx, r)
	},
	"search-domains": func(ctx context.Context, p model.Provider, f queryFlags) (any, error) {
		opts, err := f.searchOpts()
		if err != nil {
			return nil, err
		}
		return p.SearchDomains(ctx, opts)
	},
	"search-clients": func(ctx context.Context, p model.Provider, f queryFlags) (any, error) {
		opts, err := f.searchOpts()
		if err != nil {
			return nil, err
		}
		return p.SearchClients(ctx, opts)
	},
}

func (f queryFlags) top() (model.TopOptions, error) {
	mode, err := model.ParseFilterMode(f.filter)
	if err != nil {
		return model.TopOptions{}, err
	}
	opts := model.TopOptions{Range: timerange.Range(f.rangeName), Limit: f.limit, Offset: f.offset, Filter: mode}
	return opts, opts.Validate()
}

func (f queryFlags) searchOpts() (model.SearchOptions, error) {
	limit := f.limit
	if limit > model.MaxSearchLimit {
		limit = model.MaxSearchLimit
	}
	opts := model.SearchOptions{Range: timerange.Range(f.rangeName), Query: f.search, Limit: limit}
	return opts, opts.Validate()
}

func operationNames() string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func createQueryCommand(load configLoader) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query <operation>",
		Short: "Run one statistics query and print the result as JSON",
		Long:  "Operations: " + operationNames(),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, ok := operations[args[0]]
			if !ok {
				return fmt.Errorf("unknown operation %q (one of %s)", args[0], operationNames())
			}
			cfg, err := load(cmd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			level := cfg.LogLevel
			if !cmd.Flags().Changed("log-level") {
				level = "warn"
			}
			if _, err := logging.Setup(logrus.StandardLogger(), logging.Config{Level: level}); err != nil {
				return err
			}

			var p model.Provider
			if f.remote {
				path := f.socketPath
				if path == "" {
					path = cfg.SocketPath
				}
				p, err = socketrpc.Dial(path)
			} else {
				p, err = provider.New(cmd.Context(), providerConfig(cfg))
			}
			if err != nil {
				return err
			}
			defer p.Close()

			return runQuery(cmd.Context(), cmd.OutOrStdout(), p, op, f)
		},
	}
	cmd.Flags().BoolVar(&f.remote, "remote", false, "query a running server over its unix socket")
	cmd.Flags().StringVar(&f.socketPath, "socket-path", "", "unix socket of the running server")
	cmd.Flags().StringVar(&f.rangeName, "range", string(timerange.Day), "time range: 1h, 24h, 7d or 30d")
	cmd.Flags().IntVar(&f.limit, "limit", model.DefaultPageLimit, "page size")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "page offset")
	cmd.Flags().StringVar(&f.filter, "filter", string(model.FilterAll), "ranking population: all or blocked")
	cmd.Flags().StringVar(&f.search, "search", "", "domain substring (logs) or search term")
	cmd.Flags().StringVar(&f.client, "client", "", "client name substring")
	cmd.Flags().StringVar(&f.domain, "domain", "", "domain substring for over-time")
	cmd.Flags().StringVar(&f.responseType, "response-type", "", "exact response type for logs")
	cmd.Flags().StringVar(&f.questionType, "question-type", "", "DNS record type for logs")
	return cmd
}

func runQuery(ctx context.Context, out io.Writer, p model.Provider, op operation, f queryFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := op(ctx, p, f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
