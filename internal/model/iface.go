package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/tinytelemetry/querylens/internal/timerange"
)

// ErrInvalidOptions is wrapped by every option validation failure.
var ErrInvalidOptions = errors.New("invalid options")

// FilterMode restricts the population of ranked lists.
type FilterMode string

const (
	FilterAll     FilterMode = "all"
	FilterBlocked FilterMode = "blocked"
)

// ParseFilterMode returns the mode for s; empty selects FilterAll.
func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterBlocked:
		return FilterBlocked, nil
	}
	return "", fmt.Errorf("%w: filter %q", ErrInvalidOptions, s)
}

// QueryLogsOptions filters and paginates the raw log listing.
type QueryLogsOptions struct {
	Limit        int    `json:"limit"`
	Offset       int    `json:"offset"`
	Search       string `json:"search,omitempty"`       // substring of domain, case-insensitive
	ResponseType string `json:"responseType,omitempty"` // exact
	Client       string `json:"client,omitempty"`       // substring of client name, case-insensitive
	QuestionType string `json:"questionType,omitempty"` // exact
}

// OverTimeOptions selects the time series.
type OverTimeOptions struct {
	Range  timerange.Range `json:"range"`
	Domain string          `json:"domain,omitempty"`
	Client string          `json:"client,omitempty"`
}

// TopOptions selects one page of a ranked list.
type TopOptions struct {
	Range  timerange.Range `json:"range"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
	Filter FilterMode      `json:"filter"`
}

// SearchOptions selects a substring search over domains or clients.
type SearchOptions struct {
	Range timerange.Range `json:"range"`
	Query string          `json:"query"`
	Limit int             `json:"limit"`
}

// Validate checks the options against the limits the read surfaces accept.
func (o QueryLogsOptions) Validate() error {
	if o.Limit < 1 || o.Limit > MaxPageLimit {
		return fmt.Errorf("%w: limit %d not in [1, %d]", ErrInvalidOptions, o.Limit, MaxPageLimit)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: negative offset", ErrInvalidOptions)
	}
	return nil
}

// Validate checks range, page bounds and filter mode.
func (o TopOptions) Validate() error {
	if !o.Range.Valid() {
		return fmt.Errorf("%w: range %q", ErrInvalidOptions, o.Range)
	}
	if o.Limit < 1 || o.Limit > MaxPageLimit {
		return fmt.Errorf("%w: limit %d not in [1, %d]", ErrInvalidOptions, o.Limit, MaxPageLimit)
	}
	if o.Offset < 0 {
		return fmt.Errorf("%w: negative offset", ErrInvalidOptions)
	}
	if _, err := ParseFilterMode(string(o.Filter)); err != nil {
		return err
	}
	return nil
}

// Validate checks range and search limit.
func (o SearchOptions) Validate() error {
	if !o.Range.Valid() {
		return fmt.Errorf("%w: range %q", ErrInvalidOptions, o.Range)
	}
	if o.Limit < 1 || o.Limit > MaxSearchLimit {
		return fmt.Errorf("%w: limit %d not in [1, %d]", ErrInvalidOptions, o.Limit, MaxSearchLimit)
	}
	return nil
}

// Validate checks the range.
func (o OverTimeOptions) Validate() error {
	if !o.Range.Valid() {
		return fmt.Errorf("%w: range %q", ErrInvalidOptions, o.Range)
	}
	return nil
}

// Provider is the analytics contract every query-log backend satisfies.
// It is the only surface the read servers depend on.
type Provider interface {
	QueryLogs(ctx context.Context, opts QueryLogsOptions) (Page[LogEntry], error)
	Stats24h(ctx context.Context) (Stats, error)
	QueriesOverTime(ctx context.Context, opts OverTimeOptions) ([]QueriesOverTimeEntry, error)
	TopDomains(ctx context.Context, opts TopOptions) (Page[TopDomainEntry], error)
	TopClients(ctx context.Context, opts TopOptions) (Page[TopClientEntry], error)
	QueryTypesBreakdown(ctx context.Context, r timerange.Range) ([]QueryTypeEntry, error)
	SearchDomains(ctx context.Context, opts SearchOptions) ([]SearchHit, error)
	SearchClients(ctx context.Context, opts SearchOptions) ([]SearchHit, error)
	Close() error
}
