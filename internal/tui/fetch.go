package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

// snapshot is everything one dashboard refresh reads.
type snapshot struct {
	Stats      model.Stats
	Series     []model.QueriesOverTimeEntry
	Domains    model.Page[model.TopDomainEntry]
	Clients    model.Page[model.TopClientEntry]
	Types      []model.QueryTypeEntry
	DomainHits []model.SearchHit
	ClientHits []model.SearchHit
	Blocked    []model.LogEntry
	FetchedAt  time.Time
}

// fetchParams freezes the view state a refresh was issued for.
type fetchParams struct {
	seq          int
	rng          timerange.Range
	filter       model.FilterMode
	query        string
	domainOffset int
	clientOffset int
	pageSize     int
	searchLimit  int
	recentLimit  int
	timeout      time.Duration
}

type dataLoadedMsg struct {
	seq  int
	snap snapshot
	err  error
}

// fetch issues the dashboard queries concurrently. The first failure cancels
// the rest.
func fetch(p model.Provider, fp fetchParams) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fp.timeout)
		defer cancel()

		var snap snapshot
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			snap.Stats, err = p.Stats24h(gctx)
			return err
		})
		g.Go(func() (err error) {
			snap.Series, err = p.QueriesOverTime(gctx, model.OverTimeOptions{Range: fp.rng})
			return err
		})
		g.Go(func() (err error) {
			snap.Domains, err = p.TopDomains(gctx, model.TopOptions{Range: fp.rng, Limit: fp.pageSize, Offset: fp.domainOffset, Filter: fp.filter})
			return err
		})
		g.Go(func() (err error) {
			snap.Clients, err = p.TopClients(gctx, model.TopOptions{Range: fp.rng, Limit: fp.pageSize, Offset: fp.clientOffset, Filter: fp.filter})
			return err
		})
		g.Go(func() (err error) {
			snap.Types, err = p.QueryTypesBreakdown(gctx, fp.rng)
			return err
		})
		g.Go(func() error {
			page, err := p.QueryLogs(gctx, model.QueryLogsOptions{ResponseType: model.ResponseBlocked, Limit: fp.recentLimit})
			snap.Blocked = page.Items
			return err
		})
		if strings.TrimSpace(fp.query) != "" {
			opts := model.SearchOptions{Range: fp.rng, Query: fp.query, Limit: fp.searchLimit}
			g.Go(func() (err error) {
				snap.DomainHits, err = p.SearchDomains(gctx, opts)
				return err
			})
			g.Go(func() (err error) {
				snap.ClientHits, err = p.SearchClients(gctx, opts)
				return err
			})
		}
		err := g.Wait()
		snap.FetchedAt = time.Now()
		return dataLoadedMsg{seq: fp.seq, snap: snap, err: err}
	}
}
