// Package tui renders a terminal dashboard over any model.Provider.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/querylens/internal/model"
	"github.com/tinytelemetry/querylens/internal/timerange"
)

// Section identifies the focused ranked list.
type Section int

const (
	SectionDomains Section = iota
	SectionClients
	SectionTypes
	sectionCount
)

func (s Section) String() string {
	switch s {
	case SectionDomains:
		return "Top Domains"
	case SectionClients:
		return "Top Clients"
	case SectionTypes:
		return "Query Types"
	}
	return ""
}

// TickMsg triggers a periodic refresh.
type TickMsg time.Time

const (
	defaultPageSize    = 10
	defaultSearchLimit = 8
	recentBlockedLimit = 5
)

// cacheInvalidator is implemented by providers that cache range scans.
type cacheInvalidator interface {
	Invalidate()
}

// DashboardModel is the bubbletea model of the dashboard.
type DashboardModel struct {
	provider       model.Provider
	source         string
	updateInterval time.Duration
	queryTimeout   time.Duration

	keys      KeyMap
	help      help.Model
	search    textinput.Model
	searching bool
	query     string

	rangeIdx      int
	filter        model.FilterMode
	activeSection Section
	domainOffset  int
	clientOffset  int
	pageSize      int

	data     snapshot
	loaded   bool
	err      error
	inFlight bool
	seq      int

	width  int
	height int
}

// NewDashboardModel creates a dashboard reading from p every updateInterval.
// source names the backend in the header.
func NewDashboardModel(p model.Provider, source string, updateInterval time.Duration) *DashboardModel {
	if updateInterval <= 0 {
		updateInterval = 5 * time.Second
	}
	ti := textinput.New()
	ti.Placeholder = "domain or client substring"
	ti.Prompt = "/ "
	ti.CharLimit = 128

	return &DashboardModel{
		provider:       p,
		source:         source,
		updateInterval: updateInterval,
		queryTimeout:   model.DefaultQueryTimeout,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		search:         ti,
		rangeIdx:       1, // 24h
		filter:         model.FilterAll,
		pageSize:       defaultPageSize,
		width:          120,
		height:         40,
	}
}

// Range returns the selected time range.
func (m *DashboardModel) Range() timerange.Range { return timerange.All[m.rangeIdx] }

func (m *DashboardModel) tick() tea.Cmd {
	return tea.Tick(m.updateInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// refresh starts a fetch for the current view state.
func (m *DashboardModel) refresh() tea.Cmd {
	m.seq++
	m.inFlight = true
	return fetch(m.provider, fetchParams{
		seq:          m.seq,
		rng:          m.Range(),
		filter:       m.filter,
		query:        m.query,
		domainOffset: m.domainOffset,
		clientOffset: m.clientOffset,
		pageSize:     m.pageSize,
		searchLimit:  defaultSearchLimit,
		recentLimit:  recentBlockedLimit,
		timeout:      m.queryTimeout,
	})
}

// Init initializes the model
func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

// Update handles messages.
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case TickMsg:
		if m.inFlight {
			return m, m.tick()
		}
		return m, tea.Batch(m.refresh(), m.tick())

	case dataLoadedMsg:
		if msg.seq != m.seq {
			return m, nil // superseded by a newer request
		}
		m.inFlight = false
		m.err = msg.err
		if msg.err == nil {
			m.data = msg.snap
			m.loaded = true
		}
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *DashboardModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.query = m.search.Value()
		return m, m.refresh()
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *DashboardModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if c, ok := m.provider.(cacheInvalidator); ok {
			c.Invalidate()
		}
		return m, m.refresh()

	case key.Matches(msg, m.keys.NextRange):
		m.rangeIdx = (m.rangeIdx + 1) % len(timerange.All)
		m.resetPaging()
		return m, m.refresh()

	case key.Matches(msg, m.keys.PrevRange):
		m.rangeIdx = (m.rangeIdx + len(timerange.All) - 1) % len(timerange.All)
		m.resetPaging()
		return m, m.refresh()

	case key.Matches(msg, m.keys.ToggleFilter):
		if m.filter == model.FilterAll {
			m.filter = model.FilterBlocked
		} else {
			m.filter = model.FilterAll
		}
		m.resetPaging()
		return m, m.refresh()

	case key.Matches(msg, m.keys.NextSection):
		m.activeSection = (m.activeSection + 1) % sectionCount
		return m, nil

	case key.Matches(msg, m.keys.PrevSection):
		m.activeSection = (m.activeSection + sectionCount - 1) % sectionCount
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.page(+1) {
			return m, m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.page(-1) {
			return m, m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(m.query)
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Escape):
		if m.query != "" {
			m.query = ""
			m.data.DomainHits, m.data.ClientHits = nil, nil
			return m, m.refresh()
		}
	}
	return m, nil
}

func (m *DashboardModel) resetPaging() {
	m.domainOffset, m.clientOffset = 0, 0
}

// page moves the focused ranked list by one page and reports whether the
// offset changed.
func (m *DashboardModel) page(dir int) bool {
	var offset *int
	var total int
	switch m.activeSection {
	case SectionDomains:
		offset, total = &m.domainOffset, m.data.Domains.TotalCount
	case SectionClients:
		offset, total = &m.clientOffset, m.data.Clients.TotalCount
	default:
		return false
	}
	next := *offset + dir*m.pageSize
	if next < 0 || (dir > 0 && next >= total) {
		return false
	}
	*offset = next
	return true
}
