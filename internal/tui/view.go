package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/querylens/internal/model"
)

// View renders the dashboard.
func (m *DashboardModel) View() string {
	var sections []string
	sections = append(sections, m.renderHeader())

	if !m.loaded {
		if m.err != nil {
			sections = append(sections, errorStyle.Render("Error: "+m.err.Error()))
		} else {
			sections = append(sections, helpStyle.Render("Loading..."))
		}
		sections = append(sections, m.renderFooter())
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	chartHeight := max(m.height/3, 4)
	chart := renderSeries(m.data.Series, m.width-6, chartHeight)
	sections = append(sections, sectionStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		chartTitleStyle.Render("Queries over "+string(m.Range())),
		chart,
		legend(m.data.Series),
	)))

	colWidth := max((m.width-6)/3, 24)
	inner := colWidth - 2
	panels := []string{
		m.panel(SectionDomains, colWidth, m.renderDomains(inner)),
		m.panel(SectionClients, colWidth, m.renderClients(inner)),
		m.panel(SectionTypes, colWidth, m.renderTypes(inner)),
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	wide := colWidth*3 + 4
	sections = append(sections, sectionStyle.Width(wide).Render(m.renderBlocked(wide-2)))

	if m.query != "" {
		sections = append(sections, sectionStyle.Render(m.renderHits()))
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *DashboardModel) renderHeader() string {
	s := m.data.Stats
	parts := []string{
		headerStyle.Render("querylens"),
		m.source,
		"range " + string(m.Range()),
		"filter " + string(m.filter),
		fmt.Sprintf("24h: %d queries, %d blocked (%.1f%%)", s.TotalQueries, s.Blocked, model.Percent(s.Blocked, s.TotalQueries)),
	}
	if m.inFlight {
		parts = append(parts, helpStyle.Render("refreshing"))
	}
	return strings.Join(parts, " │ ")
}

func (m *DashboardModel) panel(s Section, width int, body string) string {
	style := sectionStyle
	if s == m.activeSection {
		style = activeSectionStyle
	}
	return style.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, chartTitleStyle.Render(s.String()), body))
}

func (m *DashboardModel) renderDomains(width int) string {
	page := m.data.Domains
	if len(page.Items) == 0 {
		return helpStyle.Render("no domains")
	}
	lines := make([]string, 0, len(page.Items)+1)
	for i, d := range page.Items {
		label := fmt.Sprintf("%3d %s", m.domainOffset+i+1, d.Domain)
		value := fmt.Sprintf("%d", d.Count)
		if d.Blocked > 0 {
			value = blockedText(fmt.Sprintf("%d/%d", d.Blocked, d.Count))
		}
		lines = append(lines, row(label, value, width))
	}
	lines = append(lines, pager(m.domainOffset, len(page.Items), page.TotalCount))
	return strings.Join(lines, "\n")
}

func (m *DashboardModel) renderClients(width int) string {
	page := m.data.Clients
	if len(page.Items) == 0 {
		return helpStyle.Render("no clients")
	}
	lines := make([]string, 0, len(page.Items)+1)
	for i, c := range page.Items {
		label := fmt.Sprintf("%3d %s", m.clientOffset+i+1, c.Client)
		lines = append(lines, row(label, fmt.Sprintf("%.1f%%", c.Percentage), width))
	}
	lines = append(lines, pager(m.clientOffset, len(page.Items), page.TotalCount))
	return strings.Join(lines, "\n")
}

func (m *DashboardModel) renderTypes(width int) string {
	if len(m.data.Types) == 0 {
		return helpStyle.Render("no queries")
	}
	lines := make([]string, 0, len(m.data.Types))
	for _, t := range m.data.Types {
		lines = append(lines, row(t.Type, fmt.Sprintf("%d (%.1f%%)", t.Count, t.Percentage), width))
	}
	return strings.Join(lines, "\n")
}

// renderBlocked lists the newest blocked queries with the list that blocked
// each one.
func (m *DashboardModel) renderBlocked(width int) string {
	lines := []string{chartTitleStyle.Render("Recently Blocked")}
	if len(m.data.Blocked) == 0 {
		return strings.Join(append(lines, helpStyle.Render("nothing blocked")), "\n")
	}
	for _, e := range m.data.Blocked {
		_, list := e.SplitReason()
		if list == "" {
			list = "-"
		}
		label := fmt.Sprintf("%s  %-16s %s", e.RequestTs.Local().Format("15:04:05"), e.ClientKey(), e.DomainKey())
		lines = append(lines, row(label, blockedText(list), width))
	}
	return strings.Join(lines, "\n")
}

func (m *DashboardModel) renderHits() string {
	render := func(title string, hits []model.SearchHit) string {
		if len(hits) == 0 {
			return title + ": " + helpStyle.Render("none")
		}
		parts := make([]string, len(hits))
		for i, h := range hits {
			parts[i] = fmt.Sprintf("%s (%d)", h.Key, h.Count)
		}
		return title + ": " + strings.Join(parts, ", ")
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		chartTitleStyle.Render(fmt.Sprintf("Search %q", m.query)),
		render("domains", m.data.DomainHits),
		render("clients", m.data.ClientHits),
	)
}

func (m *DashboardModel) renderFooter() string {
	if m.searching {
		return m.search.View()
	}
	var lines []string
	if m.loaded && m.err != nil {
		lines = append(lines, errorStyle.Render("Error: "+m.err.Error()))
	}
	lines = append(lines, m.help.View(m.keys))
	return strings.Join(lines, "\n")
}

// row left-aligns label and right-aligns value within width, truncating the
// label when both do not fit.
func row(label, value string, width int) string {
	room := width - lipgloss.Width(value) - 1
	if room < 1 {
		return value
	}
	if lipgloss.Width(label) > room {
		label = truncate(label, room)
	}
	return label + strings.Repeat(" ", room-lipgloss.Width(label)+1) + value
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func pager(offset, shown, total int) string {
	if total == 0 {
		return ""
	}
	return helpStyle.Render(fmt.Sprintf("%d-%d of %d", offset+1, offset+shown, total))
}

func blockedText(s string) string {
	return lipgloss.NewStyle().Foreground(ColorRed).Render(s)
}
