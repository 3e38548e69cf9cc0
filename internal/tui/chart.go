package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/querylens/internal/model"
)

// renderSeries draws the bucket series as stacked bars, newest on the right.
// Each bar splits into blocked, cached and other answers.
func renderSeries(series []model.QueriesOverTimeEntry, width, height int) string {
	if width < 4 || height < 2 {
		return ""
	}
	maxBars := (width + 1) / 2
	start := 0
	if len(series) > maxBars {
		start = len(series) - maxBars
	}
	visible := series[start:]
	chartWidth := len(visible)*2 - 1
	if chartWidth < 1 {
		return helpStyle.Render("no data")
	}

	bc := barchart.New(chartWidth, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	for _, b := range visible {
		other := b.Total - b.Blocked - b.Cached
		if other < 0 {
			other = 0
		}
		var values []barchart.BarValue
		for _, part := range []struct {
			name  string
			count int64
			style lipgloss.Style
		}{
			{"other", other, otherBar},
			{"cached", b.Cached, cachedBar},
			{"blocked", b.Blocked, blockedBar},
		} {
			if part.count > 0 {
				values = append(values, barchart.BarValue{Name: part.name, Value: float64(part.count), Style: part.style})
			}
		}
		if len(values) == 0 {
			values = append(values, barchart.BarValue{Name: "empty", Value: 0, Style: otherBar})
		}
		bc.Push(barchart.BarData{Label: "", Values: values})
	}
	bc.Draw()

	axis := ""
	if len(visible) > 0 {
		first, last := visible[0].Time, visible[len(visible)-1].Time
		gap := chartWidth - lipgloss.Width(first) - lipgloss.Width(last)
		if gap >= 1 {
			axis = helpStyle.Render(first + strings.Repeat(" ", gap) + last)
		} else {
			axis = helpStyle.Render(last)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, bc.View(), axis)
}

// legend summarises the series totals in the chart colours.
func legend(series []model.QueriesOverTimeEntry) string {
	var total, blocked, cached int64
	for _, b := range series {
		total += b.Total
		blocked += b.Blocked
		cached += b.Cached
	}
	return strings.Join([]string{
		lipgloss.NewStyle().Foreground(ColorBlue).Render(fmt.Sprintf("total %d", total)),
		lipgloss.NewStyle().Foreground(ColorYellow).Render(fmt.Sprintf("cached %d", cached)),
		lipgloss.NewStyle().Foreground(ColorRed).Render(fmt.Sprintf("blocked %d", blocked)),
	}, "  ")
}
