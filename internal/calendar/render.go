// Package calendar renders a talent schedule as a colored month grid.
package calendar

import (
	"fmt"
	"sort"
	"staffcore/internal/core"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	weekdayStyle = lipgloss.NewStyle().Faint(true).Width(4).Align(lipgloss.Center)
	cellStyle    = lipgloss.NewStyle().Width(4).Align(lipgloss.Center)
	freeStyle    = cellStyle.Foreground(lipgloss.Color("#9ece6a"))
	// used for assignments whose project has no color
	fallbackColor = "#565f89"
)

var weekdays = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// Render draws days as week rows starting on Monday. Assigned days get the
// project color as background; free days are green. A legend lists each
// project once in order of first appearance.
func Render(title string, days []core.DayStatus) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(titleStyle.Render(title))
		b.WriteString("\n")
	}
	if len(days) == 0 {
		b.WriteString("(no days)\n")
		return b.String()
	}

	header := make([]string, 0, len(weekdays))
	for _, w := range weekdays {
		header = append(header, weekdayStyle.Render(w))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...))
	b.WriteString("\n")

	row := make([]string, 0, 7)
	for i := 0; i < mondayOffset(days[0].Date.Time()); i++ {
		row = append(row, cellStyle.Render(""))
	}
	for _, day := range days {
		row = append(row, renderDay(day))
		if len(row) == 7 {
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
			b.WriteString("\n")
			row = row[:0]
		}
	}
	if len(row) > 0 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
		b.WriteString("\n")
	}

	if legend := Legend(days); legend != "" {
		b.WriteString("\n")
		b.WriteString(legend)
	}
	return b.String()
}

func renderDay(day core.DayStatus) string {
	label := fmt.Sprintf("%2d", day.Date.Time().Day())
	if day.Available || day.Assignment == nil {
		return freeStyle.Render(label)
	}
	return cellStyle.
		Background(lipgloss.Color(colorOf(*day.Assignment))).
		Foreground(lipgloss.Color("#1a1b26")).
		Render(label)
}

// Legend lists the projects occupying days, one per line.
func Legend(days []core.DayStatus) string {
	type entry struct {
		name, color string
		sources     map[core.AssignmentSource]bool
		first       int
	}
	entries := map[string]*entry{}
	for i, day := range days {
		a := day.Assignment
		if a == nil {
			continue
		}
		e, ok := entries[a.ProjectID]
		if !ok {
			e = &entry{name: a.ProjectName, color: colorOf(*a), sources: map[core.AssignmentSource]bool{}, first: i}
			entries[a.ProjectID] = e
		}
		e.sources[a.Source] = true
	}
	ordered := make([]*entry, 0, len(entries))
	for _, e := range entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].first < ordered[j].first })

	var b strings.Builder
	for _, e := range ordered {
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(e.color)).Render("■")
		via := "allocation"
		if e.sources[core.SourceProject] && !e.sources[core.SourceAllocation] {
			via = "project"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", swatch, e.name, via)
	}
	return b.String()
}

func colorOf(a core.Assignment) string {
	if a.ProjectColor == "" {
		return fallbackColor
	}
	return a.ProjectColor
}

// mondayOffset is the number of blank cells before t in a Monday-first week.
func mondayOffset(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
