package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kennedymwaniki/resource-explorer/internal/viewsync"
)

// renderMain renders header, content and footer.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderFilterBar())
	b.WriteString("\n\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.renderList()
	case ViewDetail:
		return m.renderDetail()
	case ViewFavorites:
		return m.renderFavorites()
	case ViewLog:
		return m.renderLogs()
	default:
		return ""
	}
}

// renderHeader renders the title bar with the result count and fetch state.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{bg.Render("explorer", styles.Logo)}

	if page := m.snap.Page(); page != nil {
		parts = append(parts,
			bg.Render(pluralize(page.Info.Count, "character"), styles.Text),
			bg.Render(fmt.Sprintf("page %d of %d", m.snap.Filter.Page, maxPages(page.Info.Pages)), styles.MutedText))
	}
	switch {
	case m.snap.View == viewsync.ViewLoading:
		parts = append(parts, bg.Render(m.spinner.View()+" loading", styles.InfoText))
	case m.snap.Loading:
		parts = append(parts, bg.Render(m.spinner.View()+" refreshing", styles.InfoText))
	}
	if n := len(m.favorites); n > 0 {
		parts = append(parts, bg.Render(fmt.Sprintf("★ %d", n), styles.WarningText))
	}
	parts = append(parts, bg.Render(string(m.theme.Name), styles.FaintText))

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Padding(0, 1).
		Width(m.width).
		Render(bg.Join(parts, "  "))
}

// renderFilterBar shows the search input and active filters.
func (m Model) renderFilterBar() string {
	styles := m.theme.Styles()
	f := m.snap.Filter

	var parts []string
	switch {
	case m.searching:
		parts = append(parts, m.search.View())
	case m.snap.Search != "":
		parts = append(parts, styles.MutedText.Render("name: "+m.snap.Search+"…"))
	case f.Name != "":
		parts = append(parts, styles.AccentText.Render("name: "+f.Name))
	default:
		parts = append(parts, styles.FaintText.Render("/ to search"))
	}
	parts = append(parts,
		styles.Text.Render("status: ")+styles.AccentText.Render(orAny(string(f.Status))),
		styles.Text.Render("gender: ")+styles.AccentText.Render(orAny(string(f.Gender))),
	)
	if m.snap.Location != "" {
		parts = append(parts, styles.FaintText.Render("?"+m.snap.Location))
	}
	return " " + strings.Join(parts, "   ")
}

// renderFooter shows the most relevant key hints for the current view.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	var hints []string
	switch m.currentView {
	case ViewList:
		hints = []string{"enter open", "f fav", "/ search", "s status", "x gender", "n/p page", "v favourites"}
	case ViewDetail:
		hints = []string{"f fav", "esc back"}
	case ViewFavorites:
		hints = []string{"enter open", "d remove", "C clear", "R refresh", "esc back"}
	case ViewLog:
		hints = []string{"r reload", "D debug", "j/k scroll", "esc back"}
	}
	hints = append(hints, "T theme", "? help", "q quit")

	line := strings.Join(hints, " · ")
	if m.notice != "" {
		line = m.notice + "   " + line
	}
	return styles.Footer.Width(m.width).Render(line)
}

func orAny(v string) string {
	if v == "" {
		return "any"
	}
	return v
}

func maxPages(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
