package ui

import (
	"fmt"
	"strconv"
	"strings"
)

// renderFavorites renders the favourites panel from stored projections.
func (m Model) renderFavorites() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString("  " + styles.AccentText.Bold(true).Render(fmt.Sprintf("Favourites (%d)", len(m.favorites))))
	if m.refreshing {
		b.WriteString("  " + m.spinner.View() + styles.InfoText.Render(" refreshing"))
	}
	b.WriteString("\n\n")

	if len(m.favorites) == 0 {
		b.WriteString("  " + styles.MutedText.Render("No favourites yet. Press f on a character to add one."))
		return b.String()
	}

	for i, fav := range m.favorites {
		line := fmt.Sprintf("%s %s %s %s",
			padRight(strconv.Itoa(fav.ID), 5),
			padRight(fav.Name, 28),
			padRight(orDash(fav.Status), 9),
			orDash(fav.Location.Name))
		if i == m.favSelected {
			b.WriteString("> " + styles.Selected.Render(line))
		} else {
			b.WriteString("  " + styles.Text.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
