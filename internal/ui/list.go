package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kennedymwaniki/resource-explorer/internal/fault"
	"github.com/kennedymwaniki/resource-explorer/internal/viewsync"
)

const pageWindowSize = 5

// pageWindow returns up to size consecutive page numbers around current,
// clamped to [1, total].
func pageWindow(current, total, size int) []int {
	if total < 1 {
		total = 1
	}
	if current < 1 {
		current = 1
	}
	if current > total {
		total = current
	}
	if size > total {
		size = total
	}
	start := current - size/2
	if start < 1 {
		start = 1
	}
	if start+size-1 > total {
		start = total - size + 1
	}
	out := make([]int, size)
	for i := range out {
		out[i] = start + i
	}
	return out
}

// renderList renders the character table or the state that replaces it.
func (m Model) renderList() string {
	styles := m.theme.Styles()

	switch m.snap.View {
	case viewsync.ViewLoading:
		return "  " + m.spinner.View() + styles.MutedText.Render(" Loading characters...")
	case viewsync.ViewEmpty:
		msg := "No characters match these filters."
		if fault.IsNotFound(m.snap.Err) || m.snap.Filter.HasFilters() {
			msg += " Press c to clear filters."
		}
		return "  " + styles.WarningText.Render(msg)
	case viewsync.ViewFailed:
		detail := "unknown error"
		if m.snap.Err != nil {
			detail = m.snap.Err.Error()
		}
		return "  " + styles.DangerText.Render("Could not load characters") + "\n  " +
			styles.MutedText.Render(truncate(detail, maxWidth(m.width-4))) + "\n  " +
			styles.Text.Render("Press r to retry.")
	}

	var b strings.Builder
	header := fmt.Sprintf("  %s %s %s %s %s %s", "  ", padRight("ID", 5), padRight("Name", 28), padRight("Status", 9), padRight("Species", 14), "Gender")
	b.WriteString(styles.FaintText.Render(header))
	b.WriteString("\n")

	for i, rec := range m.rows() {
		star := "  "
		if m.isFavorite(rec.ID) {
			star = "★ "
		}
		line := fmt.Sprintf("%s %s %s %s %s %s",
			star,
			padRight(strconv.Itoa(rec.ID), 5),
			padRight(rec.Name, 28),
			padRight(orDash(rec.Status), 9),
			padRight(orDash(rec.Species), 14),
			orDash(rec.Gender))
		if i == m.selected {
			b.WriteString("> " + styles.Selected.Render(line))
		} else {
			b.WriteString("  " + styles.Text.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderPager())
	return b.String()
}

// renderPager renders prev/next availability and the page strip.
func (m Model) renderPager() string {
	styles := m.theme.Styles()
	page := m.snap.Page()
	if page == nil {
		return ""
	}

	prev := styles.FaintText.Render("‹ prev")
	if m.snap.Filter.Page > 1 {
		prev = styles.AccentText.Render("‹ prev")
	}
	next := styles.FaintText.Render("next ›")
	if page.Info.HasNext() {
		next = styles.AccentText.Render("next ›")
	}

	window := pageWindow(m.snap.Filter.Page, m.totalPages(), pageWindowSize)
	nums := make([]string, len(window))
	for i, n := range window {
		label := strconv.Itoa(n)
		if n == m.snap.Filter.Page {
			nums[i] = styles.Selected.Render(" " + label + " ")
		} else {
			nums[i] = styles.MutedText.Render(" " + label + " ")
		}
	}
	return "  " + prev + "  " + strings.Join(nums, "") + "  " + next
}

func maxWidth(w int) int {
	if w < 20 {
		return 20
	}
	return w
}
