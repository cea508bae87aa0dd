package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kennedymwaniki/resource-explorer/internal/fault"
)

// chromeLines is the height used by header, filter bar and footer.
const chromeLines = 5

func (m *Model) resizeDetail() {
	m.detailViewport.Width = m.width
	height := m.height - chromeLines
	if height < 3 {
		height = 3
	}
	m.detailViewport.Height = height
	m.updateDetailViewport()
}

// updateDetailViewport re-renders the detail content into the viewport.
func (m *Model) updateDetailViewport() {
	m.detailViewport.SetContent(m.detailContent())
}

func (m Model) detailContent() string {
	styles := m.theme.Styles()
	d := m.detail
	if d.record == nil {
		if d.loading {
			return "  " + styles.MutedText.Render("Loading character...")
		}
		return ""
	}
	rec := d.record

	var b strings.Builder
	title := styles.Text.Bold(true).Render(rec.Name)
	if m.isFavorite(rec.ID) {
		title += " " + styles.WarningText.Render("★ favourite")
	}
	b.WriteString("  " + title + "  " + styles.StatusStyle(rec.Status).Render(titleCase(orDash(rec.Status))))
	b.WriteString("\n\n")

	field := func(label, value string) {
		b.WriteString("  " + styles.MutedText.Render(padRight(label, 12)) + styles.Text.Render(orDash(value)) + "\n")
	}
	field("ID", strconv.Itoa(rec.ID))
	field("Species", rec.Species)
	field("Type", rec.Type)
	field("Gender", rec.Gender)
	field("Origin", rec.Origin.Name)
	field("Location", rec.Location.Name)
	if created := rec.CreatedAt(); !created.IsZero() {
		field("Created", created.Format("2006-01-02"))
	}
	field("Image", rec.Image)

	episodes := rec.EpisodeNumbers()
	if len(episodes) > 0 {
		nums := make([]string, len(episodes))
		for i, n := range episodes {
			nums[i] = strconv.Itoa(n)
		}
		field("Episodes", fmt.Sprintf("%d (%s)", len(episodes), strings.Join(nums, ", ")))
	}

	switch {
	case d.loading:
		b.WriteString("\n  " + styles.InfoText.Render("refreshing..."))
	case fault.IsNotFound(d.err):
		b.WriteString("\n  " + styles.WarningText.Render("This character no longer exists."))
	case d.err != nil:
		b.WriteString("\n  " + styles.DangerText.Render("Could not load details: ") + styles.MutedText.Render(d.err.Error()))
		b.WriteString("\n  " + styles.Text.Render("Press r to retry."))
	}
	return b.String()
}

// renderDetail renders the detail viewport.
func (m Model) renderDetail() string {
	return m.detailViewport.View()
}
