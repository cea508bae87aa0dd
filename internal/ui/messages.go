package ui

import (
	"context"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kennedymwaniki/resource-explorer/internal/catalog"
	"github.com/kennedymwaniki/resource-explorer/internal/favorites"
	"github.com/kennedymwaniki/resource-explorer/internal/logtail"
)

// Messages

type syncChangedMsg struct{}

type favoritesChangedMsg struct{}

type detailMsg struct {
	id     int
	record *catalog.Record
	err    error
}

type refreshedMsg struct {
	updated int
	err     error
}

type logsMsg struct {
	entries []logtail.Entry
	err     error
}

// Commands

// waitFor blocks until ch is signalled and then emits msg.
func waitFor(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return msg
	}
}

func fetchRecordCmd(ctx context.Context, records RecordCache, id int) tea.Cmd {
	return func() tea.Msg {
		if records == nil {
			return detailMsg{id: id}
		}
		rec, err := records.Fetch(ctx, id)
		return detailMsg{id: id, record: rec, err: err}
	}
}

func refreshFavoritesCmd(ctx context.Context, source catalog.DataSource, favs *favorites.Store) tea.Cmd {
	ids := favs.IDs()
	return func() tea.Msg {
		records, err := source.GetRecords(ctx, ids)
		if err != nil {
			return refreshedMsg{err: err}
		}
		return refreshedMsg{updated: favs.Refresh(records)}
	}
}

// logTailLines bounds how much of the log file the panel reads.
const logTailLines = 400

func readLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.Read(path, logTailLines)
		return logsMsg{entries: entries, err: err}
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
