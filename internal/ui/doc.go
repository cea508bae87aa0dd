// Package ui provides the terminal user interface of the explorer.
//
// # Architecture Overview
//
// The UI is a Bubble Tea program. Model holds view state only; list data
// comes from a viewsync.Sync snapshot, favourites from favorites.Store and
// details from the record cache. Changes in those components reach the
// program as coalesced signals (syncChangedMsg, favoritesChangedMsg) and the
// handler reads the current state, so the UI never renders a stale copy.
//
// # Package Structure
//
//   - app.go: Model, key handling and Run
//   - messages.go: messages and commands
//   - header.go: header, filter bar and footer
//   - list.go: character table, empty/failed states and the page strip
//   - detail.go: single character view
//   - favorites.go: favourites panel
//   - logs.go: tail of the explorer's own log file
//   - help.go, keys.go: key bindings and the help overlay
//   - theme.go, style_helpers.go: light and dark palettes
//
// # Views
//
//   - List: one page of characters for the current filters
//   - Detail: a character fetched through the record cache
//   - Favourites: stored projections, shown without refetching
//   - Log: recent log lines, info and above unless debug is toggled
//
// Search input is debounced by the sync; enter applies it at once.
package ui
