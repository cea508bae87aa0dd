package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kennedymwaniki/resource-explorer/internal/catalog"
	"github.com/kennedymwaniki/resource-explorer/internal/favorites"
	"github.com/kennedymwaniki/resource-explorer/internal/filter"
	"github.com/kennedymwaniki/resource-explorer/internal/kvstore"
	"github.com/kennedymwaniki/resource-explorer/internal/logtail"
	"github.com/kennedymwaniki/resource-explorer/internal/prefs"
	"github.com/kennedymwaniki/resource-explorer/internal/viewsync"
)

// View represents the current active view.
type View int

const (
	ViewList View = iota
	ViewDetail
	ViewFavorites
	ViewLog
)

// RecordCache serves single characters for the detail view.
type RecordCache interface {
	Fetch(ctx context.Context, id int) (*catalog.Record, error)
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Sync      *viewsync.Sync
	History   *viewsync.History
	Records   RecordCache
	Source    catalog.DataSource // used for refreshing favourites
	Favorites *favorites.Store
	Store     *kvstore.Store // theme persistence
	Theme     prefs.Theme
	LogPath   string // shown in the log panel
	Logger    *zap.Logger
}

// bridge turns store and sync callbacks into Bubble Tea messages. Each channel
// holds at most one pending signal; the handler reads current state, so
// coalesced signals lose nothing.
type bridge struct {
	syncCh chan struct{}
	favCh  chan struct{}
	cancel []func()
}

func (b *bridge) close() {
	for _, fn := range b.cancel {
		fn()
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// detailState holds the record shown in the detail view.
type detailState struct {
	id      int
	record  *catalog.Record
	err     error
	loading bool
	from    View
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Collaborators
	ctx     context.Context
	sync    *viewsync.Sync
	history *viewsync.History
	records RecordCache
	source  catalog.DataSource
	favs    *favorites.Store
	store   *kvstore.Store
	logPath string
	logger  *zap.Logger
	bridge  *bridge

	// UI state
	keys        keyMap
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	searching   bool
	search      textinput.Model
	spinner     spinner.Model
	notice      string

	// List state
	snap     viewsync.Snapshot
	selected int

	// Favourites state
	favorites   []favorites.MinimalRecord
	favSelected int
	refreshing  bool

	// Detail state
	detail         detailState
	detailViewport viewport.Model

	// Log state
	logs         []logtail.Entry
	logErr       error
	logDebug     bool
	logsViewport viewport.Model
}

// New creates a new Bubble Tea model and subscribes it to the sync and the
// favourites store.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textinput.New()
	input.Prompt = "/ "
	input.Placeholder = "search by name"
	input.CharLimit = 64

	spin := spinner.New(spinner.WithSpinner(spinner.Dot))

	b := &bridge{
		syncCh: make(chan struct{}, 1),
		favCh:  make(chan struct{}, 1),
	}
	m := Model{
		ctx:            ctx,
		sync:           opts.Sync,
		history:        opts.History,
		records:        opts.Records,
		source:         opts.Source,
		favs:           opts.Favorites,
		store:          opts.Store,
		logPath:        opts.LogPath,
		logger:         logger,
		bridge:         b,
		keys:           DefaultKeyMap(),
		theme:          GetTheme(opts.Theme),
		currentView:    ViewList,
		search:         input,
		spinner:        spin,
		detailViewport: viewport.New(0, 0),
		logsViewport:   viewport.New(0, 0),
	}
	if m.sync != nil {
		b.cancel = append(b.cancel, m.sync.Subscribe(func(viewsync.Snapshot) { signal(b.syncCh) }))
		m.snap = m.sync.Snapshot()
	}
	if m.favs != nil {
		b.cancel = append(b.cancel, m.favs.Subscribe(func() { signal(b.favCh) }))
		m.favorites = m.favs.Favorites()
	}
	return m
}

// Close releases the subscriptions made by New.
func (m Model) Close() {
	m.bridge.close()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitFor(m.bridge.syncCh, syncChangedMsg{}),
		waitFor(m.bridge.favCh, favoritesChangedMsg{}),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeDetail()
		m.resizeLogs()
		return m, nil

	case syncChangedMsg:
		m.applySnapshot(m.sync.Snapshot())
		return m, waitFor(m.bridge.syncCh, syncChangedMsg{})

	case favoritesChangedMsg:
		m.applyFavorites(m.favs.Favorites())
		return m, waitFor(m.bridge.favCh, favoritesChangedMsg{})

	case detailMsg:
		if msg.id == m.detail.id {
			m.detail.loading = false
			m.detail.err = msg.err
			if msg.record != nil {
				m.detail.record = msg.record
			}
			m.updateDetailViewport()
		}
		return m, nil

	case logsMsg:
		m.logs = msg.entries
		m.logErr = msg.err
		m.updateLogViewport()
		m.logsViewport.GotoBottom()
		return m, nil

	case refreshedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.notice = "refresh failed: " + msg.err.Error()
		} else {
			m.notice = pluralize(msg.updated, "favourite") + " refreshed"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

func (m *Model) applySnapshot(snap viewsync.Snapshot) {
	if snap.Filter != m.snap.Filter {
		m.selected = 0
	}
	m.snap = snap
	if page := snap.Page(); page != nil {
		m.selected = clampIndex(m.selected, len(page.Results))
	} else {
		m.selected = 0
	}
}

func (m *Model) applyFavorites(items []favorites.MinimalRecord) {
	m.favorites = items
	m.favSelected = clampIndex(m.favSelected, len(items))
	if m.currentView == ViewDetail {
		m.updateDetailViewport()
	}
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}
	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		next := m.theme.Name.Toggle()
		m.theme = GetTheme(next)
		if m.store != nil {
			prefs.Save(m.store, next)
		}
		return m, nil

	case key.Matches(msg, m.keys.Favorites):
		m.currentView = ViewFavorites
		m.notice = ""
		return m, nil

	case key.Matches(msg, m.keys.Logs):
		m.currentView = ViewLog
		return m, readLogsCmd(m.logPath)

	case key.Matches(msg, m.keys.Escape):
		if m.currentView == ViewDetail && m.detail.from == ViewFavorites {
			m.currentView = ViewFavorites
		} else {
			m.currentView = ViewList
		}
		return m, nil
	}

	switch m.currentView {
	case ViewList:
		return m.handleListKey(msg)
	case ViewDetail:
		return m.handleDetailKey(msg)
	case ViewFavorites:
		return m.handleFavoritesKey(msg)
	case ViewLog:
		return m.handleLogKey(msg)
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.searching = false
		m.search.Blur()
		m.sync.Flush()
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.searching = false
		m.search.Blur()
		// Abandon typed input and keep the applied search.
		m.sync.Search(m.snap.Filter.Name)
		m.sync.Flush()
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if value := m.search.Value(); value != before {
		m.sync.Search(value)
	}
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.rows()
	switch {
	case key.Matches(msg, m.keys.Up):
		m.selected = clampIndex(m.selected-1, len(rows))
	case key.Matches(msg, m.keys.Down):
		m.selected = clampIndex(m.selected+1, len(rows))
	case key.Matches(msg, m.keys.Top):
		m.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selected = clampIndex(len(rows)-1, len(rows))

	case key.Matches(msg, m.keys.NextPage):
		m.sync.NextPage()
	case key.Matches(msg, m.keys.PrevPage):
		m.sync.PrevPage()
	case key.Matches(msg, m.keys.JumpPage):
		if page, ok := m.pageForSlot(msg.String()); ok {
			m.sync.GoToPage(page)
		}

	case key.Matches(msg, m.keys.Back):
		if raw, ok := m.history.Back(); ok {
			m.sync.Navigated(raw)
		}
	case key.Matches(msg, m.keys.Forward):
		if raw, ok := m.history.Forward(); ok {
			m.sync.Navigated(raw)
		}

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(m.snap.Filter.Name)
		m.search.CursorEnd()
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.CycleStatus):
		m.sync.Apply(filter.WithStatus(nextStatus(m.snap.Filter.Status)))
	case key.Matches(msg, m.keys.CycleGender):
		m.sync.Apply(filter.WithGender(nextGender(m.snap.Filter.Gender)))
	case key.Matches(msg, m.keys.ClearFilters):
		m.sync.ClearFilters()
	case key.Matches(msg, m.keys.Retry):
		m.sync.Retry()

	case key.Matches(msg, m.keys.ToggleFav):
		if rec, ok := m.selectedRecord(); ok && m.favs != nil {
			m.favs.Toggle(rec)
		}
	case key.Matches(msg, m.keys.Open):
		if rec, ok := m.selectedRecord(); ok {
			return m, m.openDetail(rec, ViewList)
		}
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFav):
		if m.detail.record != nil && m.favs != nil {
			m.favs.Toggle(*m.detail.record)
			m.updateDetailViewport()
		}
	case key.Matches(msg, m.keys.Retry):
		if m.detail.err != nil {
			m.detail.loading = true
			m.detail.err = nil
			return m, fetchRecordCmd(m.ctx, m.records, m.detail.id)
		}
	case key.Matches(msg, m.keys.Up):
		m.detailViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.detailViewport.ScrollDown(1)
	}
	return m, nil
}

func (m Model) handleFavoritesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.favSelected = clampIndex(m.favSelected-1, len(m.favorites))
	case key.Matches(msg, m.keys.Down):
		m.favSelected = clampIndex(m.favSelected+1, len(m.favorites))
	case key.Matches(msg, m.keys.Top):
		m.favSelected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.favSelected = clampIndex(len(m.favorites)-1, len(m.favorites))
	case key.Matches(msg, m.keys.Open):
		if fav, ok := m.selectedFavorite(); ok {
			return m, m.openDetail(fav.Record(), ViewFavorites)
		}
	case key.Matches(msg, m.keys.Remove):
		if fav, ok := m.selectedFavorite(); ok {
			m.favs.Remove(fav.ID)
		}
	case key.Matches(msg, m.keys.Clear):
		m.favs.Clear()
	case key.Matches(msg, m.keys.Refresh):
		if m.refreshing || len(m.favorites) == 0 || m.source == nil {
			return m, nil
		}
		m.refreshing = true
		m.notice = ""
		return m, refreshFavoritesCmd(m.ctx, m.source, m.favs)
	}
	return m, nil
}

// openDetail switches to the detail view showing placeholder immediately and
// fetching the full record.
func (m *Model) openDetail(placeholder catalog.Record, from View) tea.Cmd {
	m.currentView = ViewDetail
	m.detail = detailState{
		id:      placeholder.ID,
		record:  &placeholder,
		loading: true,
		from:    from,
	}
	m.detailViewport.GotoTop()
	m.updateDetailViewport()
	return fetchRecordCmd(m.ctx, m.records, placeholder.ID)
}

func (m Model) rows() []catalog.Record {
	if page := m.snap.Page(); page != nil {
		return page.Results
	}
	return nil
}

func (m Model) selectedRecord() (catalog.Record, bool) {
	rows := m.rows()
	if m.selected < 0 || m.selected >= len(rows) {
		return catalog.Record{}, false
	}
	return rows[m.selected], true
}

func (m Model) selectedFavorite() (favorites.MinimalRecord, bool) {
	if m.favSelected < 0 || m.favSelected >= len(m.favorites) {
		return favorites.MinimalRecord{}, false
	}
	return m.favorites[m.favSelected], true
}

func (m Model) isFavorite(id int) bool {
	return m.favs != nil && m.favs.IsFavorite(id)
}

// pageForSlot maps a digit key to the page shown at that position of the
// page strip.
func (m Model) pageForSlot(k string) (int, bool) {
	slot := int(k[0] - '1')
	window := pageWindow(m.snap.Filter.Page, m.totalPages(), pageWindowSize)
	if slot < 0 || slot >= len(window) {
		return 0, false
	}
	return window[slot], true
}

func (m Model) totalPages() int {
	if page := m.snap.Page(); page != nil && page.Info.Pages > 0 {
		return page.Info.Pages
	}
	return m.snap.Filter.Page
}

func nextStatus(current filter.Status) filter.Status {
	for i, s := range filter.Statuses {
		if s == current {
			return filter.Statuses[(i+1)%len(filter.Statuses)]
		}
	}
	return filter.StatusAny
}

func nextGender(current filter.Gender) filter.Gender {
	for i, g := range filter.Genders {
		if g == current {
			return filter.Genders[(i+1)%len(filter.Genders)]
		}
	}
	return filter.GenderAny
}

func clampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strings.Join([]string{itoa(n), noun + "s"}, " ")
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m := New(opts)
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
