// Package viewsync keeps the list query, the location string and the list
// cache consistent.
//
// Exactly one side is the write origin at a time. Navigated treats the
// location as the origin; Apply, Search and the paging helpers treat the
// in-memory filter as the origin and push the result to the Navigator. A
// location that already matches the current filter is ignored, so a
// Navigator that echoes back does not loop.
package viewsync

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/kennedymwaniki/resource-explorer/internal/catalog"
	"github.com/kennedymwaniki/resource-explorer/internal/fault"
	"github.com/kennedymwaniki/resource-explorer/internal/filter"
	"github.com/kennedymwaniki/resource-explorer/internal/querycache"
)

// DefaultDebounce is the quiet period before a search is applied.
const DefaultDebounce = 400 * time.Millisecond

// Navigator moves the location to a new query string.
type Navigator interface {
	Navigate(rawQuery string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(rawQuery string)

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(rawQuery string) { f(rawQuery) }

// ListCache is the part of the list cache the sync drives. Load and Reload
// must start their fetch before returning; the returned function waits.
type ListCache interface {
	Load(key filter.State) func(ctx context.Context) (*catalog.Page, error)
	Reload(key filter.State) func(ctx context.Context) (*catalog.Page, error)
	Entry(key filter.State) (querycache.Entry[*catalog.Page], bool)
	Subscribe(fn func(filter.State)) (cancel func())
}

var _ ListCache = (*querycache.Cache[filter.State, *catalog.Page])(nil)

// View says what the list area should show.
type View int

const (
	ViewLoading View = iota
	ViewReady
	ViewEmpty  // nothing matched, offer to clear filters
	ViewFailed // unrecovered error, offer to retry
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewReady:
		return "ready"
	case ViewEmpty:
		return "empty"
	case ViewFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is everything the list view renders from.
type Snapshot struct {
	Filter   filter.State
	Location string // the query string currently reflected
	Entry    querycache.Entry[*catalog.Page]
	HasEntry bool
	Loading  bool
	View     View
	Err      error
	Search   string // search input still waiting for the debounce
}

// Page returns the list page, or nil.
func (s Snapshot) Page() *catalog.Page {
	if !s.Entry.HasValue {
		return nil
	}
	return s.Entry.Value
}

// Options configure a Sync.
type Options struct {
	Debounce time.Duration
	Clock    clock.Clock
	Logger   *zap.Logger
}

// Sync is the list view orchestrator.
type Sync struct {
	lists  ListCache
	nav    Navigator
	logger *zap.Logger
	search *Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	// loadMu orders starting fetches with changes to current.
	loadMu sync.Mutex

	mu        sync.Mutex
	current   filter.State
	reflected filter.State
	started   bool

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	stopCache func()
}

// New wires a Sync to lists and nav. Nothing is fetched until the first
// Navigated or Apply call.
func New(ctx context.Context, lists ListCache, nav Navigator, opts Options) *Sync {
	if opts.Debounce < 0 {
		opts.Debounce = 0
	} else if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Sync{
		lists:     lists,
		nav:       nav,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		current:   filter.Default(),
		reflected: filter.Default(),
		subs:      make(map[int]func(Snapshot)),
	}
	s.search = NewDebouncer(opts.Clock, opts.Debounce, func(name string) {
		s.Apply(filter.WithName(name))
	})
	s.stopCache = lists.Subscribe(func(key filter.State) {
		s.mu.Lock()
		relevant := key == s.current
		s.mu.Unlock()
		if relevant {
			s.publish()
		}
	})
	return s
}

// Navigated handles a location change made outside the sync, such as the
// initial query or a history step.
func (s *Sync) Navigated(rawQuery string) {
	next := filter.Parse(rawQuery)

	s.mu.Lock()
	s.reflected = next
	if s.started && next == s.current {
		s.mu.Unlock()
		return
	}
	s.current = next
	s.started = true
	s.mu.Unlock()

	s.search.Cancel()
	s.logger.Debug("location changed", zap.String("query", next.Encode()))
	s.load(next)
}

// Apply merges change into the current filter, moves the location if needed
// and loads the result.
func (s *Sync) Apply(change filter.Change) {
	s.mu.Lock()
	next, navigate := filter.ApplyChange(s.current, change, s.reflected)
	if s.started && next == s.current && !navigate {
		s.mu.Unlock()
		return
	}
	s.current = next
	s.started = true
	if navigate {
		s.reflected = next
	}
	s.mu.Unlock()

	if navigate {
		s.nav.Navigate(next.Encode())
	}
	s.load(next)
}

// Search buffers name input. The filter changes once input settles or on
// Flush.
func (s *Sync) Search(name string) {
	s.search.Push(name)
	s.publish()
}

// Flush applies pending search input immediately.
func (s *Sync) Flush() {
	s.search.Flush()
}

// NextPage moves forward when the current page reports a next page.
func (s *Sync) NextPage() bool {
	snap := s.Snapshot()
	if page := snap.Page(); page == nil || !page.Info.HasNext() {
		return false
	}
	s.Apply(filter.WithPage(snap.Filter.Page + 1))
	return true
}

// PrevPage moves back one page.
func (s *Sync) PrevPage() bool {
	snap := s.Snapshot()
	if snap.Filter.Page <= 1 {
		return false
	}
	s.Apply(filter.WithPage(snap.Filter.Page - 1))
	return true
}

// GoToPage jumps to page n, clamped to the known page count.
func (s *Sync) GoToPage(n int) {
	snap := s.Snapshot()
	if page := snap.Page(); page != nil && page.Info.Pages > 0 && n > page.Info.Pages {
		n = page.Info.Pages
	}
	s.Apply(filter.WithPage(n))
}

// ClearFilters returns to the unfiltered first page.
func (s *Sync) ClearFilters() {
	s.search.Cancel()
	status, gender, name, page := filter.StatusAny, filter.GenderAny, "", 1
	s.Apply(filter.Change{Page: &page, Status: &status, Gender: &gender, Name: &name})
}

// Retry starts a new attempt sequence for the current filter.
func (s *Sync) Retry() {
	s.loadMu.Lock()
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	wait := s.lists.Reload(current)
	s.loadMu.Unlock()

	s.publish()
	go s.await(current, wait, "retry failed")
}

// Snapshot computes the current view state.
func (s *Sync) Snapshot() Snapshot {
	s.mu.Lock()
	current := s.current
	reflected := s.reflected
	s.mu.Unlock()

	snap := Snapshot{
		Filter:   current,
		Location: reflected.Encode(),
		View:     ViewLoading,
		Loading:  true,
	}
	if pending, ok := s.search.Pending(); ok {
		snap.Search = pending
	}
	entry, ok := s.lists.Entry(current)
	if !ok {
		return snap
	}
	snap.Entry = entry
	snap.HasEntry = true
	snap.Loading = entry.Fetching
	snap.Err = entry.Err

	switch {
	case entry.HasValue:
		snap.View = ViewReady
		if len(entry.Value.Results) == 0 {
			snap.View = ViewEmpty
		}
	case entry.Status == querycache.StatusError && fault.IsNotFound(entry.Err):
		snap.View = ViewEmpty
	case entry.Status == querycache.StatusError:
		snap.View = ViewFailed
	default:
		snap.View = ViewLoading
	}
	return snap
}

// Subscribe registers fn to receive a Snapshot after every change. fn runs
// on the goroutine that made the change and must not block.
func (s *Sync) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Close stops background work started by the sync.
func (s *Sync) Close() {
	s.search.Cancel()
	s.stopCache()
	s.cancel()
}

// load starts the fetch for f before returning, so the cache sees requests
// in the order they were made.
func (s *Sync) load(f filter.State) {
	s.publish()

	s.loadMu.Lock()
	s.mu.Lock()
	latest := s.current == f
	s.mu.Unlock()
	if !latest {
		// A newer filter has been set; its own load is on the way.
		s.loadMu.Unlock()
		return
	}
	wait := s.lists.Load(f)
	s.loadMu.Unlock()

	go s.await(f, wait, "list fetch failed")
}

func (s *Sync) await(f filter.State, wait func(context.Context) (*catalog.Page, error), msg string) {
	_, err := wait(s.ctx)
	switch {
	case err == nil:
	case fault.IsCancelled(err):
		if s.ctx.Err() == nil && s.isCurrent(f) {
			// Cancelled by a request for another filter that has since been
			// replaced by f again.
			s.load(f)
			return
		}
	default:
		s.logger.Debug(msg, zap.String("query", f.Encode()), zap.Error(err))
	}
	s.publish()
}

func (s *Sync) isCurrent(f filter.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == f
}

func (s *Sync) publish() {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	if len(fns) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range fns {
		fn(snap)
	}
}
