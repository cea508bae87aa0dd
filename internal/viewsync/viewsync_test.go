package viewsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/kennedymwaniki/resource-explorer/internal/catalog"
	"github.com/kennedymwaniki/resource-explorer/internal/catalog/mock"
	"github.com/kennedymwaniki/resource-explorer/internal/fault"
	"github.com/kennedymwaniki/resource-explorer/internal/filter"
	"github.com/kennedymwaniki/resource-explorer/internal/querycache"
)

const eventually = 2 * time.Second

type recordingNav struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNav) Navigate(raw string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, raw)
}

func (n *recordingNav) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

type harness struct {
	source *mock.MockDataSource
	clock  *clock.Mock
	cache  *querycache.Cache[filter.State, *catalog.Page]
	nav    *recordingNav
	sync   *Sync
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	h := &harness{
		source: mock.NewMockDataSource(ctrl),
		clock:  clock.NewMock(),
		nav:    &recordingNav{},
	}
	h.cache = querycache.New(func(ctx context.Context, f filter.State) (*catalog.Page, error) {
		return h.source.ListRecords(ctx, f)
	}, querycache.Options{
		Name:             "lists",
		MaxAttempts:      3,
		RetryBase:        time.Millisecond,
		CancelSuperseded: true,
		Clock:            h.clock,
		Logger:           zap.NewNop(),
	})
	h.sync = New(context.Background(), h.cache, h.nav, Options{
		Debounce: DefaultDebounce,
		Clock:    h.clock,
		Logger:   zap.NewNop(),
	})
	t.Cleanup(func() {
		h.sync.Close()
		h.cache.Close()
	})
	return h
}

func (h *harness) waitView(t *testing.T, want View) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = h.sync.Snapshot()
		return snap.View == want && !snap.Loading
	}, eventually, time.Millisecond, "view never became %s", want)
	return snap
}

func page(next bool, names ...string) *catalog.Page {
	p := &catalog.Page{Info: catalog.Info{Count: len(names), Pages: 1}}
	if next {
		link := "https://rickandmortyapi.com/api/character?page=2"
		p.Info.Next = &link
		p.Info.Pages = 2
	}
	for i, name := range names {
		p.Results = append(p.Results, catalog.Record{ID: i + 1, Name: name})
	}
	return p
}

func TestNavigated_LoadsLocationFilter(t *testing.T) {
	h := newHarness(t)
	want := filter.State{Page: 2, Status: filter.StatusAlive}
	h.source.EXPECT().ListRecords(gomock.Any(), want).Return(page(false, "Rick"), nil)

	h.sync.Navigated("page=2&status=alive")

	snap := h.waitView(t, ViewReady)
	assert.Equal(t, want, snap.Filter)
	assert.Equal(t, "page=2&status=alive", snap.Location)
	require.NotNil(t, snap.Page())
	assert.Equal(t, "Rick", snap.Page().Results[0].Name)
	assert.Empty(t, h.nav.Calls(), "location-originated changes are not written back")
}

func TestApply_FilterChangeResetsPageAndNavigates(t *testing.T) {
	h := newHarness(t)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.State{Page: 3}).Return(page(true, "Rick"), nil)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.State{Page: 1, Gender: filter.GenderFemale}).Return(page(false, "Beth"), nil)

	h.sync.Navigated("page=3")
	h.waitView(t, ViewReady)

	h.sync.Apply(filter.WithGender(filter.GenderFemale))
	snap := h.waitView(t, ViewReady)
	assert.Equal(t, filter.State{Page: 1, Gender: filter.GenderFemale}, snap.Filter)
	assert.Equal(t, []string{"gender=female"}, h.nav.Calls())

	h.sync.Apply(filter.WithGender(filter.GenderFemale))
	assert.Equal(t, []string{"gender=female"}, h.nav.Calls(), "no-op change must not navigate")
}

func TestNavigated_EchoOfOwnNavigationIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(page(false, "Rick"), nil)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.State{Page: 1, Status: filter.StatusDead}).Return(page(false, "Birdperson"), nil)

	h.sync.Navigated("")
	h.waitView(t, ViewReady)
	h.sync.Apply(filter.WithStatus(filter.StatusDead))
	h.waitView(t, ViewReady)

	h.sync.Search("Bird")
	h.sync.Navigated("status=dead")

	pending, ok := h.sync.search.Pending()
	assert.True(t, ok, "an echoed location must not reset in-progress input")
	assert.Equal(t, "Bird", pending)
	assert.Equal(t, filter.StatusDead, h.sync.Snapshot().Filter.Status)
}

func TestNavigated_HistoryStepServedFromCache(t *testing.T) {
	h := newHarness(t)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(page(true, "Rick"), nil).Times(1)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.State{Page: 2}).Return(page(false, "Morty"), nil).Times(1)

	h.sync.Navigated("")
	h.waitView(t, ViewReady)
	require.True(t, h.sync.NextPage())
	h.waitView(t, ViewReady)
	assert.Equal(t, []string{"page=2"}, h.nav.Calls())

	h.sync.Navigated("")
	snap := h.sync.Snapshot()
	assert.Equal(t, ViewReady, snap.View, "back navigation renders the cached page at once")
	assert.Equal(t, "Rick", snap.Page().Results[0].Name)
}

func TestSearch_DebouncesInput(t *testing.T) {
	h := newHarness(t)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(page(false, "Rick"), nil)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.State{Page: 1, Name: "Rick"}).Return(page(false, "Rick"), nil).Times(1)

	h.sync.Navigated("")
	h.waitView(t, ViewReady)

	h.sync.Search("R")
	h.sync.Search("Ri")
	h.sync.Search("Rick")
	assert.Equal(t, "Rick", h.sync.Snapshot().Search)

	h.clock.Add(DefaultDebounce - time.Millisecond)
	assert.Empty(t, h.nav.Calls())

	h.clock.Add(time.Millisecond)
	require.Eventually(t, func() bool { return len(h.nav.Calls()) == 1 }, eventually, time.Millisecond)
	assert.Equal(t, []string{"name=Rick"}, h.nav.Calls())
	snap := h.waitView(t, ViewReady)
	assert.Empty(t, snap.Search)
}

func TestFlush_AppliesPendingSearch(t *testing.T) {
	h := newHarness(t)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(page(false, "Rick"), nil)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.State{Page: 1, Name: "Morty"}).Return(page(false, "Morty"), nil)

	h.sync.Navigated("")
	h.waitView(t, ViewReady)

	h.sync.Search("Morty")
	h.sync.Flush()
	assert.Equal(t, []string{"name=Morty"}, h.nav.Calls())
	h.waitView(t, ViewReady)

	h.clock.Add(time.Second)
	assert.Equal(t, []string{"name=Morty"}, h.nav.Calls(), "flushed input must not fire again")
}

func TestNotFound_ShowsEmptyAndClearFiltersResets(t *testing.T) {
	h := newHarness(t)
	none := filter.State{Page: 1, Name: "zzz"}
	h.source.EXPECT().ListRecords(gomock.Any(), none).Return(nil, fault.NotFound("list records", 404, nil)).Times(1)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(page(false, "Rick"), nil)

	h.sync.Navigated("name=zzz")
	snap := h.waitView(t, ViewEmpty)
	assert.True(t, fault.IsNotFound(snap.Err))

	h.sync.ClearFilters()
	snap = h.waitView(t, ViewReady)
	assert.Equal(t, filter.Default(), snap.Filter)
	assert.Equal(t, []string{""}, h.nav.Calls())
}

func TestFailure_ShowsFailedAndRetryRecovers(t *testing.T) {
	h := newHarness(t)
	boom := fault.Transient("list records", 500, errors.New("boom"))
	gomock.InOrder(
		h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(nil, boom).Times(3),
		h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(page(false, "Rick"), nil),
	)

	h.sync.Navigated("")
	snap := h.waitView(t, ViewFailed)
	assert.True(t, fault.IsTransient(snap.Err))

	h.sync.Retry()
	snap = h.waitView(t, ViewReady)
	assert.NoError(t, snap.Err)
}

// slowList answers after delay unless the fetch is cancelled first.
func slowList(delay time.Duration, result *catalog.Page) func(context.Context, filter.State) (*catalog.Page, error) {
	return func(ctx context.Context, f filter.State) (*catalog.Page, error) {
		select {
		case <-time.After(delay):
			return result, nil
		case <-ctx.Done():
			return nil, fault.Cancelled("list records", ctx.Err())
		}
	}
}

func TestApply_BackToBackChangesLoadTheLatestFilter(t *testing.T) {
	h := newHarness(t)
	alive := filter.State{Page: 1, Status: filter.StatusAlive}
	dead := filter.State{Page: 1, Status: filter.StatusDead}
	unknown := filter.State{Page: 1, Status: filter.StatusUnknown}
	h.source.EXPECT().ListRecords(gomock.Any(), alive).DoAndReturn(slowList(30*time.Millisecond, page(false, "Rick"))).AnyTimes()
	h.source.EXPECT().ListRecords(gomock.Any(), dead).DoAndReturn(slowList(30*time.Millisecond, page(false, "Birdperson"))).AnyTimes()
	h.source.EXPECT().ListRecords(gomock.Any(), unknown).DoAndReturn(slowList(30*time.Millisecond, page(false, "Mr. Poopybutthole"))).Times(1)

	h.sync.Apply(filter.WithStatus(filter.StatusAlive))
	h.sync.Apply(filter.WithStatus(filter.StatusDead))
	h.sync.Apply(filter.WithStatus(filter.StatusUnknown))

	snap := h.waitView(t, ViewReady)
	assert.Equal(t, unknown, snap.Filter)
	assert.Equal(t, "Mr. Poopybutthole", snap.Page().Results[0].Name)
	for _, f := range []filter.State{alive, dead} {
		e, ok := h.cache.Entry(f)
		assert.False(t, ok && e.HasValue, "superseded filter %s must not be cached", f)
	}
	assert.Equal(t, []string{"status=alive", "status=dead", "status=unknown"}, h.nav.Calls())
}

func TestNavigated_ReturningToSupersededFilterLoadsIt(t *testing.T) {
	h := newHarness(t)
	alive := filter.State{Page: 1, Status: filter.StatusAlive}
	dead := filter.State{Page: 1, Status: filter.StatusDead}
	h.source.EXPECT().ListRecords(gomock.Any(), alive).DoAndReturn(slowList(30*time.Millisecond, page(false, "Rick"))).MinTimes(1)
	h.source.EXPECT().ListRecords(gomock.Any(), dead).DoAndReturn(slowList(30*time.Millisecond, page(false, "Birdperson"))).AnyTimes()

	h.sync.Navigated("status=alive")
	h.sync.Navigated("status=dead")
	h.sync.Navigated("status=alive")

	snap := h.waitView(t, ViewReady)
	assert.Equal(t, alive, snap.Filter)
	assert.Equal(t, "Rick", snap.Page().Results[0].Name)
}

func TestPaging_RespectsBounds(t *testing.T) {
	h := newHarness(t)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(page(false, "Rick"), nil)

	h.sync.Navigated("")
	h.waitView(t, ViewReady)

	assert.False(t, h.sync.NextPage(), "no next page reported")
	assert.False(t, h.sync.PrevPage(), "already on the first page")
	assert.Empty(t, h.nav.Calls())
}

func TestGoToPage_ClampsToKnownPages(t *testing.T) {
	h := newHarness(t)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(page(true, "Rick"), nil)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.State{Page: 2}).Return(page(false, "Morty"), nil)

	h.sync.Navigated("")
	h.waitView(t, ViewReady)

	h.sync.GoToPage(40)
	snap := h.waitView(t, ViewReady)
	assert.Equal(t, 2, snap.Filter.Page)
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	h := newHarness(t)
	h.source.EXPECT().ListRecords(gomock.Any(), filter.Default()).Return(page(false, "Rick"), nil)

	var mu sync.Mutex
	var views []View
	cancel := h.sync.Subscribe(func(s Snapshot) {
		mu.Lock()
		views = append(views, s.View)
		mu.Unlock()
	})
	defer cancel()

	h.sync.Navigated("")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(views) > 0 && views[len(views)-1] == ViewReady
	}, eventually, time.Millisecond)

	mu.Lock()
	assert.Equal(t, ViewLoading, views[0])
	mu.Unlock()
}

func TestDebouncer(t *testing.T) {
	clk := clock.NewMock()
	got := make(chan string, 4)
	d := NewDebouncer(clk, 100*time.Millisecond, func(v string) { got <- v })

	assert.False(t, d.Flush(), "nothing pending")

	d.Push("a")
	clk.Add(50 * time.Millisecond)
	d.Push("ab")
	clk.Add(60 * time.Millisecond)
	select {
	case v := <-got:
		t.Fatalf("fired early with %q", v)
	default:
	}

	clk.Add(40 * time.Millisecond)
	select {
	case v := <-got:
		assert.Equal(t, "ab", v)
	case <-time.After(eventually):
		t.Fatal("debouncer never fired")
	}

	d.Push("abc")
	d.Cancel()
	clk.Add(time.Second)
	_, pending := d.Pending()
	assert.False(t, pending)
	select {
	case v := <-got:
		t.Fatalf("cancelled value %q fired", v)
	case <-time.After(10 * time.Millisecond):
	}
}

func TestViewString(t *testing.T) {
	assert.Equal(t, "loading", ViewLoading.String())
	assert.Equal(t, "failed", ViewFailed.String())
	assert.Equal(t, "unknown", View(42).String())
}
