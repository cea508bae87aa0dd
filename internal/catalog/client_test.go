package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kennedymwaniki/resource-explorer/internal/fault"
	"github.com/kennedymwaniki/resource-explorer/internal/filter"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, 2*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "rickandmortyapi.com", u.Host)

	u, err = parseBaseURL("example.com:1234/path?x=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:1234", u.String())
}

func TestClient_ListRecordsEncodesFilters(t *testing.T) {
	var (
		mu        sync.Mutex
		gotPath   string
		gotQuery  url.Values
		gotAgent  string
		gotReqID  string
		gotAccept string
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotAgent = r.Header.Get("User-Agent")
		gotReqID = r.Header.Get(requestIDHeader)
		gotAccept = r.Header.Get("Accept")
		mu.Unlock()

		next := "https://rickandmortyapi.com/api/character?page=4"
		_ = json.NewEncoder(w).Encode(Page{
			Info:    Info{Count: 80, Pages: 4, Next: &next},
			Results: []Record{{ID: 1, Name: "Rick Sanchez"}},
		})
	}))

	page, err := c.ListRecords(context.Background(), filter.New(3, filter.StatusAlive, filter.GenderAny, "  Rick "))
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Rick Sanchez", page.Results[0].Name)
	assert.True(t, page.Info.HasNext())
	assert.False(t, page.Info.HasPrev())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/api/character", gotPath)
	assert.Equal(t, "3", gotQuery.Get("page"))
	assert.Equal(t, "alive", gotQuery.Get("status"))
	assert.Equal(t, "Rick", gotQuery.Get("name"))
	assert.Empty(t, gotQuery.Get("gender"))
	assert.Equal(t, defaultUserAgent, gotAgent)
	assert.Equal(t, "application/json", gotAccept)
	_, err = uuid.Parse(gotReqID)
	assert.NoError(t, err, "request id should be a uuid")
}

func TestClient_DefaultFiltersSendNoQuery(t *testing.T) {
	var raw string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(Page{})
	}))

	_, err := c.ListRecords(context.Background(), filter.Default())
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestClient_GetRecord(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/character/42":
			_ = json.NewEncoder(w).Encode(Record{
				ID:      42,
				Name:    "The Old Man",
				Episode: []string{"https://rickandmortyapi.com/api/episode/7", "bogus"},
				Created: "2017-11-05T10:31:36.263Z",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Character not found"}`))
		}
	}))

	rec, err := c.GetRecord(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "The Old Man", rec.Name)
	assert.Equal(t, []int{7}, rec.EpisodeNumbers())
	assert.Equal(t, 2017, rec.CreatedAt().Year())

	_, err = c.GetRecord(context.Background(), 9999)
	require.Error(t, err)
	assert.True(t, fault.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, fault.StatusOf(err))

	_, err = c.GetRecord(context.Background(), 0)
	assert.True(t, fault.IsNotFound(err), "non-positive ids never reach the network")
}

func TestClient_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"server error", http.StatusInternalServerError, `{}`, fault.IsTransient},
		{"rate limited", http.StatusTooManyRequests, `{}`, fault.IsTransient},
		{"bad request", http.StatusBadRequest, `{}`, fault.IsTransient},
		{"not found", http.StatusNotFound, `{}`, fault.IsNotFound},
		{"garbage body", http.StatusOK, `{not json`, fault.IsTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := c.ListRecords(context.Background(), filter.Default())
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
			assert.False(t, fault.IsCancelled(err))
		})
	}
}

func TestClient_CancelledContext(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.ListRecords(ctx, filter.Default())
	require.Error(t, err)
	assert.True(t, fault.IsCancelled(err))
	assert.False(t, fault.IsTransient(err))
}

func TestClient_GetRecordsUsesMultiIDEndpoint(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/api/character/1,2,3":
			_ = json.NewEncoder(w).Encode([]Record{{ID: 1}, {ID: 3}})
		case "/api/character/5":
			_ = json.NewEncoder(w).Encode(Record{ID: 5})
		default:
			http.NotFound(w, r)
		}
	}))

	recs, err := c.GetRecords(context.Background(), []int{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[1].ID)

	recs, err = c.GetRecords(context.Background(), []int{0, 5})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 5, recs[0].ID)

	recs, err = c.GetRecords(context.Background(), []int{77})
	require.NoError(t, err)
	assert.Empty(t, recs, "unknown single id is absent, not an error")

	recs, err = c.GetRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, recs)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/api/character/1,2,3", "/api/character/5", "/api/character/77"}, paths)
}
