// Package favorites keeps the user's bookmarked characters.
//
// The set is persisted as one JSON array under the "favorites" key. When
// another context writes that key the in-memory set is discarded and reloaded,
// so the last writer wins and nothing is merged.
package favorites

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kennedymwaniki/resource-explorer/internal/catalog"
	"github.com/kennedymwaniki/resource-explorer/internal/kvstore"
	"github.com/kennedymwaniki/resource-explorer/internal/metrics"
)

// Key is the storage key of the persisted set.
const Key = "favorites"

// MinimalRecord is the projection of a character kept for display without a
// refetch.
type MinimalRecord struct {
	ID       int           `json:"id"`
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Species  string        `json:"species"`
	Gender   string        `json:"gender"`
	Image    string        `json:"image"`
	Origin   catalog.Place `json:"origin"`
	Location catalog.Place `json:"location"`
	Episode  []string      `json:"episode"`
}

// Project reduces a full record to the stored fields.
func Project(r catalog.Record) MinimalRecord {
	return MinimalRecord{
		ID:       r.ID,
		Name:     r.Name,
		Status:   r.Status,
		Species:  r.Species,
		Gender:   r.Gender,
		Image:    r.Image,
		Origin:   r.Origin,
		Location: r.Location,
		Episode:  append([]string(nil), r.Episode...),
	}
}

// Record expands the projection back into a partial catalog record.
func (m MinimalRecord) Record() catalog.Record {
	return catalog.Record{
		ID:       m.ID,
		Name:     m.Name,
		Status:   m.Status,
		Species:  m.Species,
		Gender:   m.Gender,
		Image:    m.Image,
		Origin:   m.Origin,
		Location: m.Location,
		Episode:  append([]string(nil), m.Episode...),
	}
}

// Store is the ordered favourites set.
type Store struct {
	kv     *kvstore.Store
	logger *zap.Logger

	mu    sync.Mutex
	items []MinimalRecord

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int

	stopWatch func()
}

// New loads the persisted set and starts watching for remote changes.
func New(kv *kvstore.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		kv:     kv,
		logger: logger,
		items:  load(kv),
		subs:   make(map[int]func()),
	}
	s.stopWatch = kv.Watch(Key, s.reload)
	metrics.FavoritesSize.Set(float64(len(s.items)))
	return s
}

func load(kv *kvstore.Store) []MinimalRecord {
	stored := kvstore.LoadOr(kv, Key, []MinimalRecord(nil), validRecords)
	out := make([]MinimalRecord, 0, len(stored))
	seen := make(map[int]struct{}, len(stored))
	for _, rec := range stored {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func validRecords(records []MinimalRecord) bool {
	for _, rec := range records {
		if rec.ID <= 0 {
			return false
		}
	}
	return true
}

// IsFavorite reports whether id is in the set.
func (s *Store) IsFavorite(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// Favorites returns a copy of the set in insertion order.
func (s *Store) Favorites() []MinimalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MinimalRecord, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of favourites.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Toggle adds the projection of record when absent and removes it otherwise.
// It returns the new membership.
func (s *Store) Toggle(record catalog.Record) bool {
	s.mu.Lock()
	var member bool
	if i := s.indexLocked(record.ID); i >= 0 {
		s.items = removeAt(s.items, i)
	} else {
		s.items = append(s.items, Project(record))
		member = true
	}
	s.persistLocked("toggle")
	s.mu.Unlock()

	s.logger.Debug("favourite toggled", zap.Int("id", record.ID), zap.Bool("member", member))
	s.notify()
	return member
}

// Remove deletes id. It is a no-op when id is absent.
func (s *Store) Remove(id int) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = removeAt(s.items, i)
	s.persistLocked("remove")
	s.mu.Unlock()

	s.notify()
	return true
}

// Clear empties the set.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = []MinimalRecord{}
	s.persistLocked("clear")
	s.mu.Unlock()

	s.notify()
}

// Refresh replaces stored projections with newer copies of the same records,
// keeping order. Records that are not favourites are ignored. It returns how
// many entries changed.
func (s *Store) Refresh(records []catalog.Record) int {
	byID := make(map[int]catalog.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	s.mu.Lock()
	changed := 0
	for i, item := range s.items {
		rec, ok := byID[item.ID]
		if !ok {
			continue
		}
		next := Project(rec)
		if !equal(item, next) {
			s.items[i] = next
			changed++
		}
	}
	if changed > 0 {
		s.persistLocked("refresh")
	}
	s.mu.Unlock()

	if changed > 0 {
		s.notify()
	}
	return changed
}

// IDs returns the favourite ids in order.
func (s *Store) IDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, len(s.items))
	for i, item := range s.items {
		ids[i] = item.ID
	}
	return ids
}

// Subscribe registers fn to run after every change, local or remote.
func (s *Store) Subscribe(fn func()) (cancel func()) {
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

// Close stops watching for remote changes.
func (s *Store) Close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
}

// reload discards local state in favour of what another context persisted.
// The read and the swap happen under s.mu so a local mutation either lands
// before the read or is applied on top of the reloaded set.
func (s *Store) reload() {
	s.mu.Lock()
	items := load(s.kv)
	s.items = items
	s.mu.Unlock()

	s.logger.Debug("favourites reloaded after remote change", zap.Int("count", len(items)))
	metrics.FavoritesSize.Set(float64(len(items)))
	s.notify()
}

func (s *Store) persistLocked(op string) {
	s.kv.Save(Key, s.items)
	metrics.RecordFavorites(op, len(s.items))
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Store) indexLocked(id int) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func removeAt(items []MinimalRecord, i int) []MinimalRecord {
	out := make([]MinimalRecord, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func equal(a, b MinimalRecord) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Status != b.Status || a.Species != b.Species ||
		a.Gender != b.Gender || a.Image != b.Image || a.Origin != b.Origin || a.Location != b.Location ||
		len(a.Episode) != len(b.Episode) {
		return false
	}
	for i := range a.Episode {
		if a.Episode[i] != b.Episode[i] {
			return false
		}
	}
	return true
}
