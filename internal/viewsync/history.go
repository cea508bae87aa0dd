package viewsync

import "sync"

// History is an in-process location with back and forward stacks. It
// implements Navigator; Back and Forward return the query the caller should
// pass to Sync.Navigated.
type History struct {
	mu      sync.Mutex
	entries []string
	index   int
}

var _ Navigator = (*History)(nil)

// NewHistory starts a history at initial.
func NewHistory(initial string) *History {
	return &History{entries: []string{initial}}
}

// Navigate pushes rawQuery and drops any forward entries. Navigating to the
// current location is a no-op.
func (h *History) Navigate(rawQuery string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.entries[h.index] == rawQuery {
		return
	}
	h.entries = append(h.entries[:h.index+1], rawQuery)
	h.index++
}

// Replace overwrites the current entry without adding history.
func (h *History) Replace(rawQuery string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.index] = rawQuery
}

// Current returns the location shown now.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Back steps one entry back.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 {
		return "", false
	}
	h.index--
	return h.entries[h.index], true
}

// Forward steps one entry forward.
func (h *History) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index >= len(h.entries)-1 {
		return "", false
	}
	h.index++
	return h.entries[h.index], true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
