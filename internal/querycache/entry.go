package querycache

import "time"

// Status is the lifecycle state of an entry.
type Status int

const (
	// StatusPending means a fetch is running and there is nothing to show yet.
	StatusPending Status = iota
	// StatusFresh entries are served without touching the network.
	StatusFresh
	// StatusStale entries are served while a background refresh is due.
	StatusStale
	// StatusError means the last fetch failed for good. Value may still hold
	// the last good response.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a read-only copy of a cache slot.
type Entry[V any] struct {
	Status     Status
	Value      V
	HasValue   bool
	Err        error
	FetchedAt  time.Time
	ExpiresAt  time.Time
	Fetching   bool
	Generation uint64
}

// slot is the mutable state behind an Entry. Guarded by Cache.mu.
type slot[V any] struct {
	value      V
	hasValue   bool
	err        error
	fetchedAt  time.Time
	expiresAt  time.Time
	lastAccess time.Time
	gen        uint64
	flight     *flight
}

func (s *slot[V]) status(now time.Time) Status {
	switch {
	case s.flight != nil && !s.hasValue:
		return StatusPending
	case s.hasValue && now.Before(s.expiresAt):
		// A failed early refresh does not downgrade a value still in its window.
		return StatusFresh
	case s.err != nil && s.flight == nil:
		return StatusError
	case s.hasValue:
		return StatusStale
	default:
		return StatusPending
	}
}

func (s *slot[V]) snapshot(now time.Time) Entry[V] {
	return Entry[V]{
		Status:     s.status(now),
		Value:      s.value,
		HasValue:   s.hasValue,
		Err:        s.err,
		FetchedAt:  s.fetchedAt,
		ExpiresAt:  s.expiresAt,
		Fetching:   s.flight != nil,
		Generation: s.gen,
	}
}
