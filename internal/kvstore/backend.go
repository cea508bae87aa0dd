package kvstore

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a backend after Close.
var ErrClosed = errors.New("kvstore: backend closed")

// Backend is a raw byte store shared between execution contexts.
//
// Subscribe delivers the keys changed by other contexts only. Callbacks run on
// a goroutine owned by the backend and never while a backend lock is held.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Subscribe(fn func(key string)) (cancel func())
	Close() error
}

// notifier fans change events out to subscribers. Each subscriber has its own
// goroutine, and repeated events for a key coalesce while it is busy.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]*subscription
	next   int
	closed bool
}

type subscription struct {
	fn      func(string)
	mu      sync.Mutex
	pending []string
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (n *notifier) subscribe(fn func(string)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || fn == nil {
		return func() {}
	}
	if n.subs == nil {
		n.subs = make(map[int]*subscription)
	}
	id := n.next
	n.next++
	sub := &subscription{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	n.subs[id] = sub
	go sub.run()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
		sub.stop()
	}
}

func (n *notifier) publish(key string) {
	n.mu.Lock()
	subs := make([]*subscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.enqueue(key)
	}
}

func (n *notifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *notifier) close() {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.closed = true
	n.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

func (s *subscription) enqueue(key string) {
	s.mu.Lock()
	for _, k := range s.pending {
		if k == key {
			s.mu.Unlock()
			return
		}
	}
	s.pending = append(s.pending, key)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			s.mu.Lock()
			keys := s.pending
			s.pending = nil
			s.mu.Unlock()
			for _, key := range keys {
				select {
				case <-s.done:
					return
				default:
				}
				s.fn(key)
			}
		}
	}
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}
