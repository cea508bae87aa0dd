package kvstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryHub is an in-process keyspace shared by several Memory backends. Each
// backend opened from the hub acts as a separate context: writes through one
// are announced to the others.
type MemoryHub struct {
	mu    sync.RWMutex
	data  map[string][]byte
	peers map[*Memory]struct{}
}

// NewMemoryHub returns an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		data:  make(map[string][]byte),
		peers: make(map[*Memory]struct{}),
	}
}

// Open attaches a new context to the hub.
func (h *MemoryHub) Open() *Memory {
	m := &Memory{hub: h, writer: uuid.NewString()}
	h.mu.Lock()
	h.peers[m] = struct{}{}
	h.mu.Unlock()
	return m
}

// NewMemory returns a backend on a private hub.
func NewMemory() *Memory {
	return NewMemoryHub().Open()
}

// Memory is a Backend over a MemoryHub.
type Memory struct {
	hub      *MemoryHub
	writer   string
	notifier notifier

	mu     sync.Mutex
	closed bool
}

var _ Backend = (*Memory)(nil)

// Name implements Backend.
func (m *Memory) Name() string { return "memory" }

// Writer identifies this context.
func (m *Memory) Writer() string { return m.writer }

// Get implements Backend.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := m.check(ctx); err != nil {
		return nil, false, err
	}
	m.hub.mu.RLock()
	raw, ok := m.hub.data[key]
	m.hub.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), raw...), true, nil
}

// Set implements Backend.
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.hub.mu.Lock()
	m.hub.data[key] = append([]byte(nil), value...)
	peers := m.hub.othersLocked(m)
	m.hub.mu.Unlock()

	for _, peer := range peers {
		peer.notifier.publish(key)
	}
	return nil
}

// Delete implements Backend.
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.hub.mu.Lock()
	_, existed := m.hub.data[key]
	delete(m.hub.data, key)
	peers := m.hub.othersLocked(m)
	m.hub.mu.Unlock()

	if existed {
		for _, peer := range peers {
			peer.notifier.publish(key)
		}
	}
	return nil
}

// Subscribe implements Backend.
func (m *Memory) Subscribe(fn func(key string)) func() {
	return m.notifier.subscribe(fn)
}

// Close detaches the context from its hub. Data stays in the hub.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.hub.mu.Lock()
	delete(m.hub.peers, m)
	m.hub.mu.Unlock()
	m.notifier.close()
	return nil
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (h *MemoryHub) othersLocked(self *Memory) []*Memory {
	out := make([]*Memory, 0, len(h.peers))
	for peer := range h.peers {
		if peer != self {
			out = append(out, peer)
		}
	}
	return out
}
