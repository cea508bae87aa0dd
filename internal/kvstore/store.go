// Package kvstore persists small JSON values under namespaced keys.
//
// The Store never returns errors to its callers. Reads that fail, or that find
// corrupt data, yield the caller's default; writes that fail are logged and
// counted, and in-memory state stays authoritative.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kennedymwaniki/resource-explorer/internal/fault"
	"github.com/kennedymwaniki/resource-explorer/internal/metrics"
)

// ErrQuotaExceeded is logged when a value exceeds the configured size limit.
var ErrQuotaExceeded = errors.New("kvstore: quota exceeded")

const (
	defaultNamespace = "explorer"
	opTimeout        = 2 * time.Second
)

// Options configure a Store.
type Options struct {
	Namespace     string // key prefix, "explorer" when empty
	MaxValueBytes int    // zero disables the limit
	Logger        *zap.Logger
}

// Store wraps a Backend with JSON encoding and namespacing.
type Store struct {
	backend   Backend
	namespace string
	maxBytes  int
	logger    *zap.Logger
}

// New returns a Store over backend.
func New(backend Backend, opts Options) *Store {
	ns := strings.TrimSpace(opts.Namespace)
	if ns == "" {
		ns = defaultNamespace
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:   backend,
		namespace: ns,
		maxBytes:  opts.MaxValueBytes,
		logger:    logger.With(zap.String("backend", backend.Name())),
	}
}

// Key returns the namespaced form of key.
func (s *Store) Key(key string) string {
	return s.namespace + ":" + key
}

// Load decodes the value under key into dst. It reports false, leaving the
// caller to apply its default, when the key is absent, unreadable, not valid
// JSON, or when valid is non-nil and returns false after decoding.
func (s *Store) Load(key string, dst any, valid func() bool) bool {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	full := s.Key(key)
	raw, ok, err := s.backend.Get(ctx, full)
	metrics.RecordStorageOp(s.backend.Name(), "get", err)
	if err != nil {
		s.warn("load", full, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.warn("decode", full, err)
		return false
	}
	if valid != nil && !valid() {
		s.warn("validate", full, fmt.Errorf("stored value has unexpected shape"))
		return false
	}
	return true
}

// LoadOr returns the value under key, or def when Load would report false.
func LoadOr[T any](s *Store, key string, def T, valid func(T) bool) T {
	var out T
	var check func() bool
	if valid != nil {
		check = func() bool { return valid(out) }
	}
	if !s.Load(key, &out, check) {
		return def
	}
	return out
}

// Save encodes value and writes it under key. It reports whether the write
// reached the backend.
func (s *Store) Save(key string, value any) bool {
	full := s.Key(key)
	data, err := json.Marshal(value)
	if err != nil {
		s.warn("encode", full, err)
		metrics.RecordStorageOp(s.backend.Name(), "set", err)
		return false
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		err := fmt.Errorf("%w: %d bytes > %d", ErrQuotaExceeded, len(data), s.maxBytes)
		s.warn("save", full, err)
		metrics.RecordStorageOp(s.backend.Name(), "set", err)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	err = s.backend.Set(ctx, full, data)
	metrics.RecordStorageOp(s.backend.Name(), "set", err)
	if err != nil {
		s.warn("save", full, err)
		return false
	}
	return true
}

// Clear removes key.
func (s *Store) Clear(key string) {
	full := s.Key(key)
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	err := s.backend.Delete(ctx, full)
	metrics.RecordStorageOp(s.backend.Name(), "delete", err)
	if err != nil {
		s.warn("clear", full, err)
	}
}

// Watch calls fn whenever another context changes key. The returned function
// stops the watch.
func (s *Store) Watch(key string, fn func()) (cancel func()) {
	full := s.Key(key)
	return s.backend.Subscribe(func(changed string) {
		if changed == full {
			fn()
		}
	})
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) warn(op, key string, err error) {
	s.logger.Warn("storage operation failed",
		zap.String("key", key),
		zap.Error(fault.Storage(op, err)))
}
