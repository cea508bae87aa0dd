// Package querycache is a revalidating request cache.
//
// Each key owns one slot. A slot is fresh for a configured window after a
// successful fetch, then stale: stale values are still returned immediately
// while a background refresh runs. Identical concurrent requests share one
// in-flight fetch. Every fetch is tagged with a per-key generation and only
// the latest generation may write its result back.
package querycache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kennedymwaniki/resource-explorer/internal/fault"
	"github.com/kennedymwaniki/resource-explorer/internal/metrics"
)

const (
	DefaultFreshFor    = 5 * time.Minute
	DefaultRetainFor   = 10 * time.Minute
	DefaultMaxAttempts = 3
	DefaultRetryBase   = 250 * time.Millisecond
)

// Fetcher loads the value for key from the network.
type Fetcher[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Options configure a Cache. Zero values use the defaults above.
type Options struct {
	Name        string // label for logs and metrics
	FreshFor    time.Duration
	RetainFor   time.Duration
	MaxAttempts int
	RetryBase   time.Duration

	// CancelSuperseded cancels the running foreground fetch when a caller
	// asks for a different key.
	CancelSuperseded bool

	Clock  clock.Clock
	Logger *zap.Logger
}

type flight struct {
	id         string
	gen        uint64
	foreground bool
	ctx        context.Context
	cancel     context.CancelFunc
}

type activeFlight[K comparable] struct {
	key K
	fl  *flight
}

// Cache maps keys to revalidating entries.
type Cache[K comparable, V any] struct {
	name   string
	fetch  Fetcher[K, V]
	opts   Options
	clock  clock.Clock
	logger *zap.Logger

	group singleflight.Group
	base  context.Context
	stop  context.CancelFunc

	mu     sync.Mutex
	slots  map[K]*slot[V]
	seq    uint64
	active *activeFlight[K]

	subMu   sync.Mutex
	subs    map[int]func(K)
	nextSub int
}

// New returns a Cache calling fetch on misses.
func New[K comparable, V any](fetch Fetcher[K, V], opts Options) *Cache[K, V] {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.FreshFor <= 0 {
		opts.FreshFor = DefaultFreshFor
	}
	if opts.RetainFor <= 0 {
		opts.RetainFor = DefaultRetainFor
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultRetryBase
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	return &Cache[K, V]{
		name:   opts.Name,
		fetch:  fetch,
		opts:   opts,
		clock:  opts.Clock,
		logger: opts.Logger.With(zap.String("cache", opts.Name)),
		base:   base,
		stop:   stop,
		slots:  make(map[K]*slot[V]),
		subs:   make(map[int]func(K)),
	}
}

// Fetch returns the value for key.
//
// A fresh value is returned without a network call. A stale value, or one
// kept after a failed refresh, is returned at once and refreshed in the
// background. Otherwise the caller waits for a fetch, sharing it with any
// other caller asking for the same key. Cancelling ctx detaches this caller
// only; the fetch keeps running for the others.
func (c *Cache[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	return c.Load(key)(ctx)
}

// Load does the work of Fetch up to the point of waiting: any fetch it needs
// is started, and any superseded fetch cancelled, before Load returns. The
// returned function waits for the result. Callers that must keep the order
// of their requests call Load synchronously and wait elsewhere.
func (c *Cache[K, V]) Load(key K) func(ctx context.Context) (V, error) {
	now := c.clock.Now()
	var changed []K

	c.mu.Lock()
	if prev, ok := c.supersedeLocked(key); ok {
		changed = append(changed, prev)
	}
	s := c.slots[key]
	if s != nil {
		s.lastAccess = now
	}

	if s != nil && s.hasValue {
		value := s.value
		if s.status(now) == StatusFresh {
			c.mu.Unlock()
			metrics.RecordCacheLookup(c.name, "fresh")
			c.notify(changed...)
			return ready(value)
		}
		if s.flight == nil {
			c.startLocked(key, s, false)
			changed = append(changed, key)
		}
		c.mu.Unlock()
		metrics.RecordCacheLookup(c.name, "stale")
		c.notify(changed...)
		return ready(value)
	}

	if s == nil {
		s = &slot[V]{lastAccess: now}
		c.slots[key] = s
	}
	fl := s.flight
	if fl == nil {
		fl = c.startLocked(key, s, true)
		changed = append(changed, key)
	} else if c.opts.CancelSuperseded {
		c.active = &activeFlight[K]{key: key, fl: fl}
	}
	ch := c.group.DoChan(fl.id, c.runner(key, fl))
	c.mu.Unlock()

	metrics.RecordCacheLookup(c.name, "miss")
	c.notify(changed...)
	return c.waiter(ch)
}

// Refetch starts a new generation for key with a fresh attempt budget,
// cancelling any fetch already running for it, and waits for the result.
func (c *Cache[K, V]) Refetch(ctx context.Context, key K) (V, error) {
	return c.Reload(key)(ctx)
}

// Reload is Refetch without the wait: the new generation is running when
// Reload returns.
func (c *Cache[K, V]) Reload(key K) func(ctx context.Context) (V, error) {
	now := c.clock.Now()
	changed := []K{key}

	c.mu.Lock()
	if prev, ok := c.supersedeLocked(key); ok {
		changed = append(changed, prev)
	}
	s := c.slots[key]
	if s == nil {
		s = &slot[V]{}
		c.slots[key] = s
	}
	s.lastAccess = now
	if s.flight != nil {
		s.flight.cancel()
		s.flight = nil
	}
	fl := c.startLocked(key, s, true)
	ch := c.group.DoChan(fl.id, c.runner(key, fl))
	c.mu.Unlock()

	c.logger.Debug("manual refetch", zap.Any("key", key), zap.Uint64("generation", fl.gen))
	c.notify(changed...)
	return c.waiter(ch)
}

// Entry returns a copy of the slot for key. Staleness is computed from the
// clock at the time of the call.
func (c *Cache[K, V]) Entry(key K) (Entry[V], bool) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok {
		return Entry[V]{}, false
	}
	return s.snapshot(now), true
}

// Len returns the number of retained slots.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Subscribe registers fn to run with the key of every slot that changes.
// fn runs on the goroutine that made the change and must not block.
func (c *Cache[K, V]) Subscribe(fn func(K)) (cancel func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// RevalidateAll evicts idle slots, then starts a background refresh for every
// remaining slot that has no fetch running. Failed refreshes keep the
// previous value. It returns how many refreshes were started.
func (c *Cache[K, V]) RevalidateAll(ctx context.Context) int {
	c.Evict()

	var started []K
	c.mu.Lock()
	for key, s := range c.slots {
		if ctx.Err() != nil {
			break
		}
		if s.flight != nil {
			continue
		}
		c.startLocked(key, s, false)
		started = append(started, key)
	}
	c.mu.Unlock()

	if len(started) > 0 {
		c.logger.Debug("revalidating", zap.Int("entries", len(started)))
	}
	c.notify(started...)
	return len(started)
}

// Evict drops slots that have not been requested within the retention window
// and have no fetch running. It returns how many were dropped.
func (c *Cache[K, V]) Evict() int {
	now := c.clock.Now()
	var evicted []K

	c.mu.Lock()
	for key, s := range c.slots {
		if s.flight == nil && now.Sub(s.lastAccess) >= c.opts.RetainFor {
			delete(c.slots, key)
			evicted = append(evicted, key)
		}
	}
	remaining := len(c.slots)
	c.mu.Unlock()

	metrics.RecordCacheEvictions(c.name, len(evicted), remaining)
	c.notify(evicted...)
	return len(evicted)
}

// Close cancels every running fetch. Results still arriving are discarded.
func (c *Cache[K, V]) Close() {
	c.stop()
}

// startLocked begins a new generation for s and launches its fetch.
func (c *Cache[K, V]) startLocked(key K, s *slot[V], foreground bool) *flight {
	c.seq++
	s.gen++
	ctx, cancel := context.WithCancel(c.base)
	fl := &flight{
		id:         strconv.FormatUint(c.seq, 10),
		gen:        s.gen,
		foreground: foreground,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.flight = fl
	if foreground && c.opts.CancelSuperseded {
		c.active = &activeFlight[K]{key: key, fl: fl}
	}
	// The first DoChan launches the call. Attaching later under c.mu is
	// safe: the call cannot finish before apply takes c.mu.
	c.group.DoChan(fl.id, c.runner(key, fl))
	return fl
}

// supersedeLocked cancels the running foreground fetch if it is for a key
// other than key. It reports the cancelled key.
func (c *Cache[K, V]) supersedeLocked(key K) (K, bool) {
	var zero K
	if !c.opts.CancelSuperseded || c.active == nil || c.active.key == key {
		return zero, false
	}
	prev := c.active
	c.active = nil
	s := c.slots[prev.key]
	if s == nil || s.flight != prev.fl {
		return zero, false
	}
	prev.fl.cancel()
	s.flight = nil
	if !s.hasValue && s.err == nil {
		delete(c.slots, prev.key)
	}
	c.logger.Debug("cancelled superseded fetch", zap.Any("key", prev.key), zap.Uint64("generation", prev.fl.gen))
	return prev.key, true
}

func (c *Cache[K, V]) runner(key K, fl *flight) func() (any, error) {
	return func() (any, error) {
		defer fl.cancel()
		value, err := c.attempt(fl.ctx, key)
		c.apply(key, fl, value, err)
		if err != nil {
			return nil, err
		}
		return value, nil
	}
}

// attempt runs the fetcher with the retry policy: not-found and cancellation
// end the sequence at once, anything else is retried up to MaxAttempts.
func (c *Cache[K, V]) attempt(ctx context.Context, key K) (V, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.RetryBase
	policy.MaxInterval = 8 * c.opts.RetryBase

	op := func() (V, error) {
		value, err := c.fetch(ctx, key)
		switch {
		case err == nil:
			metrics.RecordCacheFetch(c.name, "success")
			return value, nil
		case fault.IsCancelled(err) || ctx.Err() != nil:
			metrics.RecordCacheFetch(c.name, "cancelled")
			if !fault.IsCancelled(err) {
				err = fault.Cancelled(c.name+" fetch", err)
			}
			return value, backoff.Permanent(err)
		case fault.IsNotFound(err):
			metrics.RecordCacheFetch(c.name, "not_found")
			return value, backoff.Permanent(err)
		default:
			metrics.RecordCacheFetch(c.name, "transient")
			return value, err
		}
	}

	value, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.opts.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("fetch failed, retrying",
				zap.Any("key", key),
				zap.Duration("backoff", next),
				zap.Error(err))
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		if ctx.Err() != nil && !fault.IsCancelled(err) {
			err = fault.Cancelled(c.name+" fetch", ctx.Err())
		}
	}
	return value, err
}

// apply writes a finished fetch back unless a newer generation replaced it.
func (c *Cache[K, V]) apply(key K, fl *flight, value V, err error) {
	now := c.clock.Now()

	c.mu.Lock()
	s := c.slots[key]
	if s == nil || s.flight != fl {
		c.mu.Unlock()
		metrics.RecordCacheSuperseded(c.name)
		c.logger.Debug("dropped superseded result", zap.Any("key", key), zap.Uint64("generation", fl.gen))
		return
	}
	s.flight = nil
	if c.active != nil && c.active.fl == fl {
		c.active = nil
	}
	switch {
	case err == nil:
		s.value = value
		s.hasValue = true
		s.err = nil
		s.fetchedAt = now
		s.expiresAt = now.Add(c.opts.FreshFor)
	case fault.IsCancelled(err):
		if !s.hasValue && s.err == nil {
			delete(c.slots, key)
		}
	default:
		s.err = err
		c.logger.Warn("fetch failed", zap.Any("key", key), zap.Bool("kept_value", s.hasValue), zap.Error(err))
	}
	c.mu.Unlock()

	c.notify(key)
}

func (c *Cache[K, V]) waiter(ch <-chan singleflight.Result) func(ctx context.Context) (V, error) {
	return func(ctx context.Context) (V, error) {
		var zero V
		select {
		case res := <-ch:
			if res.Err != nil {
				return zero, res.Err
			}
			value, _ := res.Val.(V)
			return value, nil
		case <-ctx.Done():
			return zero, fault.Cancelled(c.name+" fetch", ctx.Err())
		}
	}
}

func ready[V any](value V) func(context.Context) (V, error) {
	return func(context.Context) (V, error) { return value, nil }
}

func (c *Cache[K, V]) notify(keys ...K) {
	if len(keys) == 0 {
		return
	}
	c.subMu.Lock()
	fns := make([]func(K), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, key := range keys {
		for _, fn := range fns {
			fn(key)
		}
	}
}
