// Package cache memoizes expensive recomputation with a TTL and notifies
// dependents only when the recomputed content really changed.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/qcrao/copilot/internal/clock"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTTL      = 30 * time.Second
	DefaultDebounce = 300 * time.Millisecond
	DefaultCapacity = 256
)

// ErrComputeFailure wraps errors returned by a compute function.
var ErrComputeFailure = errors.New("cache: compute failed")

// Entry is a stored value and the metadata needed to judge its freshness.
type Entry[V any] struct {
	Value      V
	ComputedAt time.Time
	TTL        time.Duration
	Checksum   string
}

// Valid reports whether the entry is still fresh at now.
func (e Entry[V]) Valid(now time.Time) bool {
	return now.Sub(e.ComputedAt) < e.TTL
}

// Source recomputes the value behind a watched key. Checksum must be a
// deterministic projection of the identifying fields of v.
type Source[V any] struct {
	Compute  func(ctx context.Context) (V, error)
	Checksum func(v V) string
}

// Listener is invoked after a watched key's content changed.
type Listener[V any] func(key string, value V)

// Options configures a Cache.
type Options struct {
	TTL      time.Duration
	Debounce time.Duration
	Capacity int
	Clock    clock.Clock
	Logger   *slog.Logger
}

// Cache is a keyed TTL cache with checksum-gated change notification.
// Operations on one key are serialized; different keys proceed
// independently.
type Cache[V any] struct {
	ttl      time.Duration
	debounce time.Duration
	capacity int
	clock    clock.Clock
	logger   *slog.Logger
	flight   singleflight.Group

	mu     sync.Mutex // guards slots and closed only
	slots  map[string]*slot[V]
	closed bool
}

type registered[V any] struct {
	id int
	fn Listener[V]
}

type slot[V any] struct {
	// notifyMu is held while listeners run so notifications for one key
	// are delivered in order. Always acquired before mu.
	notifyMu sync.Mutex

	mu          sync.Mutex
	entry       *Entry[V]
	invalidated bool
	timer       clock.Timer
	generation  uint64
	source      *Source[V]
	listeners   []registered[V]
	nextID      int
}

// New creates a Cache.
func New[V any](opts Options) *Cache[V] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Cache[V]{
		ttl:      opts.TTL,
		debounce: opts.Debounce,
		capacity: opts.Capacity,
		clock:    opts.Clock,
		logger:   opts.Logger,
		slots:    make(map[string]*slot[V]),
	}
}

// slotFor returns the slot for key, creating it when create is true.
func (c *Cache[V]) slotFor(key string, create bool) *slot[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[key]
	if !ok && create && !c.closed {
		s = &slot[V]{}
		c.slots[key] = s
	}
	return s
}

// Get returns the value for key if it is present and fresh.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	s := c.slotFor(key, false)
	if s == nil {
		return zero, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil || s.invalidated || !s.entry.Valid(c.clock.Now()) {
		return zero, false
	}
	return s.entry.Value, true
}

// Entry returns a copy of the stored entry for key, fresh or not.
func (c *Cache[V]) Entry(key string) (Entry[V], bool) {
	s := c.slotFor(key, false)
	if s == nil {
		return Entry[V]{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return Entry[V]{}, false
	}
	return *s.entry, true
}

// Set stores value under key with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value under key. Listeners are not notified.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	s := c.slotFor(key, true)
	if s == nil {
		return
	}
	s.mu.Lock()
	c.storeLocked(s, value, ttl, s.checksumOf(value))
	s.mu.Unlock()
	c.evictOverflow(key)
}

// Invalidate forces the next access to key to recompute.
func (c *Cache[V]) Invalidate(key string) {
	s := c.slotFor(key, false)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.invalidated = true
	s.mu.Unlock()
}

// CachedOrCompute returns the fresh value for key or computes, stores and
// returns a new one. Concurrent callers for the same key share one
// computation. When compute fails and an earlier value exists, that value
// is returned together with an error wrapping ErrComputeFailure.
func (c *Cache[V]) CachedOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	type outcome struct {
		value V
		err   error
	}
	res, _, _ := c.flight.Do(key, func() (interface{}, error) {
		s := c.slotFor(key, true)
		if s == nil {
			var zero V
			return outcome{zero, fmt.Errorf("cache: closed")}, nil
		}
		s.mu.Lock()
		if s.entry != nil && !s.invalidated && s.entry.Valid(c.clock.Now()) {
			v := s.entry.Value
			s.mu.Unlock()
			return outcome{value: v}, nil
		}
		v, err := compute(ctx)
		if err != nil {
			wrapped := fmt.Errorf("%w: %s: %w", ErrComputeFailure, key, err)
			var last V
			if s.entry != nil {
				last = s.entry.Value
			}
			s.mu.Unlock()
			c.logger.Warn("cache: compute failed, keeping last value",
				slog.String("key", key), slog.String("error", err.Error()))
			return outcome{last, wrapped}, nil
		}
		c.storeLocked(s, v, ttl, s.checksumOf(v))
		s.mu.Unlock()
		c.evictOverflow(key)
		return outcome{value: v}, nil
	})
	out := res.(outcome)
	return out.value, out.err
}

// OnChange registers listener for key. The returned function unregisters
// it and is safe to call more than once.
func (c *Cache[V]) OnChange(key string, listener Listener[V]) (unregister func()) {
	s := c.slotFor(key, true)
	if s == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, registered[V]{id: id, fn: listener})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Watch binds key to src. Raw change signals for key are debounced and
// trigger src.Compute.
func (c *Cache[V]) Watch(key string, src Source[V]) {
	s := c.slotFor(key, true)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.source = &src
	s.mu.Unlock()
}

// Signal delivers a raw change signal for key. Each signal cancels any
// pending refresh and restarts the debounce window.
func (c *Cache[V]) Signal(key string) {
	s := c.slotFor(key, false)
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	gen := s.generation
	s.timer = c.clock.AfterFunc(c.debounce, func() { c.refresh(key, s, gen) })
}

// Refresh recomputes a watched key immediately, bypassing the debounce.
// It reports whether listeners were notified.
func (c *Cache[V]) Refresh(key string) (bool, error) {
	s := c.slotFor(key, false)
	if s == nil {
		return false, nil
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()
	return c.refresh(key, s, gen)
}

func (c *Cache[V]) refresh(key string, s *slot[V], gen uint64) (bool, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.generation != gen || s.source == nil || c.isClosed() {
		s.mu.Unlock()
		return false, nil
	}
	s.timer = nil
	src := s.source

	v, err := src.Compute(context.Background())
	if err != nil {
		s.mu.Unlock()
		c.logger.Warn("cache: recompute failed, keeping last value",
			slog.String("key", key), slog.String("error", err.Error()))
		return false, fmt.Errorf("%w: %s: %w", ErrComputeFailure, key, err)
	}

	sum := s.checksumOf(v)
	if s.entry != nil && s.entry.Checksum == sum {
		s.entry.ComputedAt = c.clock.Now()
		s.invalidated = false
		s.mu.Unlock()
		c.logger.Debug("cache: content unchanged", slog.String("key", key))
		return false, nil
	}
	ttl := c.ttl
	if s.entry != nil {
		ttl = s.entry.TTL
	}
	c.storeLocked(s, v, ttl, sum)
	listeners := make([]registered[V], len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	c.evictOverflow(key)
	c.logger.Debug("cache: content changed",
		slog.String("key", key), slog.Int("listeners", len(listeners)))
	for _, l := range listeners {
		l.fn(key, v)
	}
	return true, nil
}

// storeLocked must be called with s.mu held.
func (c *Cache[V]) storeLocked(s *slot[V], v V, ttl time.Duration, sum string) {
	s.entry = &Entry[V]{Value: v, ComputedAt: c.clock.Now(), TTL: ttl, Checksum: sum}
	s.invalidated = false
}

// checksumOf must be called with s.mu held.
func (s *slot[V]) checksumOf(v V) string {
	if s.source == nil || s.source.Checksum == nil {
		return ""
	}
	return s.source.Checksum(v)
}

// evictOverflow drops the oldest stored values until at most capacity
// keys hold a value. keep is never evicted.
func (c *Cache[V]) evictOverflow(keep string) {
	c.mu.Lock()
	snapshot := make(map[string]*slot[V], len(c.slots))
	for k, s := range c.slots {
		snapshot[k] = s
	}
	c.mu.Unlock()

	type aged struct {
		key string
		at  time.Time
	}
	var stored []aged
	for k, s := range snapshot {
		s.mu.Lock()
		if s.entry != nil {
			stored = append(stored, aged{k, s.entry.ComputedAt})
		}
		s.mu.Unlock()
	}
	for len(stored) > c.capacity {
		oldest := -1
		for i, a := range stored {
			if a.key == keep {
				continue
			}
			if oldest < 0 || a.at.Before(stored[oldest].at) ||
				(a.at.Equal(stored[oldest].at) && a.key < stored[oldest].key) {
				oldest = i
			}
		}
		if oldest < 0 {
			return
		}
		victim := snapshot[stored[oldest].key]
		victim.mu.Lock()
		victim.entry = nil
		victim.mu.Unlock()
		c.logger.Debug("cache: evicted", slog.String("key", stored[oldest].key))
		stored = append(stored[:oldest], stored[oldest+1:]...)
	}
}

// Len returns the number of keys currently holding a value.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	slots := make([]*slot[V], 0, len(c.slots))
	for _, s := range c.slots {
		slots = append(slots, s)
	}
	c.mu.Unlock()
	n := 0
	for _, s := range slots {
		s.mu.Lock()
		if s.entry != nil {
			n++
		}
		s.mu.Unlock()
	}
	return n
}

func (c *Cache[V]) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops pending refreshes and drops every entry and listener.
func (c *Cache[V]) Close() {
	c.mu.Lock()
	c.closed = true
	slots := c.slots
	c.slots = make(map[string]*slot[V])
	c.mu.Unlock()

	for _, s := range slots {
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.generation++
		s.entry = nil
		s.listeners = nil
		s.source = nil
		s.mu.Unlock()
	}
}
