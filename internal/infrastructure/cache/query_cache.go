package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	defaultGCTime        = 10 * time.Minute
	defaultSweepInterval = 30 * time.Second
	defaultMaxEntries    = 100
)

// Entry is a cached query result
type Entry struct {
	Value     any
	UpdatedAt time.Time
	// Stale is set once the entry has been invalidated
	Stale bool
}

// Age returns how long ago the entry was stored
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.UpdatedAt)
}

// Listener is notified when the entry under a subscribed key changes.
// removed is true when the entry was dropped from the cache.
type Listener func(key Key, entry Entry, removed bool)

type record struct {
	key    Key
	entry  Entry
	gcTime time.Duration
	seq    uint64
}

// Stats reports cache usage
type Stats struct {
	Entries       int
	Hits          int64
	Misses        int64
	Invalidations int64
	Evictions     int64
}

// QueryCache is a goroutine-safe in-process cache of query results.
// Entries become stale after the caller's stale time or after an
// invalidation, and are evicted gcTime after their last update when nobody
// is subscribed to them. The number of entries is bounded; see WithMaxEntries.
type QueryCache struct {
	mu          sync.RWMutex
	records     map[string]*record
	listeners   map[string]map[uint64]Listener
	nextID      uint64
	nextSeq     uint64
	maxEntries  int
	clock       clock.Clock
	logger      *zap.Logger
	gcTime      time.Duration
	sweepPeriod time.Duration
	stopCh      chan struct{}
	stopped     int32

	hits          int64
	misses        int64
	invalidations int64
	evictions     int64
}

// Option configures a QueryCache
type Option func(*QueryCache)

// WithClock sets the clock used for ages and eviction
func WithClock(c clock.Clock) Option {
	return func(q *QueryCache) {
		q.clock = c
	}
}

// WithLogger sets the logger for the cache
func WithLogger(logger *zap.Logger) Option {
	return func(q *QueryCache) {
		q.logger = logger
	}
}

// WithGCTime sets the default eviction delay for entries stored without one
func WithGCTime(d time.Duration) Option {
	return func(q *QueryCache) {
		if d > 0 {
			q.gcTime = d
		}
	}
}

// WithSweepInterval sets how often evictable entries are removed
func WithSweepInterval(d time.Duration) Option {
	return func(q *QueryCache) {
		if d > 0 {
			q.sweepPeriod = d
		}
	}
}

// WithMaxEntries bounds the number of cached results. When a Set goes over
// the bound, the least recently stored entries without subscribers are
// evicted. n <= 0 removes the bound.
func WithMaxEntries(n int) Option {
	return func(q *QueryCache) {
		q.maxEntries = n
	}
}

// NewQueryCache creates a cache and starts its background sweeper.
// Call Close to stop the sweeper.
func NewQueryCache(opts ...Option) *QueryCache {
	q := &QueryCache{
		records:     make(map[string]*record),
		listeners:   make(map[string]map[uint64]Listener),
		clock:       clock.New(),
		logger:      zap.NewNop(),
		gcTime:      defaultGCTime,
		sweepPeriod: defaultSweepInterval,
		maxEntries:  defaultMaxEntries,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	go q.sweepLoop()
	return q
}

// Now returns the cache clock's current time
func (q *QueryCache) Now() time.Time {
	return q.clock.Now()
}

// Get returns the entry stored under key
func (q *QueryCache) Get(key Key) (Entry, bool) {
	q.mu.RLock()
	rec, ok := q.records[key.String()]
	var entry Entry
	if ok {
		entry = rec.entry
	}
	q.mu.RUnlock()

	if !ok {
		atomic.AddInt64(&q.misses, 1)
		return Entry{}, false
	}
	atomic.AddInt64(&q.hits, 1)
	return entry, true
}

// IsFresh reports whether the entry can be served without refetching
func (q *QueryCache) IsFresh(entry Entry, staleTime time.Duration) bool {
	return !entry.Stale && entry.Age(q.clock.Now()) < staleTime
}

// Set stores value under key. A zero gcTime uses the cache default.
func (q *QueryCache) Set(key Key, value any, gcTime time.Duration) Entry {
	if gcTime <= 0 {
		gcTime = q.gcTime
	}
	entry := Entry{Value: value, UpdatedAt: q.clock.Now()}
	id := key.String()

	q.mu.Lock()
	q.nextSeq++
	q.records[id] = &record{key: key, entry: entry, gcTime: gcTime, seq: q.nextSeq}
	listeners := q.listenersLocked(id)
	evicted := q.trimLocked(id)
	q.mu.Unlock()

	if evicted > 0 {
		atomic.AddInt64(&q.evictions, int64(evicted))
		q.logger.Debug("Evicted cached queries over capacity",
			zap.Int("count", evicted),
			zap.Int("max_entries", q.maxEntries))
	}
	notify(listeners, key, entry, false)
	return entry
}

// trimLocked evicts the oldest unsubscribed entries until the cache is back
// within maxEntries. keep is never evicted. Subscribed entries may hold the
// cache over its bound.
func (q *QueryCache) trimLocked(keep string) int {
	if q.maxEntries <= 0 {
		return 0
	}
	evicted := 0
	for len(q.records) > q.maxEntries {
		oldest := ""
		var oldestSeq uint64
		for id, rec := range q.records {
			if id == keep || len(q.listeners[id]) > 0 {
				continue
			}
			if oldest == "" || rec.seq < oldestSeq {
				oldest, oldestSeq = id, rec.seq
			}
		}
		if oldest == "" {
			break
		}
		delete(q.records, oldest)
		evicted++
	}
	return evicted
}

// Invalidate marks every entry whose key starts with prefix as stale and
// returns how many entries were affected.
func (q *QueryCache) Invalidate(prefix Key) int {
	type change struct {
		key       Key
		entry     Entry
		listeners []Listener
	}
	var changes []change

	q.mu.Lock()
	for id, rec := range q.records {
		if !rec.key.HasPrefix(prefix) {
			continue
		}
		rec.entry.Stale = true
		changes = append(changes, change{key: rec.key, entry: rec.entry, listeners: q.listenersLocked(id)})
	}
	q.mu.Unlock()

	atomic.AddInt64(&q.invalidations, int64(len(changes)))
	for _, c := range changes {
		notify(c.listeners, c.key, c.entry, false)
	}
	if len(changes) > 0 {
		q.logger.Debug("Invalidated cached queries",
			zap.String("prefix", prefix.String()),
			zap.Int("count", len(changes)))
	}
	return len(changes)
}

// Remove drops every entry whose key starts with prefix
func (q *QueryCache) Remove(prefix Key) int {
	var removed []*record
	var listeners [][]Listener

	q.mu.Lock()
	for id, rec := range q.records {
		if rec.key.HasPrefix(prefix) {
			delete(q.records, id)
			removed = append(removed, rec)
			listeners = append(listeners, q.listenersLocked(id))
		}
	}
	q.mu.Unlock()

	for i, rec := range removed {
		notify(listeners[i], rec.key, rec.entry, true)
	}
	return len(removed)
}

// Subscribe registers fn for changes to the entry under key.
// The returned function removes the subscription.
func (q *QueryCache) Subscribe(key Key, fn Listener) func() {
	id := key.String()

	q.mu.Lock()
	q.nextID++
	subID := q.nextID
	if q.listeners[id] == nil {
		q.listeners[id] = make(map[uint64]Listener)
	}
	q.listeners[id][subID] = fn
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.listeners[id], subID)
			if len(q.listeners[id]) == 0 {
				delete(q.listeners, id)
			}
			q.mu.Unlock()
		})
	}
}

// Stats returns a snapshot of cache counters
func (q *QueryCache) Stats() Stats {
	q.mu.RLock()
	n := len(q.records)
	q.mu.RUnlock()
	return Stats{
		Entries:       n,
		Hits:          atomic.LoadInt64(&q.hits),
		Misses:        atomic.LoadInt64(&q.misses),
		Invalidations: atomic.LoadInt64(&q.invalidations),
		Evictions:     atomic.LoadInt64(&q.evictions),
	}
}

// Close stops the background sweeper
func (q *QueryCache) Close() error {
	if atomic.CompareAndSwapInt32(&q.stopped, 0, 1) {
		close(q.stopCh)
	}
	return nil
}

// Sweep evicts entries older than their gcTime that have no subscribers
func (q *QueryCache) Sweep() int {
	now := q.clock.Now()
	evicted := 0

	q.mu.Lock()
	for id, rec := range q.records {
		if len(q.listeners[id]) > 0 {
			continue
		}
		if now.Sub(rec.entry.UpdatedAt) >= rec.gcTime {
			delete(q.records, id)
			evicted++
		}
	}
	q.mu.Unlock()

	if evicted > 0 {
		atomic.AddInt64(&q.evictions, int64(evicted))
		q.logger.Debug("Evicted cached queries", zap.Int("count", evicted))
	}
	return evicted
}

func (q *QueryCache) sweepLoop() {
	ticker := q.clock.Ticker(q.sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						q.logger.Error("Panic in query cache sweep", zap.Any("panic", r))
					}
				}()
				q.Sweep()
			}()
		}
	}
}

func (q *QueryCache) listenersLocked(id string) []Listener {
	subs := q.listeners[id]
	if len(subs) == 0 {
		return nil
	}
	out := make([]Listener, 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []Listener, key Key, entry Entry, removed bool) {
	for _, fn := range listeners {
		fn(key, entry, removed)
	}
}
