package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Eviction reasons reported in telq_cache_evictions_total.
const (
	reasonExpired  = "expired"
	reasonReplaced = "replaced"
	reasonDisposed = "disposed"
)

type slot struct {
	entry *Entry
	seq   uint64
}

// Registry is an in-memory request result cache with lazy repair.
//
// Entries are indexed by identity. Expired entries are never returned but
// stay in storage until the next repair pass, which runs on every Add,
// every List and on a Lookup that hits an expired entry. There is no
// background sweeper.
//
// Registry is safe for concurrent use; every operation holds the lock for
// its whole pass.
type Registry struct {
	mu      sync.Mutex
	entries map[string]slot
	seq     uint64
	closed  bool
	now     func() time.Time
	logger  zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]slot),
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the registry's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}

// Add repairs the registry for entry.ID and stores entry. Any existing
// entry with the same ID is replaced, so the latest insert wins.
// Nil entries and entries without an ID are ignored.
func (r *Registry) Add(entry *Entry) {
	if entry == nil || entry.ID == "" {
		r.logger.Debug().Msg("Ignoring cache entry without id")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	r.repairLocked(entry.ID)

	r.seq++
	r.entries[entry.ID] = slot{entry: entry, seq: r.seq}
	CacheEntries.Set(float64(len(r.entries)))

	r.logger.Debug().
		Str("id", entry.ID).
		Time("expires", entry.Expires).
		Msg("Cached entry")
}

// List runs a full repair pass and returns the live entries in insertion
// order.
func (r *Registry) List() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.repairLocked("")

	slots := make([]slot, 0, len(r.entries))
	for _, s := range r.entries {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].seq < slots[j].seq })

	out := make([]*Entry, len(slots))
	for i, s := range slots {
		out[i] = s.entry
	}
	return out
}

// Lookup returns the live entry for id. An expired entry found under id
// is removed and reported as a miss.
func (r *Registry) Lookup(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.entries[id]
	if !ok {
		CacheMisses.Inc()
		return nil, false
	}

	if s.entry.IsExpiredAt(r.now()) {
		r.evictLocked(id, reasonExpired)
		CacheEntries.Set(float64(len(r.entries)))
		CacheMisses.Inc()
		return nil, false
	}

	CacheHits.Inc()
	return s.entry, true
}

// Peek returns the live entry stored under id without recording a hit or
// a miss and without evicting.
func (r *Registry) Peek(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.entries[id]
	if !ok || s.entry.IsExpiredAt(r.now()) {
		return nil, false
	}
	return s.entry, true
}

// Repair drops expired entries and, when key is not empty, the entry
// stored under key. It returns the number of entries removed. Calling it
// twice without an intervening insert removes nothing the second time.
func (r *Registry) Repair(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.repairLocked(key)
}

// Len returns the number of stored entries, including expired entries
// that have not been repaired away yet.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

// Close disposes the registry. All entries are dropped and later inserts
// are ignored.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.entries {
		r.evictLocked(id, reasonDisposed)
	}
	r.closed = true
	CacheEntries.Set(0)
}

func (r *Registry) repairLocked(key string) int {
	now := r.now()
	removed := 0

	for id, s := range r.entries {
		switch {
		case s.entry.IsExpiredAt(now):
			r.evictLocked(id, reasonExpired)
			removed++
		case key != "" && id == key:
			r.evictLocked(id, reasonReplaced)
			removed++
		}
	}

	if removed > 0 {
		CacheEntries.Set(float64(len(r.entries)))
		r.logger.Debug().
			Str("key", key).
			Int("removed", removed).
			Msg("Registry repaired")
	}
	return removed
}

func (r *Registry) evictLocked(id, reason string) {
	delete(r.entries, id)
	CacheEvictions.WithLabelValues(reason).Inc()
}
