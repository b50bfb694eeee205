// Package cache provides the in-memory request result registry used by
// the telq facade.
//
// The registry memoizes successful GET-style results for a bounded time
// window:
//
// - Entries are keyed by request identity (see package params)
// - Each entry carries an absolute expiry computed at insertion
// - Expiry is enforced on access only; there is no background sweeper
// - Inserting under an existing identity replaces it (latest wins)
// - Registries are explicitly constructed and disposed, one per client
//
// # Basic Usage
//
//	registry := cache.NewRegistry()
//	defer registry.Close()
//
//	entry, ok := cache.NewEntry(id, body, cache.Meta{StatusCode: 200}, registry.Now(), time.Minute)
//	if ok {
//		registry.Add(entry)
//	}
//
//	if hit, found := registry.Lookup(id); found {
//		return hit.Body
//	}
//
// # Repair
//
// A repair pass drops expired entries and, on insert, the entry being
// replaced. It runs inside Add and List and is idempotent.
//
// # Metrics
//
//   - telq_cache_hits_total - Lookup hits
//   - telq_cache_misses_total - Lookup misses
//   - telq_cache_entries - Stored entries
//   - telq_cache_evictions_total{reason} - Removed entries
//
// This is not a general-purpose cache: it has no size bound, no LRU and
// does not survive a process restart.
package cache
