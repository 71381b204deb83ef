package vm

import "sync"

// Dispatch caching
//
// Resolving an access means walking the calling class's chain and then,
// when nothing binds statically, the receiver's chain. Both views are frozen
// once their classes are built, so the outcome for a given
// (calling class, access, name, receiver class) never changes and can be
// cached.
//
// Each (calling class, access, name) is a call site with its own
// polymorphic inline cache keyed by receiver class, following the usual
// monomorphic -> polymorphic -> megamorphic progression.

// CacheState represents the current state of an inline cache.
type CacheState uint8

const (
	CacheEmpty       CacheState = iota // No cached resolution yet
	CacheMonomorphic                   // Single receiver class cached
	CachePolymorphic                   // 2-6 entries
	CacheMegamorphic                   // Too many receiver classes, always resolve
)

// MaxPICEntries is the maximum number of entries in a polymorphic inline cache.
const MaxPICEntries = 6

// InlineCacheEntry holds a single cached resolution.
type InlineCacheEntry struct {
	Class *Class // Receiver class
	res   resolution
}

// InlineCache is the cache state for a single call site.
type InlineCache struct {
	State   CacheState
	Entries [MaxPICEntries]InlineCacheEntry
	Count   int

	Hits   uint64
	Misses uint64
}

// lookup returns the cached resolution for a receiver class.
func (ic *InlineCache) lookup(class *Class) (resolution, bool) {
	switch ic.State {
	case CacheMonomorphic, CachePolymorphic:
		for i := 0; i < ic.Count; i++ {
			if ic.Entries[i].Class == class {
				ic.Hits++
				return ic.Entries[i].res, true
			}
		}
	case CacheMegamorphic, CacheEmpty:
	}
	ic.Misses++
	return resolution{}, false
}

// update records a resolution, upgrading the cache state as needed.
func (ic *InlineCache) update(class *Class, res resolution) {
	for i := 0; i < ic.Count; i++ {
		if ic.Entries[i].Class == class {
			return
		}
	}
	switch ic.State {
	case CacheEmpty:
		ic.State = CacheMonomorphic
		ic.Entries[0] = InlineCacheEntry{Class: class, res: res}
		ic.Count = 1
	case CacheMonomorphic, CachePolymorphic:
		if ic.Count < MaxPICEntries {
			ic.State = CachePolymorphic
			ic.Entries[ic.Count] = InlineCacheEntry{Class: class, res: res}
			ic.Count++
			return
		}
		ic.State = CacheMegamorphic
		for i := range ic.Entries {
			ic.Entries[i] = InlineCacheEntry{}
		}
		ic.Count = 0
	case CacheMegamorphic:
	}
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (ic *InlineCache) HitRate() float64 {
	total := ic.Hits + ic.Misses
	if total == 0 {
		return 0
	}
	return float64(ic.Hits) * 100 / float64(total)
}

type accessKind uint8

const (
	accessRead accessKind = iota
	accessWrite
	accessDelete
)

type siteKey struct {
	caller *Class // nil when no calling class was established
	access accessKind
	name   string
}

// DispatchCache holds the inline caches of every call site of a VM.
type DispatchCache struct {
	mu    sync.Mutex
	sites map[siteKey]*InlineCache
}

// NewDispatchCache creates an empty cache.
func NewDispatchCache() *DispatchCache {
	return &DispatchCache{sites: make(map[siteKey]*InlineCache)}
}

func (dc *DispatchCache) lookup(key siteKey, receiver *Class) (resolution, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	ic := dc.sites[key]
	if ic == nil {
		ic = &InlineCache{}
		dc.sites[key] = ic
	}
	return ic.lookup(receiver)
}

func (dc *DispatchCache) store(key siteKey, receiver *Class, res resolution) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	ic := dc.sites[key]
	if ic == nil {
		ic = &InlineCache{}
		dc.sites[key] = ic
	}
	ic.update(receiver, res)
}

// CacheStats summarizes all call sites.
type CacheStats struct {
	Sites                   int
	Empty, Mono, Poly, Mega int
	Hits, Misses            uint64
}

// HitRate returns the aggregate hit rate as a percentage (0-100).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}

// Stats returns aggregate statistics for all call sites.
func (dc *DispatchCache) Stats() CacheStats {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	var s CacheStats
	s.Sites = len(dc.sites)
	for _, ic := range dc.sites {
		switch ic.State {
		case CacheEmpty:
			s.Empty++
		case CacheMonomorphic:
			s.Mono++
		case CachePolymorphic:
			s.Poly++
		case CacheMegamorphic:
			s.Mega++
		}
		s.Hits += ic.Hits
		s.Misses += ic.Misses
	}
	return s
}

// Reset drops every call site.
func (dc *DispatchCache) Reset() {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.sites = make(map[siteKey]*InlineCache)
}
