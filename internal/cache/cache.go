package cache

import (
	"sync"
	"time"
)

// scopeKey identifies the (alias, collection) granularity invalidation
// works at — coarse by design.
type scopeKey struct {
	alias      string
	collection string
}

// Cache composes the L1 and optional L2 tiers behind the Fingerprint keying
// scheme, plus the scope index invalidation needs: L2 blobs are addressed
// purely by fingerprint hash, which carries no recoverable (alias,
// collection) information, so Cache tracks which fingerprints belong to
// which scope in memory. A process restart drops that index; any orphaned
// L2 blobs simply age out via their own TTL instead of being invalidated
// early — acceptable since the cache is an accelerator, never a
// correctness boundary.
type Cache struct {
	cfg Config
	l1  l1
	l2  *l2

	counters statCounters

	mu    sync.Mutex
	scope map[scopeKey]map[string]struct{}
}

func New(cfg Config) (*Cache, error) {
	c := &Cache{
		cfg:   cfg,
		scope: make(map[scopeKey]map[string]struct{}),
	}

	switch cfg.Eviction {
	case EvictionLRU, EvictionFIFO:
		c.l1 = newListL1(cfg)
	default:
		r, err := newRistrettoL1(cfg)
		if err != nil {
			return nil, err
		}
		c.l1 = r
	}

	if cfg.L2Enabled {
		l2store, err := newL2(cfg)
		if err != nil {
			return nil, err
		}
		c.l2 = l2store
	}

	return c, nil
}

// Get looks up key (an alias/collection-scoped Fingerprint), consulting L1
// first and promoting an L2 hit into L1. Returns (payload, true) on hit.
func (c *Cache) Get(key string) ([]byte, bool) {
	if payload, ok := c.l1.Get(key); ok {
		c.counters.recordHit()
		return payload, true
	}

	if c.l2 != nil {
		if payload, expiresAt, ok := c.l2.Get(key); ok {
			var ttl time.Duration
			if !expiresAt.IsZero() {
				ttl = time.Until(expiresAt)
			}
			c.l1.Set(key, payload, ttl)
			c.counters.recordHit()
			return payload, true
		}
	}

	c.counters.recordMiss()
	return nil, false
}

// Set inserts payload under key, scoped to (alias, collection) for later
// invalidation. ttl is clamped to Config.MaxTTL if Config.MaxTTL > 0 and the
// caller asked for longer (or no expiry).
func (c *Cache) Set(alias, collection, key string, payload []byte, ttl time.Duration) {
	ttl = c.clampTTL(ttl)

	c.l1.Set(key, payload, ttl)
	if c.l2 != nil {
		_ = c.l2.Set(key, payload, ttl)
	}

	c.mu.Lock()
	sk := scopeKey{alias: alias, collection: collection}
	keys, ok := c.scope[sk]
	if !ok {
		keys = make(map[string]struct{})
		c.scope[sk] = keys
	}
	keys[key] = struct{}{}
	c.mu.Unlock()
}

func (c *Cache) clampTTL(ttl time.Duration) time.Duration {
	effective := ttl
	if effective <= 0 {
		effective = c.cfg.DefaultTTL
	}
	if c.cfg.MaxTTL > 0 && (effective <= 0 || effective > c.cfg.MaxTTL) {
		effective = c.cfg.MaxTTL
	}
	return effective
}

// Invalidate purges every cache entry scoped to (alias, collection): every
// successful mutation on that pair purges all entries whose key scope
// matches it.
func (c *Cache) Invalidate(alias, collection string) {
	sk := scopeKey{alias: alias, collection: collection}

	c.mu.Lock()
	keys := c.scope[sk]
	delete(c.scope, sk)
	c.mu.Unlock()

	for key := range keys {
		c.l1.Delete(key)
		if c.l2 != nil {
			c.l2.Delete(key)
		}
	}
}

// InvalidateAlias purges every cache entry for every collection under
// alias, used when an alias is removed via remove_database.
func (c *Cache) InvalidateAlias(alias string) {
	c.mu.Lock()
	var scopes []scopeKey
	for sk := range c.scope {
		if sk.alias == alias {
			scopes = append(scopes, sk)
		}
	}
	c.mu.Unlock()

	for _, sk := range scopes {
		c.Invalidate(sk.alias, sk.collection)
	}
}

// Stats returns a read-only snapshot of cache effectiveness.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.counters.hits.Load(),
		Misses:  c.counters.misses.Load(),
		Entries: c.l1.Len(),
	}
}

func (c *Cache) Close() {
	c.l1.Close()
	if c.l2 != nil {
		c.l2.Close()
	}
}
