package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ristrettoL1 backs the default (and LFU) eviction strategy. Ristretto's
// TinyLFU admission policy combined with its cost-based and per-entry-TTL
// eviction map directly onto the max_memory_mb/default_ttl settings of the
// LFU-flavored default tier.
type ristrettoL1 struct {
	cache *ristretto.Cache[string, []byte]
}

func newRistrettoL1(cfg Config) (*ristrettoL1, error) {
	maxCost := cfg.MaxMemoryMB * 1024 * 1024
	if maxCost <= 0 {
		maxCost = 64 * 1024 * 1024
	}
	numCounters := cfg.MaxCapacity * 10
	if numCounters <= 0 {
		numCounters = 1e5
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &ristrettoL1{cache: c}, nil
}

func (r *ristrettoL1) Get(key string) ([]byte, bool) {
	v, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v, true
}

func (r *ristrettoL1) Set(key string, payload []byte, ttl time.Duration) bool {
	cost := int64(len(payload))
	if ttl > 0 {
		return r.cache.SetWithTTL(key, payload, cost, ttl)
	}
	return r.cache.Set(key, payload, cost)
}

func (r *ristrettoL1) Delete(key string) {
	r.cache.Del(key)
}

// Len reports an approximate live-entry count; Ristretto does not expose an
// exact size, only admission/eviction counters.
func (r *ristrettoL1) Len() int64 {
	r.cache.Wait()
	added := int64(r.cache.Metrics.KeysAdded())
	evicted := int64(r.cache.Metrics.KeysEvicted())
	if added < evicted {
		return 0
	}
	return added - evicted
}

func (r *ristrettoL1) Close() {
	r.cache.Close()
}
