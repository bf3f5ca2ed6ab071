package cache

import (
	"context"

	"github.com/adambraimbridge/origami-build-service-v3/observability"
)

// MultiTierCache reads memory first, then disk, promoting disk hits to
// memory. Writes go to both tiers.
type MultiTierCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewMultiTierCache creates a cache over the two tiers.
func NewMultiTierCache(memory *MemoryCache, disk *DiskCache) *MultiTierCache {
	return &MultiTierCache{memory: memory, disk: disk}
}

func memoryKey(origin, key string) string {
	return origin + "\x00" + key
}

// Get looks key up in both tiers, honoring the Policy on ctx.
func (mtc *MultiTierCache) Get(ctx context.Context, origin, key string) ([]byte, bool, error) {
	policy := policyOrDefault(ctx)
	if policy.NoCache {
		return nil, false, nil
	}

	if data, ok := mtc.memory.Get(memoryKey(origin, key)); ok {
		observability.CacheHitsTotal.WithLabelValues("memory").Inc()
		return data, true, nil
	}
	observability.CacheMissesTotal.WithLabelValues("memory").Inc()

	data, ok, err := mtc.disk.Get(origin, key, policy.MaxAge)
	if err != nil || !ok {
		observability.CacheMissesTotal.WithLabelValues("disk").Inc()
		return nil, false, err
	}
	observability.CacheHitsTotal.WithLabelValues("disk").Inc()

	mtc.memory.Set(memoryKey(origin, key), data, policy.MaxAge)
	return data, true, nil
}

// Set stores data in both tiers unless the Policy on ctx forbids writes.
func (mtc *MultiTierCache) Set(ctx context.Context, origin, key string, data []byte) error {
	policy := policyOrDefault(ctx)
	if policy.NoStore {
		return nil
	}
	mtc.memory.Set(memoryKey(origin, key), data, policy.MaxAge)
	return mtc.disk.Set(origin, key, data)
}

// Clear empties both tiers.
func (mtc *MultiTierCache) Clear() error {
	mtc.memory.Clear()
	return mtc.disk.Clear()
}

func policyOrDefault(ctx context.Context) *Policy {
	if p := PolicyFrom(ctx); p != nil {
		if p.MaxAge > 0 {
			return p
		}
		clone := *p
		clone.MaxAge = DefaultMaxAge
		return &clone
	}
	return &Policy{MaxAge: DefaultMaxAge}
}
