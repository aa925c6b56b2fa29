package coordinator

import (
	"context"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
	"github.com/harun/cortex/internal/observability"
	"github.com/harun/cortex/pkg/memory"
)

const (
	lockStripes        = 64
	cacheMaxCost       = 32 << 20 // bytes of cached values per region
	cacheNumCounters   = 1e5
	cacheBufferItems   = 64
	cacheEntryOverhead = 64
)

// lookaside memoizes key-addressed reads for one durable region.
//
// A fill holds the key's stripe for reading across the store read, the cache
// insert and the wait for the cache's buffered insert to be applied. A write
// holds the stripe exclusively across the store write and the invalidation,
// so no fill of an old value can become visible after the write returns.
type lookaside struct {
	region  memory.Region
	cache   *ristretto.Cache
	stripes [lockStripes]sync.RWMutex
}

func newLookaside(region memory.Region) (*lookaside, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", region, err)
	}
	return &lookaside{region: region, cache: cache}, nil
}

func (l *lookaside) cacheKey(key string) string {
	return string(l.region) + "\x00" + key
}

func (l *lookaside) stripe(key string) *sync.RWMutex {
	return &l.stripes[xxhash.Sum64String(key)%lockStripes]
}

// read answers from the cache or calls load and memoizes a found result.
func (l *lookaside) read(ctx context.Context, key string, load func(context.Context) (memory.Result, error)) (memory.Result, error) {
	mu := l.stripe(key)
	mu.RLock()
	defer mu.RUnlock()

	ck := l.cacheKey(key)
	if v, ok := l.cache.Get(ck); ok {
		observability.RecordCacheLookup(string(l.region), true)
		return cloneResult(v.(memory.Result)), nil
	}
	observability.RecordCacheLookup(string(l.region), false)

	res, err := load(ctx)
	if err != nil {
		return res, err
	}
	if res.Found {
		l.cache.Set(ck, cloneResult(res), int64(len(res.Value))+cacheEntryOverhead)
		l.cache.Wait()
	}
	return res, nil
}

// write runs store under the key's exclusive stripe and invalidates the key
// whether or not the write succeeded.
func (l *lookaside) write(ctx context.Context, key string, store func(context.Context) (memory.Result, error)) (memory.Result, error) {
	mu := l.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	res, err := store(ctx)
	l.cache.Del(l.cacheKey(key))
	observability.RecordCacheInvalidation(string(l.region))
	return res, err
}

// invalidate drops key after an out-of-band change.
func (l *lookaside) invalidate(key string) {
	mu := l.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	l.cache.Del(l.cacheKey(key))
	observability.RecordCacheInvalidation(string(l.region))
}

func (l *lookaside) close() {
	l.cache.Close()
}

func cloneResult(r memory.Result) memory.Result {
	r.Value = memory.CloneBytes(r.Value)
	return r
}
