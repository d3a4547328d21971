// Package store provides an in-memory resolution cache using Bloom filters and an expiring LRU.
package store

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"trackrelay/pkg/musiclink"
)

const (
	// DefaultFalsePositiveRate is the Bloom prefilter's target false positive rate.
	DefaultFalsePositiveRate = 0.001
	// bloomRebuildFactor bounds how many insertions the prefilter takes before it is rebuilt
	// from the live keys, since evicted ids cannot be removed from a Bloom filter.
	bloomRebuildFactor = 2
)

// ResolutionCache remembers successful track resolutions for a bounded time.
// A nil *ResolutionCache is never handed out; callers skip caching when the size is 0.
type ResolutionCache struct {
	bloom                  *bloom.BloomFilter
	lru                    *expirable.LRU[string, *musiclink.TrackResult]
	mutex                  sync.RWMutex
	maxEntries             int
	insertions             int
	bloomFalsePositiveRate float64
}

// NewResolutionCache creates a cache holding at most maxEntries results for ttl each.
// A zero ttl keeps entries until they are evicted by size.
func NewResolutionCache(maxEntries int, ttl time.Duration, bloomFalsePositiveRate float64) *ResolutionCache {
	if maxEntries <= 0 {
		panic("maxEntries must be positive")
	}
	if bloomFalsePositiveRate <= 0 || bloomFalsePositiveRate >= 1 {
		bloomFalsePositiveRate = DefaultFalsePositiveRate
	}

	return &ResolutionCache{
		bloom:                  bloom.NewWithEstimates(uint(maxEntries), bloomFalsePositiveRate),
		lru:                    expirable.NewLRU[string, *musiclink.TrackResult](maxEntries, nil, ttl),
		maxEntries:             maxEntries,
		bloomFalsePositiveRate: bloomFalsePositiveRate,
	}
}

// Get returns the cached result for trackID, if present and not expired.
func (rc *ResolutionCache) Get(trackID string) (*musiclink.TrackResult, bool) {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()

	if !rc.bloom.TestString(trackID) {
		return nil, false
	}

	result, ok := rc.lru.Get(trackID)
	if !ok {
		return nil, false
	}

	// Callers may fill in metadata on the returned value.
	clone := *result
	return &clone, true
}

// Add caches a successful result for trackID.
func (rc *ResolutionCache) Add(trackID string, result *musiclink.TrackResult) {
	if trackID == "" || result == nil || result.DownloadURL == "" {
		return
	}

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	clone := *result
	rc.lru.Add(trackID, &clone)
	rc.bloom.AddString(trackID)
	rc.insertions++

	if rc.insertions > rc.maxEntries*bloomRebuildFactor {
		rc.rebuildBloom()
	}
}

// Size returns the number of live entries.
func (rc *ResolutionCache) Size() int {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()

	return rc.lru.Len()
}

// rebuildBloom must be called with the write lock held.
func (rc *ResolutionCache) rebuildBloom() {
	rc.bloom = bloom.NewWithEstimates(uint(rc.maxEntries), rc.bloomFalsePositiveRate)
	keys := rc.lru.Keys()
	for _, key := range keys {
		rc.bloom.AddString(key)
	}
	rc.insertions = len(keys)
}
