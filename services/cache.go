package services

import (
	"sync"
	"time"

	"github.com/parkwatch/parking-backend/models"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Data      *models.SearchResult
	ExpiresAt time.Time
}

// IsExpired checks if the cache entry has expired
func (ce *CacheEntry) IsExpired() bool {
	return time.Now().After(ce.ExpiresAt)
}

// CacheService provides in-memory caching of completed tag searches so a
// repeated lookup within the TTL does not replay the whole portal protocol.
// Results are keyed by normalized tag. Degraded results are never stored;
// the caller decides that.
type CacheService struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	defaultTTL time.Duration
	maxSize    int
}

// NewCacheService creates a cache service with default TTL and size.
func NewCacheService() *CacheService {
	return NewCacheServiceWithConfig(5*time.Minute, 128)
}

// NewCacheServiceWithConfig creates a cache service with custom configuration
func NewCacheServiceWithConfig(defaultTTL time.Duration, maxSize int) *CacheService {
	return &CacheService{
		cache:      make(map[string]*CacheEntry),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
	}
}

// GetSearchResult retrieves a cached search result by normalized tag.
func (cs *CacheService) GetSearchResult(tag string) (*models.SearchResult, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	entry, exists := cs.cache[tag]
	if !exists || entry.IsExpired() {
		return nil, false
	}
	return entry.Data, true
}

// SetSearchResult stores a search result with the default TTL.
func (cs *CacheService) SetSearchResult(tag string, result *models.SearchResult) {
	cs.SetSearchResultWithTTL(tag, result, cs.defaultTTL)
}

// SetSearchResultWithTTL stores a search result with a custom TTL.
func (cs *CacheService) SetSearchResultWithTTL(tag string, result *models.SearchResult, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if len(cs.cache) >= cs.maxSize {
		cs.evictOldest()
	}

	cs.cache[tag] = &CacheEntry{
		Data:      result,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// evictOldest removes the entry closest to expiry (simple FIFO eviction,
// since all entries share one TTL).
func (cs *CacheService) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range cs.cache {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.ExpiresAt
		}
	}
	if oldestKey != "" {
		delete(cs.cache, oldestKey)
	}
}

// CleanupExpired removes all expired entries and returns how many were
// purged. Called periodically by the cache cleanup job.
func (cs *CacheService) CleanupExpired() int {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	removed := 0
	for key, entry := range cs.cache {
		if entry.IsExpired() {
			delete(cs.cache, key)
			removed++
		}
	}
	return removed
}

// Size returns the current number of cached results.
func (cs *CacheService) Size() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return len(cs.cache)
}
