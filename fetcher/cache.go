package fetcher

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrCacheMiss is returned by CacheService.Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache miss")

// CacheService stores short-lived cooldown markers.
type CacheService interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte, expiration time.Duration) error
	Delete(key string) error
}

// MemcacheService implements CacheService using memcache, so several
// crawler processes share one cooldown.
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a memcache-backed cache.
func NewMemcacheService(serverAddr string) *MemcacheService {
	return &MemcacheService{client: memcache.New(serverAddr)}
}

func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	secs := int32(expiration.Seconds())
	if secs < 1 {
		secs = 1
	}
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: secs,
	})
}

func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Ping checks the memcache server is reachable.
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is an in-process CacheService. Entries never outlive the
// cache-wide maxTTL even when Set asks for longer.
type MemoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryCache creates an in-process cache holding up to size keys.
func NewMemoryCache(size int, maxTTL time.Duration) *MemoryCache {
	if size <= 0 {
		size = 256
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (m *MemoryCache) Get(key string) ([]byte, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		m.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

func (m *MemoryCache) Set(key string, value []byte, expiration time.Duration) error {
	entry := memoryEntry{value: value}
	if expiration > 0 {
		entry.expires = m.now().Add(expiration)
	}
	m.lru.Add(key, entry)
	return nil
}

func (m *MemoryCache) Delete(key string) error {
	m.lru.Remove(key)
	return nil
}
