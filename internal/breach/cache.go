package breach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores range API responses by hash prefix. Prefixes are already
// public, so caching them discloses nothing beyond what the API sees.
type Cache interface {
	Get(ctx context.Context, prefix string) (string, bool, error)
	Set(ctx context.Context, prefix, body string, ttl time.Duration) error
}

type memoryEntry struct {
	body      string
	expiresAt time.Time
}

// DefaultMemoryCacheEntries caps the in-process cache. A padded range body
// is roughly 30KB.
const DefaultMemoryCacheEntries = 1024

// memorySweepInterval is how often Set drops expired entries when the
// cache is below its cap.
const memorySweepInterval = time.Minute

// MemoryCache is an in-process TTL cache holding at most maxEntries range
// bodies. When full, expired entries go first, then the one closest to expiry.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	maxEntries int
	lastSweep  time.Time
	now        func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheSize(DefaultMemoryCacheEntries)
}

// NewMemoryCacheSize creates a cache holding at most maxEntries prefixes.
func NewMemoryCacheSize(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryCacheEntries
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, prefix string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[prefix]
	if !ok {
		return "", false, nil
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, prefix)
		return "", false, nil
	}
	return e.body, true, nil
}

func (m *MemoryCache) Set(_ context.Context, prefix, body string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	_, replacing := m.entries[prefix]
	full := !replacing && len(m.entries) >= m.maxEntries
	if full || now.Sub(m.lastSweep) >= memorySweepInterval {
		m.sweep(now)
	}
	if !replacing && len(m.entries) >= m.maxEntries {
		m.evictSoonest()
	}

	m.entries[prefix] = memoryEntry{body: body, expiresAt: now.Add(ttl)}
	return nil
}

// Len reports the number of stored entries, expired or not.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryCache) sweep(now time.Time) {
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

func (m *MemoryCache) evictSoonest() {
	var victim string
	var soonest time.Time
	for k, e := range m.entries {
		if victim == "" || e.expiresAt.Before(soonest) {
			victim, soonest = k, e.expiresAt
		}
	}
	delete(m.entries, victim)
}

// RedisCache shares range responses between portal instances.
// Key format: breach:range:<prefix>
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, prefix string) (string, bool, error) {
	body, err := r.client.Get(ctx, r.key(prefix)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return body, true, nil
}

func (r *RedisCache) Set(ctx context.Context, prefix, body string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(prefix), body, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) key(prefix string) string {
	return "breach:range:" + prefix
}

const defaultRedisTimeout = 5 * time.Second

// ConnectRedis opens a client and validates connectivity with a ping.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultRedisTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
