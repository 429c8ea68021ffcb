package blob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// URLCache remembers presigned URLs together with their expiry.
type URLCache interface {
	Get(ctx context.Context, key string) (url string, expiresAt time.Time, ok bool)
	Set(ctx context.Context, key string, url string, expiresAt time.Time)
	Forget(ctx context.Context, key string)
}

type cachedURL struct {
	url       string
	expiresAt time.Time
}

// MemoryURLCache is a process-local URLCache.
type MemoryURLCache struct {
	mu      sync.RWMutex
	entries map[string]cachedURL
}

func NewMemoryURLCache() *MemoryURLCache {
	return &MemoryURLCache{entries: make(map[string]cachedURL)}
}

func (c *MemoryURLCache) Get(_ context.Context, key string) (string, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.url, e.expiresAt, ok
}

func (c *MemoryURLCache) Set(_ context.Context, key string, url string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedURL{url: url, expiresAt: expiresAt}
}

func (c *MemoryURLCache) Forget(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// redisKV is the part of redis.Cmdable the cache needs.
type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisURLCache shares presigned URLs between server replicas. Values are
// stored as "<unix expiry> <url>" and expire in redis together with the URL.
type RedisURLCache struct {
	rdb    redisKV
	prefix string
	now    func() time.Time
}

func NewRedisURLCache(rdb redisKV) *RedisURLCache {
	return &RedisURLCache{rdb: rdb, prefix: "talkboard:presign:", now: time.Now}
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (c *RedisURLCache) Get(ctx context.Context, key string) (string, time.Time, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		return "", time.Time{}, false
	}
	exp, url, found := strings.Cut(raw, " ")
	if !found {
		return "", time.Time{}, false
	}
	sec, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return url, time.Unix(sec, 0), true
}

// Set is best effort: a redis failure only costs a re-sign later.
func (c *RedisURLCache) Set(ctx context.Context, key string, url string, expiresAt time.Time) {
	ttl := expiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	value := strconv.FormatInt(expiresAt.Unix(), 10) + " " + url
	_ = c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Forget is best effort like Set; a stale entry expires with its URL anyway.
func (c *RedisURLCache) Forget(ctx context.Context, key string) {
	_ = c.rdb.Del(ctx, c.prefix+key).Err()
}
