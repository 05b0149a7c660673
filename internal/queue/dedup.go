package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers dedup keys for a fixed window.
// Claim reports true the first time a key is seen inside the window.
// Release forgets a key so a failed send can be retried.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryDeduper keeps dedup keys in process memory
type MemoryDeduper struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	seen   map[string]time.Time
}

// NewMemoryDeduper creates a MemoryDeduper with the given window
func NewMemoryDeduper(window time.Duration) *MemoryDeduper {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &MemoryDeduper{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

func (d *MemoryDeduper) Claim(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, expires := range d.seen {
		if !now.Before(expires) {
			delete(d.seen, k)
		}
	}

	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now.Add(d.window)
	return true, nil
}

func (d *MemoryDeduper) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.seen, key)
	return nil
}

// RedisDeduper keeps dedup keys in Redis with SET NX EX so several API
// replicas share one window
type RedisDeduper struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedisDeduper creates a RedisDeduper. Keys are stored as prefix+key.
func NewRedisDeduper(client *redis.Client, prefix string, window time.Duration) *RedisDeduper {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &RedisDeduper{
		client: client,
		prefix: prefix,
		window: window,
	}
}

func (d *RedisDeduper) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, time.Now().UTC().Format(time.RFC3339Nano), d.window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim %s: %w", key, err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+key).Err(); err != nil {
		return fmt.Errorf("dedup release %s: %w", key, err)
	}
	return nil
}
