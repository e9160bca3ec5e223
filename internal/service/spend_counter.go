package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bchfaucet/internal/cache"
)

// SpendCounter tracks satoshis paid out in the current window.
type SpendCounter interface {
	Total(ctx context.Context) (int64, error)
	Add(ctx context.Context, sats int64) error
}

// MemorySpendCounter is a process-local counter that resets once the window has elapsed.
// Its state is lost on restart.
type MemorySpendCounter struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	start  time.Time
	total  int64
}

// NewMemorySpendCounter creates a counter with the given window. A nil clock uses time.Now.
func NewMemorySpendCounter(window time.Duration, now func() time.Time) *MemorySpendCounter {
	if now == nil {
		now = time.Now
	}
	return &MemorySpendCounter{window: window, now: now, start: now()}
}

func (c *MemorySpendCounter) Total(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetIfElapsed()
	return c.total, nil
}

func (c *MemorySpendCounter) Add(_ context.Context, sats int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetIfElapsed()
	c.total += sats
	return nil
}

// resetIfElapsed must be called with mu held.
func (c *MemorySpendCounter) resetIfElapsed() {
	now := c.now()
	if now.Sub(c.start) >= c.window {
		c.start = now
		c.total = 0
	}
}

// RedisSpendCounter shares the counter between processes using one key per window bucket.
type RedisSpendCounter struct {
	cache  *cache.Client
	prefix string
	window time.Duration
	now    func() time.Time
}

// NewRedisSpendCounter creates a counter stored under keys "<prefix>:<bucket>".
func NewRedisSpendCounter(c *cache.Client, prefix string, window time.Duration) *RedisSpendCounter {
	return &RedisSpendCounter{cache: c, prefix: prefix, window: window, now: time.Now}
}

func (c *RedisSpendCounter) key() string {
	return fmt.Sprintf("%s:%d", c.prefix, c.now().Truncate(c.window).Unix())
}

func (c *RedisSpendCounter) Total(ctx context.Context) (int64, error) {
	n, err := c.cache.GetInt64(ctx, c.key())
	if err != nil {
		return 0, fmt.Errorf("read spend counter: %w", err)
	}
	return n, nil
}

func (c *RedisSpendCounter) Add(ctx context.Context, sats int64) error {
	if _, err := c.cache.IncrBy(ctx, c.key(), sats, c.window); err != nil {
		return fmt.Errorf("update spend counter: %w", err)
	}
	return nil
}
