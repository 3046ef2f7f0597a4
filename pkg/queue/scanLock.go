package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ScanLock is a best-effort advisory lock around a dispatch pass. Concurrent
// server-side invocations skip the pass instead of overlapping; correctness
// does not depend on the lock (the conditional acknowledgment update does),
// it only avoids wasted duplicate work.
type ScanLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewScanLock(client *redis.Client, key string, ttl time.Duration) *ScanLock {
	return &ScanLock{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// TryAcquire attempts to take the lock. Returns false when another scan
// currently holds it.
func (l *ScanLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, time.Now().Unix(), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock. The TTL covers the case where the holder dies.
func (l *ScanLock) Release(ctx context.Context) error {
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("failed to release scan lock: %w", err)
	}
	return nil
}
