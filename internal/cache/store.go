package cache

import (
	"context"
	"time"
)

// Store is the application key-value store. It stands in for the device
// key-value storage of the mobile client: theme preference, push token, the
// daily-summary flag, and the notification log all live behind this interface.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
