// Package bucket holds sliding-window request counters keyed by client.
package bucket

import (
	"context"
	"time"

	"nietos/internal/ratelimit/models"
)

// BucketStore counts requests per key over a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	AllowN(ctx context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
	GetCurrentCount(ctx context.Context, key string) (int, error)
}

var (
	_ BucketStore = (*InMemoryBucketStore)(nil)
	_ BucketStore = (*RedisBucketStore)(nil)
)
