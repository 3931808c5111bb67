package bucket

import (
	"context"
	"log/slog"
	"time"

	"nietos/internal/ratelimit/models"
	"nietos/pkg/platform/circuit"
)

// FallbackBucketStore counts against primary and switches to a local store
// once primary has failed enough times in a row. Limits are per process while
// the circuit is open, which is preferable to not limiting at all.
type FallbackBucketStore struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackBucketStore(primary, fallback BucketStore, breaker *circuit.Breaker, logger *slog.Logger) *FallbackBucketStore {
	return &FallbackBucketStore{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
	}
}

func (s *FallbackBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

func (s *FallbackBucketStore) AllowN(ctx context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error) {
	result, err := s.primary.AllowN(ctx, key, cost, limit, window)
	if err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "rate limit store recovered, leaving fallback", "breaker", s.breaker.Name())
		}
		return result, nil
	}

	useFallback, change := s.breaker.RecordFailure()
	if change.Opened {
		s.logger.WarnContext(ctx, "rate limit store failing, switching to in-memory fallback",
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
	if !useFallback {
		return nil, err
	}
	return s.fallback.AllowN(ctx, key, cost, limit, window)
}

func (s *FallbackBucketStore) Reset(ctx context.Context, key string) error {
	_ = s.fallback.Reset(ctx, key)
	return s.primary.Reset(ctx, key)
}

func (s *FallbackBucketStore) GetCurrentCount(ctx context.Context, key string) (int, error) {
	if s.breaker.IsOpen() {
		return s.fallback.GetCurrentCount(ctx, key)
	}
	return s.primary.GetCurrentCount(ctx, key)
}
