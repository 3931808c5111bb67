// Package requestlimit decides whether a client may make another request of a
// given endpoint class.
package requestlimit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nietos/internal/platform/config"
	"nietos/internal/ratelimit/metrics"
	"nietos/internal/ratelimit/models"
	"nietos/internal/ratelimit/store/bucket"
	dErrors "nietos/pkg/domain-errors"
	audit "nietos/pkg/platform/audit"
	"nietos/pkg/platform/middleware/metadata"
	"nietos/pkg/requestcontext"
)

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type limit struct {
	requests int
	window   time.Duration
}

type Service struct {
	buckets        bucket.BucketStore
	limits         map[models.EndpointClass]limit
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLimits replaces the per-class budgets.
func WithLimits(cfg config.RateLimitConfig) Option {
	return func(s *Service) {
		s.limits = limitsFrom(cfg)
	}
}

func New(buckets bucket.BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}
	svc := &Service{
		buckets: buckets,
		limits: limitsFrom(config.RateLimitConfig{
			WritePerMinute: config.DefaultWritePerMinute,
			ReadPerMinute:  config.DefaultReadPerMinute,
			Window:         time.Minute,
		}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func limitsFrom(cfg config.RateLimitConfig) map[models.EndpointClass]limit {
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return map[models.EndpointClass]limit{
		models.ClassRead:  {requests: cfg.ReadPerMinute, window: window},
		models.ClassWrite: {requests: cfg.WritePerMinute, window: window},
	}
}

// CheckIP consumes one request from the client's budget for class.
// Classes without a configured budget are denied.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	l, ok := s.limits[class]
	if !ok || l.requests <= 0 {
		s.logger.WarnContext(ctx, "rate limit config missing",
			"endpoint_class", class,
			"request_id", requestcontext.RequestID(ctx),
		)
		return &models.RateLimitResult{
			Allowed:    false,
			ResetAt:    requestcontext.Now(ctx),
			RetryAfter: 60,
		}, nil
	}

	key := models.NewRateLimitKey(models.KeyPrefixIP, ip, class)
	result, err := s.buckets.Allow(ctx, key.String(), l.requests, l.window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}
	if s.metrics != nil {
		s.metrics.RecordCheck(string(class), result.Allowed)
	}

	if !result.Allowed {
		s.logger.WarnContext(ctx, "rate limit exceeded",
			"ip_prefix", metadata.AnonymizeIP(ip),
			"endpoint_class", class,
			"limit", l.requests,
			"window_seconds", int(l.window.Seconds()),
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.auditPublisher != nil {
			if err := s.auditPublisher.Emit(ctx, audit.Event{
				Action: audit.EventRateLimitExceeded,
				Reason: string(class),
			}); err != nil {
				s.logger.ErrorContext(ctx, "failed to emit audit event", "error", err, "event", audit.EventRateLimitExceeded)
			}
		}
	}
	return result, nil
}
