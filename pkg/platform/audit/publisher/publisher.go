// Package publisher fans audit events out to every configured sink.
package publisher

import (
	"context"
	"errors"
	"log/slog"

	audit "nietos/pkg/platform/audit"
	"nietos/pkg/platform/middleware/device"
	"nietos/pkg/platform/middleware/metadata"
	"nietos/pkg/requestcontext"
)

// Sink persists or forwards audit events.
type Sink interface {
	Write(ctx context.Context, event audit.Event) error
}

// Publisher enriches events with request metadata and writes them to its sinks.
// Every event is also written to the logger as a log_type=audit line.
type Publisher struct {
	logger *slog.Logger
	sinks  []Sink
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithSink adds a destination. Nil sinks are ignored.
func WithSink(s Sink) Option {
	return func(p *Publisher) {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
}

func NewPublisher(opts ...Option) *Publisher {
	p := &Publisher{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills in category, timestamp and request metadata, then writes the
// event everywhere. Sink failures are joined; every sink is attempted.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = enrich(ctx, event)

	p.logger.InfoContext(ctx, string(event.Action),
		"log_type", "audit",
		"event", string(event.Action),
		"category", string(event.Category),
		"subject", event.Subject,
		"request_id", event.RequestID,
		"client_network", event.ClientNetwork,
		"client", event.Client,
	)

	var errs []error
	for _, s := range p.sinks {
		if err := s.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func enrich(ctx context.Context, event audit.Event) audit.Event {
	if event.Category == "" {
		event.Category = event.Action.Category()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ClientNetwork == "" {
		event.ClientNetwork = metadata.AnonymizeIP(requestcontext.ClientIP(ctx))
	}
	if event.Client == "" {
		if ua := requestcontext.UserAgent(ctx); ua != "" {
			event.Client = device.Describe(ua).String()
		}
	}
	return event
}
