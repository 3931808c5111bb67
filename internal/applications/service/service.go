package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"nietos/internal/applications/metrics"
	"nietos/internal/applications/models"
	"nietos/internal/applications/secrets"
	id "nietos/pkg/domain"
	dErrors "nietos/pkg/domain-errors"
	audit "nietos/pkg/platform/audit"
	"nietos/pkg/platform/sentinel"
	"nietos/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	Delete(ctx context.Context, appID id.ApplicationID) error
	List(ctx context.Context, filter models.Filter) ([]*models.Application, error)
	Ping(ctx context.Context) error
}

type TokenHasher interface {
	Hash(token string) (string, error)
	Verify(token, hash string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the application record lifecycle. Reads are public; updates
// and deletes require the edit token issued at creation.
type Service struct {
	store          Store
	hasher         TokenHasher
	generateToken  func() (string, error)
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(s *Service)

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

func WithHasher(h TokenHasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithTokenGenerator replaces the edit token source.
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(s *Service) {
		s.generateToken = gen
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		hasher:        secrets.NewHasher(bcrypt.DefaultCost),
		generateToken: secrets.Generate,
		logger:        slog.Default(),
		tracer:        otel.Tracer("nietos/applications"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input, issues a fresh id and edit token, and stores the
// record. The returned token is the only copy the caller will ever see.
func (s *Service) Create(ctx context.Context, in models.CreateInput) (_ *models.Created, err error) {
	ctx, span := s.tracer.Start(ctx, "applications.Create")
	defer s.finish(span, "create", time.Now(), &err)

	draft, err := in.Draft()
	if err != nil {
		return nil, err
	}

	token, err := s.generateToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate edit token")
	}
	hash, err := s.hasher.Hash(token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash edit token")
	}

	// Use constructor which validates invariants
	app, err := models.NewApplication(id.NewApplicationID(), draft, hash, s.now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("application.id", app.ID.String()))

	if err := s.store.Create(ctx, app); err != nil {
		return nil, s.storeError(ctx, err, "create")
	}

	s.emit(ctx, audit.Event{Action: audit.EventApplicationCreated, Subject: app.ID.String()})
	if s.metrics != nil {
		s.metrics.ApplicationsCreated.Inc()
	}
	return &models.Created{Application: app, EditToken: token}, nil
}

// Get returns one record. The edit token is never part of it.
func (s *Service) Get(ctx context.Context, rawID string) (_ *models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "applications.Get")
	defer s.finish(span, "get", time.Now(), &err)

	appID, err := id.ParseApplicationID(rawID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("application.id", appID.String()))

	app, err := s.store.FindByID(ctx, appID)
	if err != nil {
		return nil, s.storeError(ctx, err, "get")
	}
	return app, nil
}

// List returns the filtered records, newest first, with stats over exactly that set.
func (s *Service) List(ctx context.Context, q models.ListQuery) (_ *models.Listing, err error) {
	ctx, span := s.tracer.Start(ctx, "applications.List")
	defer s.finish(span, "list", time.Now(), &err)

	filter, err := q.Filter()
	if err != nil {
		return nil, err
	}
	if !filter.IsZero() {
		span.SetAttributes(
			attribute.String("filter.from", filter.From.String()),
			attribute.String("filter.to", filter.To.String()),
		)
	}

	apps, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, s.storeError(ctx, err, "list")
	}
	if apps == nil {
		apps = []*models.Application{}
	}
	if s.metrics != nil {
		s.metrics.ListResultSize.Observe(float64(len(apps)))
	}
	return &models.Listing{Stats: models.Summarize(apps), Applications: apps}, nil
}

// Update applies patch after checking token. Checks run in order: token
// present, id well formed, record exists, token matches.
func (s *Service) Update(ctx context.Context, rawID, token string, patch models.Patch) (_ *models.Application, err error) {
	ctx, span := s.tracer.Start(ctx, "applications.Update")
	defer s.finish(span, "update", time.Now(), &err)

	app, err := s.authorize(ctx, rawID, token)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("application.id", app.ID.String()))

	next, err := patch.ApplyTo(app, s.now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, next); err != nil {
		return nil, s.storeError(ctx, err, "update")
	}

	s.emit(ctx, audit.Event{Action: audit.EventApplicationUpdated, Subject: next.ID.String(), Fields: patch.Fields()})
	if s.metrics != nil {
		s.metrics.ApplicationsUpdated.Inc()
	}
	return next, nil
}

// Delete removes the record permanently once token is verified.
func (s *Service) Delete(ctx context.Context, rawID, token string) (err error) {
	ctx, span := s.tracer.Start(ctx, "applications.Delete")
	defer s.finish(span, "delete", time.Now(), &err)

	app, err := s.authorize(ctx, rawID, token)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("application.id", app.ID.String()))

	if err := s.store.Delete(ctx, app.ID); err != nil {
		return s.storeError(ctx, err, "delete")
	}

	s.emit(ctx, audit.Event{Action: audit.EventApplicationDeleted, Subject: app.ID.String()})
	if s.metrics != nil {
		s.metrics.ApplicationsDeleted.Inc()
	}
	return nil
}

// Ping reports whether the record store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "record store unavailable")
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, rawID, token string) (*models.Application, error) {
	if token == "" {
		subject := ""
		if appID, err := id.ParseApplicationID(rawID); err == nil {
			subject = appID.String()
		}
		s.rejectToken(ctx, subject, "missing")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "edit token is required")
	}

	appID, err := id.ParseApplicationID(rawID)
	if err != nil {
		return nil, err
	}

	app, err := s.store.FindByID(ctx, appID)
	if err != nil {
		return nil, s.storeError(ctx, err, "authorize")
	}

	if err := s.hasher.Verify(token, app.EditTokenHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			s.rejectToken(ctx, app.ID.String(), "mismatch")
			return nil, dErrors.New(dErrors.CodeForbidden, "edit token does not match this application")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify edit token")
	}
	return app, nil
}

func (s *Service) rejectToken(ctx context.Context, subject, reason string) {
	s.emit(ctx, audit.Event{Action: audit.EventEditTokenRejected, Subject: subject, Reason: reason})
	if s.metrics != nil {
		s.metrics.TokenRejections.WithLabelValues(reason).Inc()
	}
}

// storeError translates store facts into domain errors.
func (s *Service) storeError(ctx context.Context, err error, op string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "application not found")
	}
	s.logger.ErrorContext(ctx, "record store failure",
		"operation", op,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "record store unavailable")
}

// emit publishes an audit event. Audit failures never fail the operation.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(event.Action),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

func (s *Service) finish(span trace.Span, op string, start time.Time, errp *error) {
	if err := *errp; err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
}

func (s *Service) now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC()
}
