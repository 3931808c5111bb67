package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"nietos/internal/applications/models"
	ratelimit "nietos/internal/ratelimit/models"
	dErrors "nietos/pkg/domain-errors"
	"nietos/pkg/platform/httputil"
	"nietos/pkg/requestcontext"
)

// Service defines the interface for application record operations.
type Service interface {
	Create(ctx context.Context, in models.CreateInput) (*models.Created, error)
	Get(ctx context.Context, rawID string) (*models.Application, error)
	List(ctx context.Context, q models.ListQuery) (*models.Listing, error)
	Update(ctx context.Context, rawID, token string, patch models.Patch) (*models.Application, error)
	Delete(ctx context.Context, rawID, token string) error
}

// RateLimiter yields the per-class request budget middleware.
type RateLimiter interface {
	RateLimit(class ratelimit.EndpointClass) func(http.Handler) http.Handler
}

// Handler serves the /applications endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	limiter RateLimiter
}

type Option func(*Handler)

// WithRateLimiter applies read and write budgets to the routes.
func WithRateLimiter(l RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// New creates a new applications Handler.
func New(service Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:  logger,
		service: service,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the application routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/applications", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			h.limit(r, ratelimit.ClassRead)
			r.Get("/", h.HandleList)
			r.Get("/{id}", h.HandleGet)
		})
		r.Group(func(r chi.Router) {
			h.limit(r, ratelimit.ClassWrite)
			r.Post("/", h.HandleCreate)
			r.Put("/{id}", h.HandleUpdate)
			r.Delete("/{id}", h.HandleDelete)
		})
	})
}

func (h *Handler) limit(r chi.Router, class ratelimit.EndpointClass) {
	if h.limiter != nil {
		r.Use(h.limiter.RateLimit(class))
	}
}

// HandleCreate stores a new record and returns it with its edit token.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateApplicationRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			err = dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		h.writeError(ctx, w, err, "invalid create application request")
		return
	}

	created, err := h.service.Create(ctx, req.Input())
	if err != nil {
		h.writeError(ctx, w, err, "failed to create application")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, &DataResponse{Success: true, Data: created})
}

// HandleList returns the filtered records with their summary.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	listing, err := h.service.List(ctx, models.ListQuery{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Month:     q.Get("month"),
	})
	if err != nil {
		h.writeError(ctx, w, err, "failed to list applications")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &ListResponse{
		Success:      true,
		Stats:        listing.Stats,
		Applications: listing.Applications,
	})
}

// HandleGet returns a single record. The edit token is never included.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	app, err := h.service.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err, "failed to get application")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &DataResponse{Success: true, Data: app})
}

// HandleUpdate applies a partial update when the caller presents the edit token.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req UpdateApplicationRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(ctx, w, err, "invalid update application request")
		return
	}

	app, err := h.service.Update(ctx, chi.URLParam(r, "id"), editToken(r, req.EditToken), req.Patch())
	if err != nil {
		h.writeError(ctx, w, err, "failed to update application")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &DataResponse{Success: true, Data: app})
}

// HandleDelete removes a record when the caller presents the edit token.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DeleteApplicationRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(ctx, w, err, "invalid delete application request")
		return
	}

	if err := h.service.Delete(ctx, chi.URLParam(r, "id"), editToken(r, req.EditToken)); err != nil {
		h.writeError(ctx, w, err, "failed to delete application")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &MessageResponse{Success: true, Message: DeletedMessage})
}

// editToken prefers the token in the body and falls back to a bearer header.
// Blank values count as absent; anything else is passed on unmodified so
// verification sees exactly what the client sent.
func editToken(r *http.Request, fromBody string) string {
	if strings.TrimSpace(fromBody) != "" {
		return fromBody
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return ""
	}
	return token
}

// writeError logs client errors at warn and server errors at error, then
// writes the envelope.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"status", status,
		"error", err.Error(),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
