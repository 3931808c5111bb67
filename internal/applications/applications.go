// Package applications wires the record lifecycle: service, HTTP handler and
// the store selected by configuration.
package applications

import (
	"log/slog"

	"nietos/internal/applications/handler"
	"nietos/internal/applications/service"
)

// Service exposes the application record lifecycle.
type Service = service.Service

// Handler wires HTTP endpoints to the application service.
type Handler = handler.Handler

// NewService constructs the application service on top of store.
func NewService(store service.Store, opts ...service.Option) *Service {
	return service.New(store, opts...)
}

// NewHandler constructs the HTTP handler for the public /applications routes.
func NewHandler(s *Service, logger *slog.Logger, opts ...handler.Option) *Handler {
	return handler.New(s, logger, opts...)
}
