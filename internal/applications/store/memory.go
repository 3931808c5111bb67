package store

import (
	"context"
	"sort"
	"sync"

	"nietos/internal/applications/models"
	id "nietos/pkg/domain"
	"nietos/pkg/platform/sentinel"
)

// InMemory is a process-local record store for development and tests.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.ApplicationID]*entry
	seq     uint64
}

type entry struct {
	app *models.Application
	seq uint64
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.ApplicationID]*entry)}
}

func (s *InMemory) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[app.ID]; exists {
		return sentinel.ErrConflict
	}
	s.seq++
	s.records[app.ID] = &entry{app: app.Clone(), seq: s.seq}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.records[appID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.app.Clone(), nil
}

// Update replaces the mutable fields of an existing record. Last write wins.
func (s *InMemory) Update(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[app.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := app.Clone()
	next.EditTokenHash = e.app.EditTokenHash
	next.CreatedAt = e.app.CreatedAt
	e.app = next
	return nil
}

func (s *InMemory) Delete(_ context.Context, appID id.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[appID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, appID)
	return nil
}

// List returns matching records, newest first.
func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Application, error) {
	s.mu.RLock()
	matched := make([]*entry, 0, len(s.records))
	for _, e := range s.records {
		if filter.Matches(e.app.ProcedureDate) {
			matched = append(matched, &entry{app: e.app.Clone(), seq: e.seq})
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.app.CreatedAt.Equal(b.app.CreatedAt) {
			return a.app.CreatedAt.After(b.app.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]*models.Application, len(matched))
	for i, e := range matched {
		out[i] = e.app
	}
	return out, nil
}

func (s *InMemory) Ping(context.Context) error { return nil }
