package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"nietos/internal/applications/metrics"
	"nietos/internal/applications/models"
	"nietos/internal/applications/secrets"
	"nietos/internal/applications/store"
	id "nietos/pkg/domain"
	dErrors "nietos/pkg/domain-errors"
	audit "nietos/pkg/platform/audit"
	"nietos/pkg/platform/audit/publisher"
	auditmemory "nietos/pkg/platform/audit/store/memory"
	"nietos/pkg/platform/sentinel"
	"nietos/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	audit   *auditmemory.InMemoryStore
	metrics *metrics.Metrics
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.service = New(s.store,
		WithHasher(secrets.NewHasher(bcrypt.MinCost)),
		WithLogger(logger),
		WithMetrics(s.metrics),
		WithAuditPublisher(publisher.NewPublisher(publisher.WithSink(s.audit), publisher.WithLogger(logger))),
	)
	s.now = time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) create(first, date string) *models.Created {
	created, err := s.service.Create(s.ctx, models.CreateInput{FirstName: first, ProcedureDate: date})
	s.Require().NoError(err)
	return created
}

func (s *ServiceSuite) TestCreate() {
	s.Run("returns record with token and defaults", func() {
		created := s.create("Ana", "2024-03-10")
		s.False(created.ID.IsNil())
		s.NotEmpty(created.EditToken)
		s.NotEqual(created.EditToken, created.EditTokenHash)
		s.False(created.ConfirmationEmailReceived)
		s.False(created.AdditionalDocumentationRequested)
		s.False(created.ResolutionReceived)
		s.Equal(s.now, created.CreatedAt)
		s.Equal(s.now, created.UpdatedAt)
		s.Equal("2024-03-10", created.ProcedureDate.String())
		s.Len(s.audit.ListByAction(audit.EventApplicationCreated), 1)
	})

	s.Run("keeps provided flags", func() {
		created, err := s.service.Create(s.ctx, models.CreateInput{
			FirstName: "Luis", LastName: "Pérez", ProcedureDate: "2024-01-05",
			ConfirmationEmailReceived: true, ResolutionReceived: true,
		})
		s.Require().NoError(err)
		s.True(created.ConfirmationEmailReceived)
		s.True(created.ResolutionReceived)
		s.Equal("Pérez", created.LastName)
	})

	s.Run("validation errors", func() {
		for _, in := range []models.CreateInput{
			{ProcedureDate: "2024-03-10"},
			{FirstName: "  ", ProcedureDate: "2024-03-10"},
			{FirstName: "Ana"},
			{FirstName: "Ana", ProcedureDate: "not a date"},
		} {
			_, err := s.service.Create(s.ctx, in)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "input %+v: %v", in, err)
		}
	})

	s.Run("ids and tokens are never reused", func() {
		ids := map[id.ApplicationID]struct{}{}
		tokens := map[string]struct{}{}
		for i := range 100 {
			created := s.create(fmt.Sprintf("N%d", i), "2024-03-10")
			_, dupID := ids[created.ID]
			_, dupTok := tokens[created.EditToken]
			s.Require().False(dupID)
			s.Require().False(dupTok)
			ids[created.ID] = struct{}{}
			tokens[created.EditToken] = struct{}{}
		}
	})
}

func (s *ServiceSuite) TestGet() {
	created := s.create("Ana", "2024-03-10")

	s.Run("round trip equals created record", func() {
		got, err := s.service.Get(s.ctx, created.ID.String())
		s.Require().NoError(err)
		s.Equal(created.Application, got)
	})

	s.Run("malformed id", func() {
		_, err := s.service.Get(s.ctx, "not-a-uuid")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidID))
	})

	s.Run("unknown id", func() {
		_, err := s.service.Get(s.ctx, id.NewApplicationID().String())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListStats() {
	before, err := s.service.List(s.ctx, models.ListQuery{})
	s.Require().NoError(err)

	s.create("Ana", "2024-03-10")

	after, err := s.service.List(s.ctx, models.ListQuery{})
	s.Require().NoError(err)
	s.Equal(before.Stats.Total+1, after.Stats.Total)
	s.Equal(before.Stats.Pending+1, after.Stats.Pending)
	s.Equal(before.Stats.Resolved, after.Stats.Resolved)
}

func (s *ServiceSuite) TestListMonthBoundaries() {
	march31 := s.create("Marzo", "2024-03-31")
	s.create("Abril", "2024-04-01")

	listing, err := s.service.List(s.ctx, models.ListQuery{Month: "2024-03"})
	s.Require().NoError(err)
	s.Require().Len(listing.Applications, 1)
	s.Equal(march31.ID, listing.Applications[0].ID)
	s.Equal(1, listing.Stats.Total)
}

func (s *ServiceSuite) TestListFilterPrecedenceAndErrors() {
	s.create("Enero", "2024-01-15")
	s.create("Marzo", "2024-03-15")

	listing, err := s.service.List(s.ctx, models.ListQuery{StartDate: "2024-01-01", EndDate: "2024-01-31", Month: "2024-03"})
	s.Require().NoError(err)
	s.Require().Len(listing.Applications, 1)
	s.Equal("Enero", listing.Applications[0].FirstName)

	_, err = s.service.List(s.ctx, models.ListQuery{Month: "March"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestListInvariantPendingPlusResolved() {
	flags := []bool{true, false, false, true, false}
	for i, resolved := range flags {
		_, err := s.service.Create(s.ctx, models.CreateInput{
			FirstName:          fmt.Sprintf("N%d", i),
			ProcedureDate:      fmt.Sprintf("2024-0%d-10", i+1),
			ResolutionReceived: resolved,
		})
		s.Require().NoError(err)
	}
	for _, q := range []models.ListQuery{{}, {Month: "2024-01"}, {StartDate: "2024-02-01", EndDate: "2024-04-30"}, {Month: "1990-01"}} {
		listing, err := s.service.List(s.ctx, q)
		s.Require().NoError(err)
		s.Equal(listing.Stats.Total, listing.Stats.Pending+listing.Stats.Resolved, "query %+v", q)
		s.Equal(len(listing.Applications), listing.Stats.Total)
		s.NotNil(listing.Applications)
	}
}

func (s *ServiceSuite) TestListOrderNewestFirst() {
	first := s.create("Primero", "2024-03-10")
	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
	second, err := s.service.Create(later, models.CreateInput{FirstName: "Segundo", ProcedureDate: "2024-01-01"})
	s.Require().NoError(err)

	listing, err := s.service.List(s.ctx, models.ListQuery{})
	s.Require().NoError(err)
	s.Require().Len(listing.Applications, 2)
	s.Equal(second.ID, listing.Applications[0].ID)
	s.Equal(first.ID, listing.Applications[1].ID)
}

func (s *ServiceSuite) TestUpdateAuthorization() {
	created := s.create("Ana", "2024-03-10")
	rawID := created.ID.String()
	name := "X"
	patch := models.Patch{FirstName: &name}

	s.Run("absent token is unauthorized and leaves record unchanged", func() {
		_, err := s.service.Update(s.ctx, rawID, "", patch)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.assertFirstName(rawID, "Ana")
	})

	s.Run("wrong token is forbidden and leaves record unchanged", func() {
		_, err := s.service.Update(s.ctx, rawID, "wrong-token", patch)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.assertFirstName(rawID, "Ana")
	})

	s.Run("token of another record is forbidden", func() {
		other := s.create("Otra", "2024-03-11")
		_, err := s.service.Update(s.ctx, rawID, other.EditToken, patch)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("absent token wins over malformed id", func() {
		_, err := s.service.Update(s.ctx, "garbage", "", patch)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("malformed id with token", func() {
		_, err := s.service.Update(s.ctx, "garbage", created.EditToken, patch)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidID))
	})

	s.Run("unknown id", func() {
		_, err := s.service.Update(s.ctx, id.NewApplicationID().String(), created.EditToken, patch)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejections are audited and counted", func() {
		s.NotEmpty(s.audit.ListByAction(audit.EventEditTokenRejected))
		s.Equal(2.0, promtestutil.ToFloat64(s.metrics.TokenRejections.WithLabelValues("missing")))
		s.Equal(2.0, promtestutil.ToFloat64(s.metrics.TokenRejections.WithLabelValues("mismatch")))
	})

	s.Run("correct token succeeds", func() {
		later := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
		resolved := true
		updated, err := s.service.Update(later, rawID, created.EditToken, models.Patch{FirstName: &name, ResolutionReceived: &resolved})
		s.Require().NoError(err)
		s.Equal("X", updated.FirstName)
		s.True(updated.ResolutionReceived)
		s.Equal(created.CreatedAt, updated.CreatedAt)
		s.Equal(s.now.Add(time.Minute), updated.UpdatedAt)
		s.assertFirstName(rawID, "X")

		events := s.audit.ListByAction(audit.EventApplicationUpdated)
		s.Require().Len(events, 1)
		s.Equal([]string{"firstName", "resolutionReceived"}, events[0].Fields)
	})

	s.Run("token keeps working after update", func() {
		lastName := "García"
		_, err := s.service.Update(s.ctx, rawID, created.EditToken, models.Patch{LastName: &lastName})
		s.NoError(err)
	})

	s.Run("blanking first name is a validation error", func() {
		blank := "  "
		_, err := s.service.Update(s.ctx, rawID, created.EditToken, models.Patch{FirstName: &blank})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.assertFirstName(rawID, "X")
	})
}

func (s *ServiceSuite) TestDelete() {
	created := s.create("Ana", "2024-03-10")
	rawID := created.ID.String()

	s.Run("absent token", func() {
		err := s.service.Delete(s.ctx, rawID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("wrong token keeps the record", func() {
		err := s.service.Delete(s.ctx, rawID, created.EditToken+"x")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		_, err = s.service.Get(s.ctx, rawID)
		s.NoError(err)
	})

	s.Run("correct token removes permanently", func() {
		s.Require().NoError(s.service.Delete(s.ctx, rawID, created.EditToken))
		_, err := s.service.Get(s.ctx, rawID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Len(s.audit.ListByAction(audit.EventApplicationDeleted), 1)
	})

	s.Run("second delete is not found", func() {
		err := s.service.Delete(s.ctx, rawID, created.EditToken)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestConcurrentUpdatesLastWriteWins() {
	created := s.create("Ana", "2024-03-10")
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("Writer%d", i)
			_, err := s.service.Update(s.ctx, created.ID.String(), created.EditToken, models.Patch{FirstName: &name})
			s.NoError(err)
		}()
	}
	wg.Wait()

	got, err := s.service.Get(s.ctx, created.ID.String())
	s.Require().NoError(err)
	s.Contains(got.FirstName, "Writer")
}

func (s *ServiceSuite) assertFirstName(rawID, want string) {
	s.T().Helper()
	got, err := s.service.Get(s.ctx, rawID)
	s.Require().NoError(err)
	s.Equal(want, got.FirstName)
}

// unavailableStore fails every call the way an unreachable database would.
type unavailableStore struct{}

var errDown = fmt.Errorf("%w: connection refused", sentinel.ErrUnavailable)

func (unavailableStore) Create(context.Context, *models.Application) error { return errDown }
func (unavailableStore) FindByID(context.Context, id.ApplicationID) (*models.Application, error) {
	return nil, errDown
}
func (unavailableStore) Update(context.Context, *models.Application) error { return errDown }
func (unavailableStore) Delete(context.Context, id.ApplicationID) error    { return errDown }
func (unavailableStore) List(context.Context, models.Filter) ([]*models.Application, error) {
	return nil, errDown
}
func (unavailableStore) Ping(context.Context) error { return errDown }

func TestServiceStoreUnavailable(t *testing.T) {
	svc := New(unavailableStore{},
		WithHasher(secrets.NewHasher(bcrypt.MinCost)),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	ctx := context.Background()
	appID := id.NewApplicationID().String()

	_, err := svc.Create(ctx, models.CreateInput{FirstName: "Ana", ProcedureDate: "2024-03-10"})
	assertCode(t, err, dErrors.CodeStoreUnavailable)

	_, err = svc.Get(ctx, appID)
	assertCode(t, err, dErrors.CodeStoreUnavailable)

	_, err = svc.List(ctx, models.ListQuery{})
	assertCode(t, err, dErrors.CodeStoreUnavailable)

	_, err = svc.Update(ctx, appID, "tok", models.Patch{})
	assertCode(t, err, dErrors.CodeStoreUnavailable)

	assertCode(t, svc.Delete(ctx, appID, "tok"), dErrors.CodeStoreUnavailable)
	assertCode(t, svc.Ping(ctx), dErrors.CodeStoreUnavailable)

	if !errors.Is(err, sentinel.ErrUnavailable) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
}

func TestServiceTokenGenerationFailure(t *testing.T) {
	svc := New(store.NewInMemory(),
		WithTokenGenerator(func() (string, error) { return "", errors.New("entropy exhausted") }),
	)
	_, err := svc.Create(context.Background(), models.CreateInput{FirstName: "Ana", ProcedureDate: "2024-03-10"})
	assertCode(t, err, dErrors.CodeInternal)
}

func assertCode(t *testing.T, err error, code dErrors.Code) {
	t.Helper()
	if !dErrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}
