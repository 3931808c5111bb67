package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nietos/internal/applications/models"
	id "nietos/pkg/domain"
	"nietos/pkg/platform/sentinel"
)

var columns = []string{
	"id", "first_name", "last_name", "procedure_date",
	"confirmation_email_received", "additional_documentation_requested", "resolution_received",
	"edit_token_hash", "created_at", "updated_at",
}

func newPostgresWithMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgres(Fixed(db)), mock
}

func sampleApplication(t *testing.T) *models.Application {
	t.Helper()
	now := time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)
	app, err := models.NewApplication(id.NewApplicationID(), models.Draft{
		FirstName:     "Ana",
		ProcedureDate: models.NewDate(2024, time.March, 10),
	}, "$2a$04$hash", now)
	require.NoError(t, err)
	return app
}

func TestPostgresCreate(t *testing.T) {
	s, mock := newPostgresWithMock(t)
	app := sampleApplication(t)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+applications\s*\(id,\s*first_name,.*updated_at\)\s*VALUES\s*\(\$1,.*\$10\)$`).
		WithArgs(app.ID.String(), "Ana", "", app.ProcedureDate.Time(), false, false, false, "$2a$04$hash", app.CreatedAt, app.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), app))
}

func TestPostgresCreateDuplicateIsConflict(t *testing.T) {
	s, mock := newPostgresWithMock(t)
	app := sampleApplication(t)

	mock.ExpectExec(`INSERT INTO applications`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	err := s.Create(context.Background(), app)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestPostgresFindByID(t *testing.T) {
	app := sampleApplication(t)

	t.Run("found", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		rows := sqlmock.NewRows(columns).AddRow(
			app.ID.String(), "Ana", "", time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
			true, false, false, "$2a$04$hash", app.CreatedAt, app.UpdatedAt,
		)
		mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+applications\s+WHERE\s+id\s*=\s*\$1$`).
			WithArgs(app.ID.String()).
			WillReturnRows(rows)

		got, err := s.FindByID(context.Background(), app.ID)
		require.NoError(t, err)
		assert.Equal(t, app.ID, got.ID)
		assert.Equal(t, "2024-03-10", got.ProcedureDate.String())
		assert.True(t, got.ConfirmationEmailReceived)
		assert.Equal(t, "$2a$04$hash", got.EditTokenHash)
	})

	t.Run("missing row", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		mock.ExpectQuery(`FROM applications WHERE id`).
			WithArgs(app.ID.String()).
			WillReturnError(sql.ErrNoRows)

		_, err := s.FindByID(context.Background(), app.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("statement timeout is unavailable", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		mock.ExpectQuery(`FROM applications WHERE id`).
			WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"})

		_, err := s.FindByID(context.Background(), app.ID)
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})
}

func TestPostgresUpdate(t *testing.T) {
	app := sampleApplication(t)
	update := regexp.QuoteMeta(`UPDATE applications SET`)

	t.Run("writes mutable columns only", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		mock.ExpectExec(update).
			WithArgs(app.ID.String(), "Ana", "", app.ProcedureDate.Time(), false, false, false, app.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Update(context.Background(), app))
	})

	t.Run("no rows is not found", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.Update(context.Background(), app), sentinel.ErrNotFound)
	})
}

func TestPostgresDelete(t *testing.T) {
	app := sampleApplication(t)
	del := regexp.QuoteMeta(`DELETE FROM applications WHERE id = $1`)

	t.Run("deletes", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		mock.ExpectExec(del).WithArgs(app.ID.String()).WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, s.Delete(context.Background(), app.ID))
	})

	t.Run("unknown", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		mock.ExpectExec(del).WithArgs(app.ID.String()).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, s.Delete(context.Background(), app.ID), sentinel.ErrNotFound)
	})
}

func TestPostgresList(t *testing.T) {
	app := sampleApplication(t)
	row := func() *sqlmock.Rows {
		return sqlmock.NewRows(columns).AddRow(
			app.ID.String(), "Ana", "", time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
			false, false, false, "h", app.CreatedAt, app.UpdatedAt,
		)
	}

	t.Run("unfiltered", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		mock.ExpectQuery(`(?s)FROM applications ORDER BY created_at DESC, id DESC$`).
			WillReturnRows(row())

		got, err := s.List(context.Background(), models.Filter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, app.ID, got[0].ID)
	})

	t.Run("month filter binds inclusive bounds", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		f, err := models.MonthFilter("2024-03")
		require.NoError(t, err)

		mock.ExpectQuery(`(?s)WHERE procedure_date BETWEEN \$1 AND \$2 ORDER BY created_at DESC`).
			WithArgs(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)).
			WillReturnRows(sqlmock.NewRows(columns))

		got, err := s.List(context.Background(), f)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("query failure", func(t *testing.T) {
		s, mock := newPostgresWithMock(t)
		mock.ExpectQuery(`FROM applications`).WillReturnError(errors.New("boom"))

		_, err := s.List(context.Background(), models.Filter{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list applications")
	})
}

type failingHandle struct{}

func (failingHandle) DB(context.Context) (*sql.DB, error) {
	return nil, errors.New("connection refused")
}

func TestPostgresConnectFailureIsUnavailable(t *testing.T) {
	s := NewPostgres(failingHandle{})
	_, err := s.FindByID(context.Background(), id.NewApplicationID())
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.ErrorIs(t, s.Ping(context.Background()), sentinel.ErrUnavailable)
}
