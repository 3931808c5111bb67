package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"nietos/internal/applications/models"
	id "nietos/pkg/domain"
	"nietos/pkg/platform/sentinel"
)

// Handle yields the shared database handle, connecting lazily if needed.
type Handle interface {
	DB(ctx context.Context) (*sql.DB, error)
}

type fixedHandle struct{ db *sql.DB }

func (h fixedHandle) DB(context.Context) (*sql.DB, error) { return h.db, nil }

// Fixed wraps an already open handle.
func Fixed(db *sql.DB) Handle { return fixedHandle{db: db} }

// Postgres persists applications in the applications table.
type Postgres struct {
	handle Handle
}

func NewPostgres(handle Handle) *Postgres {
	return &Postgres{handle: handle}
}

const applicationColumns = `id, first_name, last_name, procedure_date,
	confirmation_email_received, additional_documentation_requested, resolution_received,
	edit_token_hash, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, app *models.Application) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		app.ID.String(), app.FirstName, app.LastName, app.ProcedureDate.Time(),
		app.ConfirmationEmailReceived, app.AdditionalDocumentationRequested, app.ResolutionReceived,
		app.EditTokenHash, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return classify("create application", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, appID.String())
	app, err := scanApplication(row)
	if err != nil {
		return nil, classify("find application", err)
	}
	return app, nil
}

// Update overwrites the mutable columns. The token hash and created_at are never written.
func (s *Postgres) Update(ctx context.Context, app *models.Application) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `UPDATE applications SET
		first_name = $2, last_name = $3, procedure_date = $4,
		confirmation_email_received = $5, additional_documentation_requested = $6,
		resolution_received = $7, updated_at = $8
		WHERE id = $1`,
		app.ID.String(), app.FirstName, app.LastName, app.ProcedureDate.Time(),
		app.ConfirmationEmailReceived, app.AdditionalDocumentationRequested, app.ResolutionReceived,
		app.UpdatedAt,
	)
	if err != nil {
		return classify("update application", err)
	}
	return expectOneRow(res, "update application")
}

func (s *Postgres) Delete(ctx context.Context, appID id.ApplicationID) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, appID.String())
	if err != nil {
		return classify("delete application", err)
	}
	return expectOneRow(res, "delete application")
}

func (s *Postgres) List(ctx context.Context, filter models.Filter) ([]*models.Application, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + applicationColumns + ` FROM applications`)
	var args []any
	if !filter.IsZero() {
		b.WriteString(` WHERE procedure_date BETWEEN $1 AND $2`)
		args = append(args, filter.From.Time(), filter.To.Time())
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC`)

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, classify("list applications", err)
	}
	defer rows.Close()

	apps := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, classify("scan application", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list applications", err)
	}
	return apps, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

func (s *Postgres) db(ctx context.Context) (*sql.DB, error) {
	db, err := s.handle.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", sentinel.ErrUnavailable, err)
	}
	return db, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*models.Application, error) {
	var (
		rawID         string
		procedureDate time.Time
		app           models.Application
	)
	if err := row.Scan(
		&rawID, &app.FirstName, &app.LastName, &procedureDate,
		&app.ConfirmationEmailReceived, &app.AdditionalDocumentationRequested, &app.ResolutionReceived,
		&app.EditTokenHash, &app.CreatedAt, &app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appID, err := id.ParseApplicationID(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored id %q: %w", rawID, err)
	}
	app.ID = appID
	app.ProcedureDate = models.DateOf(procedureDate)
	app.CreatedAt = app.CreatedAt.UTC()
	app.UpdatedAt = app.UpdatedAt.UTC()
	return &app, nil
}

func expectOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// classify maps driver errors onto sentinel facts the service understands.
func classify(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %s: %w", sentinel.ErrUnavailable, op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s: %w", sentinel.ErrConflict, op, err)
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57014", pgErr.Code == "57P01", pgErr.Code == "53300":
			// connection exception, statement timeout, admin shutdown, too many connections
			return fmt.Errorf("%w: %s: %w", sentinel.ErrUnavailable, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %s: %w", sentinel.ErrUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
