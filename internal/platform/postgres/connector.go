// Package postgres opens the PostgreSQL handle used by the record store.
//
// The handle is created lazily on first use and at most once per process.
// Concurrent first callers share a single connection attempt; a failed attempt
// is not remembered, so the next caller tries again.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"golang.org/x/sync/singleflight"

	"nietos/internal/platform/config"
)

// ErrNotConfigured is returned when no database URL was provided.
var ErrNotConfigured = errors.New("postgres: database url not configured")

// Opener creates a ready-to-use handle. Swappable for tests.
type Opener func(ctx context.Context) (*sql.DB, error)

// Connector hands out the shared *sql.DB, connecting on first use.
type Connector struct {
	cfg        config.DatabaseConfig
	logger     *slog.Logger
	migrations fs.FS
	open       Opener

	group singleflight.Group
	mu    sync.RWMutex
	db    *sql.DB
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger used for connection lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithMigrations runs the goose migrations in fsys (rooted at ".") after connecting.
func WithMigrations(fsys fs.FS) Option {
	return func(c *Connector) {
		c.migrations = fsys
	}
}

// WithOpener replaces the pgx opener.
func WithOpener(open Opener) Option {
	return func(c *Connector) {
		c.open = open
	}
}

// NewConnector builds a Connector without touching the network.
func NewConnector(cfg config.DatabaseConfig, opts ...Option) *Connector {
	c := &Connector{cfg: cfg, logger: slog.Default()}
	c.open = c.openPgx
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DB returns the shared handle, connecting if this is the first successful call.
func (c *Connector) DB(ctx context.Context) (*sql.DB, error) {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	v, err, _ := c.group.Do("connect", func() (any, error) {
		c.mu.RLock()
		existing := c.db
		c.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		// Detached from the first caller's cancellation; the attempt is shared.
		connectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.connectBudget())
		defer cancel()

		opened, err := c.open(connectCtx)
		if err != nil {
			c.logger.WarnContext(ctx, "postgres connect failed", "error", err)
			return nil, err
		}
		if c.migrations != nil {
			if err := migrate(connectCtx, opened, c.migrations); err != nil {
				_ = opened.Close()
				c.logger.ErrorContext(ctx, "postgres migrations failed", "error", err)
				return nil, err
			}
		}

		c.mu.Lock()
		c.db = opened
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "postgres connected")
		return opened, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

// Ping connects if needed and checks the handle.
func (c *Connector) Ping(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close releases the handle if one was opened.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// connectBudget bounds a shared connect attempt. Migrations run inside the
// same budget, so it is a multiple of the dial timeout.
func (c *Connector) connectBudget() time.Duration {
	timeout := c.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = config.DefaultConnectTimeout
	}
	return 3 * timeout
}

func (c *Connector) openPgx(ctx context.Context) (*sql.DB, error) {
	if c.cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	pgxCfg, err := pgx.ParseConfig(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if c.cfg.ConnectTimeout > 0 {
		pgxCfg.ConnectTimeout = c.cfg.ConnectTimeout
	}
	if c.cfg.StatementTimeout > 0 {
		if pgxCfg.RuntimeParams == nil {
			pgxCfg.RuntimeParams = map[string]string{}
		}
		pgxCfg.RuntimeParams["statement_timeout"] = strconv.FormatInt(c.cfg.StatementTimeout.Milliseconds(), 10)
	}

	db := stdlib.OpenDB(*pgxCfg)
	if c.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.cfg.MaxOpenConns)
		db.SetMaxIdleConns(c.cfg.MaxOpenConns)
	}
	if c.cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(c.cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

var gooseMu sync.Mutex

// migrate applies pending goose migrations. goose keeps its FS and dialect in
// package state, hence the lock.
func migrate(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
