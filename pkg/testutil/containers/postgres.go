//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"nietos/internal/applications/store"
	"nietos/internal/platform/config"
	"nietos/internal/platform/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// application schema already migrated.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	Connector *postgres.Connector
	DB        *sql.DB
}

// NewPostgresContainer starts PostgreSQL and applies migrations through the
// same connector the server uses.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("nietos"),
		tcpostgres.WithUsername("nietos"),
		tcpostgres.WithPassword("nietos"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	connector := postgres.NewConnector(config.DatabaseConfig{
		URL:              url,
		ConnectTimeout:   10 * time.Second,
		StatementTimeout: 5 * time.Second,
		MaxOpenConns:     10,
	}, postgres.WithMigrations(store.Migrations()))

	db, err := connector.DB(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	// Ryuk removes the container when the test binary exits.
	return &PostgresContainer{
		Container: container,
		URL:       url,
		Connector: connector,
		DB:        db,
	}
}

// TruncateTables empties the given tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s", strings.Join(tables, ", ")))
	return err
}
