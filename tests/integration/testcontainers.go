// Package integration runs the service stack against a real PostgreSQL
// instance. These tests require Docker.
//
// Usage:
//
//	go test ./tests/integration/
//
// One container is started for the whole package and torn down when the
// last test finishes.
package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/coinview/backend/internal/db"
)

// suiteDB is the shared container and connection for the package.
type suiteDB struct {
	Container testcontainers.Container
	Database  *db.DB
}

var suiteContainer *suiteDB

// setupWithContext starts a PostgreSQL container, connects through GORM and
// applies the schema.
func setupWithContext(ctx context.Context) (*suiteDB, error) {
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("coinview_test"),
		postgres.WithUsername("coinview_user"),
		postgres.WithPassword("coinview_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	gdb, err := gorm.Open(gormPostgres.New(gormPostgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	database := &db.DB{DB: gdb}
	if err := database.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &suiteDB{Container: pgContainer, Database: database}, nil
}
