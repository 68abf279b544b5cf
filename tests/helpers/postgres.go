// Package helpers provides container utilities for integration tests.
package helpers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/carcrawl/carcrawl/internal/storage"
)

const (
	postgresImage          = "postgres:16-alpine"
	postgresStartupTimeout = 60 * time.Second

	testDatabase = "carcrawl_test"
	testUser     = "carcrawl"
	testPassword = "carcrawl"
)

// PostgresContainer manages a throwaway PostgreSQL instance.
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	Host      string
	Port      string
}

// StartPostgres starts a PostgreSQL container for testing. The caller
// stops it with Stop().
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	pgContainer, err := postgres.Run(
		ctx,
		postgresImage,
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(postgresStartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	mappedPort, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &PostgresContainer{
		Container: pgContainer,
		Host:      host,
		Port:      mappedPort.Port(),
	}, nil
}

// Stop stops and removes the PostgreSQL container.
func (p *PostgresContainer) Stop(ctx context.Context) error {
	if p.Container == nil {
		return nil
	}
	return p.Container.Terminate(ctx)
}

// StorageConfig returns a storage configuration pointing at the container.
func (p *PostgresContainer) StorageConfig() storage.Config {
	return storage.Config{
		Host:     p.Host,
		Port:     p.Port,
		User:     testUser,
		Password: testPassword,
		DBName:   testDatabase,
		SSLMode:  "disable",
	}
}
