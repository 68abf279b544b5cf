package bootstrap

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/carcrawl/carcrawl/internal/config"
	"github.com/carcrawl/carcrawl/internal/storage"
)

// DatabaseComponents holds the database connection and all repositories.
type DatabaseComponents struct {
	DB       *sqlx.DB
	Runs     *storage.RunRepository
	URLs     *storage.URLRepository
	Listings *storage.PostgresGateway
}

// SetupDatabase connects to PostgreSQL, ensures the schema exists, and
// creates all repositories.
func SetupDatabase(ctx context.Context, cfg *config.DatabaseConfig) (*DatabaseComponents, error) {
	db, err := storage.NewPostgresConnection(storageConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := storage.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &DatabaseComponents{
		DB:       db,
		Runs:     storage.NewRunRepository(db),
		URLs:     storage.NewURLRepository(db),
		Listings: storage.NewPostgresGateway(db),
	}, nil
}

// Close releases the database connection.
func (d *DatabaseComponents) Close() error {
	return d.DB.Close()
}

func storageConfig(cfg *config.DatabaseConfig) storage.Config {
	return storage.Config{
		Host:     cfg.Host,
		Port:     strconv.Itoa(cfg.Port),
		User:     cfg.User,
		Password: cfg.Password,
		DBName:   cfg.Database,
		SSLMode:  cfg.SSLMode,
	}
}
