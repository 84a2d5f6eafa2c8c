// Package postgres implements an optional, query-able secondary mirror
// of every classify decision bundle and acquire/screen run summary,
// append-only and hash-chained. It never replaces the JSON/JSONL files
// the pipeline stages write as their source of truth; a nil or
// unconfigured Store just means nothing is mirrored.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// Config configures a Store's connection pool and migration source.
type Config struct {
	ConnectionString string
	MaxConnections   int32
	ConnectTimeout   time.Duration
	MigrationsPath   string // e.g. "file://internal/audit/postgres/migrations"
}

func (c Config) withDefaults() Config {
	if c.MaxConnections == 0 {
		c.MaxConnections = 10
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.MigrationsPath == "" {
		c.MigrationsPath = "file://internal/audit/postgres/migrations"
	}
	return c
}

// Store is the append-only audit mirror's connection handle.
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// NewStore opens a connection pool and verifies connectivity. It does
// not run migrations; call Migrate explicitly once connected.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("audit postgres: connection string is required")
	}
	cfg = cfg.withDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("audit postgres: create pool: %w", err)
	}
	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit postgres: ping: %w", err)
	}

	return &Store{pool: pool, config: cfg}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies every pending migration under config.MigrationsPath.
// golang-migrate drives its own database/sql connection rather than
// the pgxpool used for normal queries.
func (s *Store) Migrate(ctx context.Context) error {
	migrationDB, err := sql.Open("postgres", s.config.ConnectionString)
	if err != nil {
		return fmt.Errorf("audit postgres: open migration connection: %w", err)
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("audit postgres: migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(s.config.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("audit postgres: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("audit postgres: apply migrations: %w", err)
	}
	return nil
}

// Ping verifies the pool is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
